package models

import "time"

// OutboxStatus is a UI-facing view of the latest event row for a workday.
type OutboxStatus struct {
	RecordId         string     `json:"record_id"`
	EventType        string     `json:"event_type"`
	ReferenceId      string     `json:"reference_id"`
	PublishStatus    string     `json:"publish_status"`
	PublishAttempts  int        `json:"publish_attempts"`
	NextAttemptAt    *time.Time `json:"next_attempt_at"`
	LastPublishError *string    `json:"last_publish_error"`
	CreatedAt        time.Time  `json:"created_at"`
	PublishedAt      *time.Time `json:"published_at"`
}

func outboxStatusOf(rec OutboxMessage) *OutboxStatus {
	return &OutboxStatus{
		RecordId:         rec.ID,
		EventType:        rec.EventType,
		ReferenceId:      rec.ReferenceId,
		PublishStatus:    rec.PublishStatus,
		PublishAttempts:  rec.PublishAttempts,
		NextAttemptAt:    rec.NextAttemptAt,
		LastPublishError: rec.LastPublishError,
		CreatedAt:        rec.CreatedAt,
		PublishedAt:      rec.PublishedAt,
	}
}
