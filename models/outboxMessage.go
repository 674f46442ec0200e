package models

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OutboxMessage is a workday event written in the business transaction and
// published to Pub/Sub after commit by the dispatcher.
type OutboxMessage struct {
	ID               string         `gorm:"type:char(36);primaryKey" json:"id"`
	CompanyId        string         `gorm:"size:64;not null;index" json:"company_id"`
	EventType        string         `gorm:"size:64;not null" json:"event_type"`
	ReferenceId      string         `gorm:"size:36;not null;index" json:"reference_id"`
	Payload          datatypes.JSON `json:"payload"`
	PublishStatus    string         `gorm:"size:20;not null;index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishAttempts  int            `gorm:"not null" json:"publish_attempts"`
	NextAttemptAt    *time.Time     `gorm:"index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time     `gorm:"index" json:"locked_at"`
	LockedBy         *string        `gorm:"size:100" json:"locked_by"`
	PublishedAt      *time.Time     `json:"published_at"`
	PubSubMessageId  *string        `gorm:"size:255" json:"pubsub_message_id"`
	LastPublishError *string        `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string         `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m *OutboxMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = newID()
	}
	if m.PublishStatus == "" {
		m.PublishStatus = OutboxPublishStatusPending
	}
	return nil
}

// EnqueueWorkdayEvent writes the event inside the caller's transaction but does
// not publish it. Publishing is done by the outbox dispatcher after commit.
func EnqueueWorkdayEvent(ctx context.Context, tx *gorm.DB, companyId, eventType, referenceId string, payload interface{}) (*OutboxMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	msg := OutboxMessage{
		CompanyId:     companyId,
		EventType:     eventType,
		ReferenceId:   referenceId,
		Payload:       datatypes.JSON(data),
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	if err := tx.Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}
