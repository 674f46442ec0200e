package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/montron/pm_backend/config"
	"github.com/montron/pm_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PublishFunc sends one workday event and returns the broker message id.
type PublishFunc func(ctx context.Context, msg config.WorkdayEventMessage) (string, error)

// OutboxDispatcher publishes outbox messages of all companies after commit.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string
	Publish      PublishFunc

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	Now            func() time.Time
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger, settings config.OutboxSettings) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		Publish:        config.PublishWorkdayEvent,
		BatchSize:      settings.BatchSize,
		PollInterval:   settings.PollInterval,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    settings.MaxAttempts,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *OutboxDispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func toEventMessage(rec models.OutboxMessage) config.WorkdayEventMessage {
	return config.WorkdayEventMessage{
		OutboxId:      rec.ID,
		CompanyId:     rec.CompanyId,
		EventType:     rec.EventType,
		ReferenceId:   rec.ReferenceId,
		OccurredAt:    rec.CreatedAt,
		Payload:       json.RawMessage(rec.Payload),
		CorrelationId: rec.CorrelationId,
	}
}

// DispatchOnce claims one batch and publishes it. It returns how many
// messages were published successfully.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) int {
	if d.DB == nil {
		return 0
	}
	// the dispatcher drains every company's outbox
	ctx = config.SkipTenantScope(ctx)
	now := d.now()
	staleBefore := now.Add(-d.LockTimeout)
	batchSize := d.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	var claimed []models.OutboxMessage
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - PENDING / FAILED and ready to retry
		// - PROCESSING but lock is stale (dispatcher crashed mid-batch), reclaim after LockTimeout
		q := models.ForUpdateSkipLocked(tx).
			Where(`
				(
					publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now, models.OutboxPublishStatusProcessing, staleBefore).
			Order("created_at ASC").Order("id ASC").
			Limit(batchSize)
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			// poison messages go terminal
			if d.MaxAttempts > 0 && claimed[i].PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].PublishStatus = models.OutboxPublishStatusDead
				if err := tx.Model(&models.OutboxMessage{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &msg,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].PublishStatus = models.OutboxPublishStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			claimed[i].PublishAttempts++
			if err := tx.Model(&models.OutboxMessage{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"publish_status":     claimed[i].PublishStatus,
				"locked_at":          claimed[i].LockedAt,
				"locked_by":          claimed[i].LockedBy,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(config.LoggerOrDefault(d.Logger), "workflow", "OutboxDispatcher", "claim batch", d.DispatcherID, err)
		return 0
	}

	publish := d.Publish
	if publish == nil {
		publish = config.PublishWorkdayEvent
	}
	sent := 0
	for _, rec := range claimed {
		if rec.PublishStatus == models.OutboxPublishStatusDead {
			continue
		}
		pubID, pubErr := publish(ctx, toEventMessage(rec))
		if pubErr != nil {
			d.markPublishFailed(ctx, rec, pubErr)
			continue
		}
		d.markPublishSent(ctx, rec.ID, pubID)
		sent++
	}
	return sent
}

func (d *OutboxDispatcher) markPublishSent(ctx context.Context, recordID string, pubsubMsgID string) {
	now := d.now()
	id := pubsubMsgID
	_ = d.DB.WithContext(ctx).Model(&models.OutboxMessage{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusSent,
			"published_at":       &now,
			"pub_sub_message_id": &id,
			"locked_at":          nil,
			"locked_by":          nil,
			"next_attempt_at":    nil,
		}).Error
}

// backoffFor doubles InitialBackoff per attempt, capped at ten minutes.
func (d *OutboxDispatcher) backoffFor(attempt int) time.Duration {
	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > time.Minute*10 {
			return time.Minute * 10
		}
	}
	return backoff
}

func (d *OutboxDispatcher) markPublishFailed(ctx context.Context, rec models.OutboxMessage, err error) {
	db := d.DB.WithContext(ctx)
	logger := config.LoggerOrDefault(d.Logger)
	msg := err.Error()
	attempt := rec.PublishAttempts

	if d.MaxAttempts > 0 && attempt >= d.MaxAttempts {
		_ = db.Model(&models.OutboxMessage{}).
			Where("id = ?", rec.ID).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusDead,
				"last_publish_error": &msg,
				"next_attempt_at":    nil,
				"locked_at":          nil,
				"locked_by":          nil,
			}).Error
		logger.WithFields(logrus.Fields{
			"field":      "OutboxDispatcher",
			"company_id": rec.CompanyId,
			"record_id":  rec.ID,
			"attempt":    attempt,
		}).Error("outbox publish moved to DEAD after max attempts: " + msg)
		return
	}

	next := d.now().Add(d.backoffFor(attempt))
	_ = db.Model(&models.OutboxMessage{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"last_publish_error": &msg,
			"next_attempt_at":    &next,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error
	logger.WithFields(logrus.Fields{
		"field":           "OutboxDispatcher",
		"company_id":      rec.CompanyId,
		"record_id":       rec.ID,
		"attempt":         attempt,
		"next_attempt_at": next.Format(time.RFC3339Nano),
	}).Error("outbox publish failed: " + msg)
}
