package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/montron/pm_backend/config"
	"github.com/montron/pm_backend/models"
	"github.com/montron/pm_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GetWorkdayEventStatus reports the publish state of the workday's latest
// outbox event.
func GetWorkdayEventStatus(ctx context.Context, db *gorm.DB, companyId, workdayId string) (*models.OutboxStatus, error) {
	tx := db.WithContext(ctx)
	if _, err := models.GetWorkday(tx, companyId, workdayId); err != nil {
		return nil, mapNotFound(err, "workday", workdayId)
	}
	status, err := models.GetOutboxStatus(tx, companyId, workdayId)
	if err != nil {
		return nil, mapNotFound(err, "workday event", workdayId)
	}
	return status, nil
}

// ReplayWorkdayEvents requeues DEAD or FAILED events of the workday. Replaying
// when nothing is eligible is a conflict.
func ReplayWorkdayEvents(ctx context.Context, db *gorm.DB, actor Actor, workdayId string) (*models.OutboxStatus, error) {
	var status *models.OutboxStatus
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := models.GetWorkday(tx, actor.CompanyId, workdayId); err != nil {
			return mapNotFound(err, "workday", workdayId)
		}
		var err error
		status, err = models.ReprocessOutbox(tx, actor.CompanyId, workdayId)
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return fmt.Errorf("workday %s has no failed events: %w", workdayId, ErrConflict)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	config.GetLogger().WithFields(logrus.Fields{
		"company_id": actor.CompanyId,
		"workday_id": workdayId,
		"user_id":    actor.UserId,
	}).Info("workday events requeued")
	return status, nil
}
