package workflow

import (
	"errors"
	"time"

	"github.com/montron/pm_backend/models"
	"github.com/montron/pm_backend/utils"
	"gorm.io/gorm"
)

var ErrIdempotencyInProgress = errors.New("idempotency in progress")

// staleStartedAfter lets a crashed handler's STARTED row be retaken.
const staleStartedAfter = 5 * time.Minute

// BeginIdempotency marks messageId STARTED for handlerName. skip is true when
// the message already SUCCEEDED.
func BeginIdempotency(tx *gorm.DB, companyId, handlerName, messageId string) (skip bool, err error) {
	existing, err := findIdempotencyKey(tx, companyId, handlerName, messageId)
	if err != nil {
		return false, err
	}
	if existing == nil {
		key := models.IdempotencyKey{
			CompanyId:   companyId,
			HandlerName: handlerName,
			MessageId:   messageId,
			Status:      models.IdempotencyStatusStarted,
		}
		if err := tx.Create(&key).Error; err == nil {
			return false, nil
		} else if !utils.IsDuplicateKeyErr(err) {
			return false, err
		}
		// lost the insert race
		return false, ErrIdempotencyInProgress
	}

	switch existing.Status {
	case models.IdempotencyStatusSucceeded:
		return true, nil
	case models.IdempotencyStatusStarted:
		if time.Since(existing.UpdatedAt) < staleStartedAfter {
			return false, ErrIdempotencyInProgress
		}
	}
	return false, tx.Model(&models.IdempotencyKey{}).
		Where("company_id = ? AND id = ?", companyId, existing.ID).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusStarted, "last_error": nil}).Error
}

func findIdempotencyKey(tx *gorm.DB, companyId, handlerName, messageId string) (*models.IdempotencyKey, error) {
	var key models.IdempotencyKey
	err := tx.Where("company_id = ? AND handler_name = ? AND message_id = ?", companyId, handlerName, messageId).
		Take(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func MarkIdempotencySucceeded(tx *gorm.DB, companyId, handlerName, messageId string) error {
	return tx.Model(&models.IdempotencyKey{}).
		Where("company_id = ? AND handler_name = ? AND message_id = ?", companyId, handlerName, messageId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusSucceeded, "last_error": nil}).Error
}

func MarkIdempotencyFailed(tx *gorm.DB, companyId, handlerName, messageId string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return tx.Model(&models.IdempotencyKey{}).
		Where("company_id = ? AND handler_name = ? AND message_id = ?", companyId, handlerName, messageId).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusFailed, "last_error": &msg}).Error
}
