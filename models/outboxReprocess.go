package models

import (
	"github.com/montron/pm_backend/utils"
	"gorm.io/gorm"
)

// ReprocessOutbox puts the workday's DEAD or FAILED events back into the
// dispatch queue with a fresh attempt budget. SENT and in-flight rows are left
// alone; utils.ErrorRecordNotFound means nothing was eligible.
func ReprocessOutbox(tx *gorm.DB, companyId, referenceId string) (*OutboxStatus, error) {
	res := tx.Model(&OutboxMessage{}).
		Where("company_id = ? AND reference_id = ? AND publish_status IN ?", companyId, referenceId,
			[]string{OutboxPublishStatusDead, OutboxPublishStatusFailed}).
		Updates(map[string]interface{}{
			"publish_status":     OutboxPublishStatusPending,
			"publish_attempts":   0,
			"next_attempt_at":    nil,
			"locked_at":          nil,
			"locked_by":          nil,
			"last_publish_error": nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return GetOutboxStatus(tx, companyId, referenceId)
}
