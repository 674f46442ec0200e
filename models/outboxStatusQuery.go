package models

import "gorm.io/gorm"

// GetOutboxStatus returns the newest event of the workday, or
// utils.ErrorRecordNotFound when none was written.
func GetOutboxStatus(tx *gorm.DB, companyId, referenceId string) (*OutboxStatus, error) {
	rec, err := firstOrNotFound[OutboxMessage](tx.
		Where("company_id = ? AND reference_id = ?", companyId, referenceId).
		Order("created_at DESC").
		Order("id DESC"))
	if err != nil {
		return nil, err
	}
	return outboxStatusOf(*rec), nil
}
