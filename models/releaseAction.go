package models

import (
	"time"

	"gorm.io/gorm"
)

// ReleaseAction records one successful release. Rows are never updated or deleted.
type ReleaseAction struct {
	ID             string    `gorm:"type:char(36);primaryKey" json:"id"`
	CompanyId      string    `gorm:"size:64;not null;index" json:"company_id"`
	WorkdayId      string    `gorm:"size:36;not null;uniqueIndex" json:"workday_id"`
	UserId         string    `gorm:"size:64;not null" json:"user_id"`
	PinLast4       string    `gorm:"size:4;not null" json:"pin_last4"`
	ReleasedAt     time.Time `gorm:"not null" json:"released_at"`
	TargetPath     string    `gorm:"size:1000;not null" json:"target_path"`
	Forced         bool      `gorm:"not null" json:"forced"`
	OverrideReason string    `gorm:"type:text" json:"override_reason"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (r *ReleaseAction) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = newID()
	}
	return nil
}

func FindReleaseAction(tx *gorm.DB, companyId, workdayId string) (*ReleaseAction, error) {
	return firstOrNil[ReleaseAction](tx.Where("company_id = ? AND workday_id = ?", companyId, workdayId))
}
