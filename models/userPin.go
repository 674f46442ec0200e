package models

import (
	"time"

	"gorm.io/gorm"
)

// UserPin holds the release PIN of one user within one company.
type UserPin struct {
	ID             string     `gorm:"type:char(36);primaryKey" json:"id"`
	CompanyId      string     `gorm:"size:64;not null;uniqueIndex:uniq_user_pin,priority:1" json:"company_id"`
	UserId         string     `gorm:"size:64;not null;uniqueIndex:uniq_user_pin,priority:2" json:"user_id"`
	PinHash        string     `gorm:"size:100;not null" json:"-"`
	FailedAttempts int        `gorm:"not null" json:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *UserPin) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = newID()
	}
	return nil
}

func FindUserPin(tx *gorm.DB, companyId, userId string) (*UserPin, error) {
	return firstOrNil[UserPin](tx.Where("company_id = ? AND user_id = ?", companyId, userId))
}

// FindUserPinForUpdate locks the row where the dialect supports it.
func FindUserPinForUpdate(tx *gorm.DB, companyId, userId string) (*UserPin, error) {
	return firstOrNil[UserPin](ForUpdate(tx).Where("company_id = ? AND user_id = ?", companyId, userId))
}

// SaveUserPinState persists the attempt counter and lockout of an existing row.
func SaveUserPinState(tx *gorm.DB, pin *UserPin) error {
	return tx.Model(&UserPin{}).
		Where("company_id = ? AND id = ?", pin.CompanyId, pin.ID).
		Updates(map[string]interface{}{
			"failed_attempts": pin.FailedAttempts,
			"locked_until":    pin.LockedUntil,
		}).Error
}
