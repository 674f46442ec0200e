package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StreetwatchDay is the GPS/odometer trail of the vehicle used on a workday.
type StreetwatchDay struct {
	ID           string    `gorm:"type:char(36);primaryKey" json:"id"`
	CompanyId    string    `gorm:"size:64;not null;index" json:"company_id"`
	WorkdayId    string    `gorm:"size:36;not null;uniqueIndex" json:"workday_id"`
	LicensePlate string    `gorm:"size:20" json:"license_plate"`
	SwDate       string    `gorm:"size:10;not null" json:"sw_date"`
	SourceId     string    `gorm:"size:100" json:"source_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d *StreetwatchDay) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = newID()
	}
	return nil
}

// StreetwatchEntry is one checkpoint of a StreetwatchDay.
type StreetwatchEntry struct {
	ID               string              `gorm:"type:char(36);primaryKey" json:"id"`
	CompanyId        string              `gorm:"size:64;not null;index" json:"company_id"`
	StreetwatchDayId string              `gorm:"size:36;not null;index" json:"streetwatch_day_id"`
	Sequence         int                 `gorm:"not null" json:"sequence"`
	Time             TimeOfDay           `gorm:"column:checkpoint_time;type:varchar(5);not null" json:"time"`
	Km               *int                `json:"km"`
	Latitude         decimal.NullDecimal `gorm:"type:decimal(9,6)" json:"latitude"`
	Longitude        decimal.NullDecimal `gorm:"type:decimal(9,6)" json:"longitude"`
}

func (e *StreetwatchEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = newID()
	}
	return nil
}

func FindStreetwatchDayByWorkday(tx *gorm.DB, companyId, workdayId string) (*StreetwatchDay, error) {
	return firstOrNil[StreetwatchDay](tx.Where("company_id = ? AND workday_id = ?", companyId, workdayId))
}

// ListStreetwatchEntries returns the checkpoints ordered by time.
func ListStreetwatchEntries(tx *gorm.DB, companyId, streetwatchDayId string) ([]StreetwatchEntry, error) {
	var entries []StreetwatchEntry
	err := tx.Where("company_id = ? AND streetwatch_day_id = ?", companyId, streetwatchDayId).
		Order("checkpoint_time").Order("sequence").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ReplaceStreetwatchEntries swaps the whole checkpoint list of a day.
func ReplaceStreetwatchEntries(tx *gorm.DB, companyId, streetwatchDayId string, entries []StreetwatchEntry) error {
	if err := tx.Where("company_id = ? AND streetwatch_day_id = ?", companyId, streetwatchDayId).
		Delete(&StreetwatchEntry{}).Error; err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		entries[i].ID = ""
		entries[i].CompanyId = companyId
		entries[i].StreetwatchDayId = streetwatchDayId
		entries[i].Sequence = i
	}
	return tx.Create(&entries).Error
}
