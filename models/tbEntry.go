package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TbEntry is the daily time report of one workday.
type TbEntry struct {
	ID                 string            `gorm:"type:char(36);primaryKey" json:"id"`
	CompanyId          string            `gorm:"size:64;not null;index" json:"company_id"`
	WorkdayId          string            `gorm:"size:36;not null;index" json:"workday_id"`
	SourceSubmissionId string            `gorm:"size:100;index" json:"source_submission_id"`
	StartTime          *TimeOfDay        `gorm:"type:varchar(5)" json:"start_time"`
	EndTime            *TimeOfDay        `gorm:"type:varchar(5)" json:"end_time"`
	BreakMinutes       *int              `json:"break_minutes"`
	TravelMinutes      *int              `json:"travel_minutes"`
	LicensePlate       string            `gorm:"size:20" json:"license_plate"`
	Department         string            `gorm:"size:100" json:"department"`
	Overnight          *bool             `json:"overnight"`
	KmStart            *int              `json:"km_start"`
	KmEnd              *int              `json:"km_end"`
	Comment            string            `gorm:"type:text" json:"comment"`
	Extra              datatypes.JSONMap `json:"extra"`
	Version            int               `gorm:"not null" json:"version"`
	CreatedAt          time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *TbEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = newID()
	}
	return nil
}

// WorkedMinutes is end - start - break; ok is false when times are missing
// or the result would be negative.
func (e *TbEntry) WorkedMinutes() (minutes int, ok bool) {
	if e == nil || e.StartTime == nil || e.EndTime == nil {
		return 0, false
	}
	minutes = e.EndTime.Minutes() - e.StartTime.Minutes()
	if e.BreakMinutes != nil {
		minutes -= *e.BreakMinutes
	}
	if minutes < 0 {
		return 0, false
	}
	return minutes, true
}

func FindTbEntryByWorkday(tx *gorm.DB, companyId, workdayId string) (*TbEntry, error) {
	return firstOrNil[TbEntry](tx.Where("company_id = ? AND workday_id = ?", companyId, workdayId))
}
