package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RsPosition is one line of a job-cost slip.
type RsPosition struct {
	Code         string          `json:"code"`
	Description  string          `json:"description"`
	Hours        decimal.Decimal `json:"hours"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

func (p RsPosition) Amount() decimal.Decimal {
	return p.Quantity.Mul(p.PricePerUnit)
}

// RsEntry is the job-cost slip of one workday.
type RsEntry struct {
	ID                 string                          `gorm:"type:char(36);primaryKey" json:"id"`
	CompanyId          string                          `gorm:"size:64;not null;index" json:"company_id"`
	WorkdayId          string                          `gorm:"size:36;not null;index" json:"workday_id"`
	SourceSubmissionId string                          `gorm:"size:100;index" json:"source_submission_id"`
	CustomerId         string                          `gorm:"size:100" json:"customer_id"`
	CustomerName       string                          `gorm:"size:255" json:"customer_name"`
	StartTime          *TimeOfDay                      `gorm:"type:varchar(5)" json:"start_time"`
	EndTime            *TimeOfDay                      `gorm:"type:varchar(5)" json:"end_time"`
	BreakMinutes       *int                            `json:"break_minutes"`
	Positions          datatypes.JSONSlice[RsPosition] `json:"positions"`
	DocumentObjectKey  string                          `gorm:"size:500" json:"document_object_key"`
	Version            int                             `gorm:"not null" json:"version"`
	CreatedAt          time.Time                       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time                       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *RsEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = newID()
	}
	return nil
}

// TotalAmount sums quantity * price over all positions.
func (e *RsEntry) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, p := range e.Positions {
		total = total.Add(p.Amount())
	}
	return total
}

func FindRsEntryByWorkday(tx *gorm.DB, companyId, workdayId string) (*RsEntry, error) {
	return firstOrNil[RsEntry](tx.Where("company_id = ? AND workday_id = ?", companyId, workdayId))
}
