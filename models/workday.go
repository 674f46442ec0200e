package models

import (
	"time"

	"gorm.io/gorm"
)

type WorkdayStatus string

const (
	WorkdayStatusDraft    WorkdayStatus = "DRAFT"
	WorkdayStatusReleased WorkdayStatus = "RELEASED"
)

// Workday is one row per (company, employee, calendar date).
type Workday struct {
	ID             string        `gorm:"type:char(36);primaryKey" json:"id"`
	CompanyId      string        `gorm:"size:64;not null;uniqueIndex:uniq_workday_day,priority:1" json:"company_id"`
	EmployeeId     string        `gorm:"size:36;not null;uniqueIndex:uniq_workday_day,priority:2" json:"employee_id"`
	WorkDate       string        `gorm:"size:10;not null;uniqueIndex:uniq_workday_day,priority:3" json:"work_date"`
	Status         WorkdayStatus `gorm:"size:16;not null;index" json:"status"`
	HasTb          bool          `gorm:"not null" json:"has_tb"`
	HasRs          bool          `gorm:"not null" json:"has_rs"`
	HasStreetwatch bool          `gorm:"not null" json:"has_streetwatch"`
	CreatedAt      time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (w *Workday) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = newID()
	}
	if w.Status == "" {
		w.Status = WorkdayStatusDraft
	}
	return nil
}

func (w *Workday) IsReleased() bool {
	return w.Status == WorkdayStatusReleased
}

// GetWorkday returns utils.ErrorRecordNotFound when absent or owned by another company.
func GetWorkday(tx *gorm.DB, companyId, workdayId string) (*Workday, error) {
	return firstOrNotFound[Workday](tx.Where("company_id = ? AND id = ?", companyId, workdayId))
}

// GetWorkdayForUpdate is GetWorkday with a row lock where the dialect supports it.
func GetWorkdayForUpdate(tx *gorm.DB, companyId, workdayId string) (*Workday, error) {
	return firstOrNotFound[Workday](ForUpdate(tx).Where("company_id = ? AND id = ?", companyId, workdayId))
}

func FindWorkdayByDay(tx *gorm.DB, companyId, employeeId, workDate string) (*Workday, error) {
	return firstOrNil[Workday](tx.Where("company_id = ? AND employee_id = ? AND work_date = ?", companyId, employeeId, workDate))
}

// FindWorkdayByDayForUpdate is FindWorkdayByDay with a row lock where the dialect supports it.
func FindWorkdayByDayForUpdate(tx *gorm.DB, companyId, employeeId, workDate string) (*Workday, error) {
	return FindWorkdayByDay(ForUpdate(tx), companyId, employeeId, workDate)
}

// ListWorkdaysForEmployee returns workdays in [from, to] ordered by date.
// Empty bounds are open.
func ListWorkdaysForEmployee(tx *gorm.DB, companyId, employeeId, from, to string) ([]Workday, error) {
	query := tx.Where("company_id = ? AND employee_id = ?", companyId, employeeId)
	if from != "" {
		query = query.Where("work_date >= ?", from)
	}
	if to != "" {
		query = query.Where("work_date <= ?", to)
	}
	var workdays []Workday
	if err := query.Order("work_date").Find(&workdays).Error; err != nil {
		return nil, err
	}
	return workdays, nil
}

// UpdateWorkdayFlags sets the has_* presence flags that are non-nil.
func UpdateWorkdayFlags(tx *gorm.DB, companyId, workdayId string, hasTb, hasRs, hasStreetwatch *bool) error {
	updates := map[string]interface{}{}
	if hasTb != nil {
		updates["has_tb"] = *hasTb
	}
	if hasRs != nil {
		updates["has_rs"] = *hasRs
	}
	if hasStreetwatch != nil {
		updates["has_streetwatch"] = *hasStreetwatch
	}
	if len(updates) == 0 {
		return nil
	}
	return tx.Model(&Workday{}).
		Where("company_id = ? AND id = ?", companyId, workdayId).
		Updates(updates).Error
}

// MarkWorkdayReleased flips DRAFT to RELEASED. It reports false when the row
// was not in DRAFT (already released by a concurrent committer).
func MarkWorkdayReleased(tx *gorm.DB, companyId, workdayId string) (bool, error) {
	res := tx.Model(&Workday{}).
		Where("company_id = ? AND id = ? AND status = ?", companyId, workdayId, WorkdayStatusDraft).
		Update("status", WorkdayStatusReleased)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
