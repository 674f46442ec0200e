package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type EmployeeStatus string

const (
	EmployeeStatusActive   EmployeeStatus = "ACTIVE"
	EmployeeStatusInactive EmployeeStatus = "INACTIVE"
)

type Employee struct {
	ID         string         `gorm:"type:char(36);primaryKey" json:"id"`
	CompanyId  string         `gorm:"size:64;not null;uniqueIndex:uniq_employee_ext,priority:1;index" json:"company_id"`
	ExternalId string         `gorm:"size:100;not null;uniqueIndex:uniq_employee_ext,priority:2" json:"external_id"`
	Username   string         `gorm:"size:100" json:"username"`
	FirstName  string         `gorm:"size:100" json:"first_name"`
	LastName   string         `gorm:"size:100" json:"last_name"`
	Department string         `gorm:"size:100" json:"department"`
	Status     EmployeeStatus `gorm:"size:16;not null" json:"status"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *Employee) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.Status == "" {
		e.Status = EmployeeStatusActive
	}
	return nil
}

func (e Employee) DisplayName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

func GetEmployee(tx *gorm.DB, companyId, employeeId string) (*Employee, error) {
	return firstOrNotFound[Employee](tx.Where("company_id = ? AND id = ?", companyId, employeeId))
}

func FindEmployeeByExternalId(tx *gorm.DB, companyId, externalId string) (*Employee, error) {
	return firstOrNil[Employee](tx.Where("company_id = ? AND external_id = ?", companyId, externalId))
}

// UpsertEmployee creates or refreshes the employee keyed by (company, external id).
func UpsertEmployee(tx *gorm.DB, in Employee) (*Employee, error) {
	existing, err := FindEmployeeByExternalId(tx, in.CompanyId, in.ExternalId)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if err := tx.Create(&in).Error; err != nil {
			return nil, err
		}
		return &in, nil
	}
	updates := map[string]interface{}{
		"username":   in.Username,
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"department": in.Department,
	}
	if in.Status != "" {
		updates["status"] = in.Status
	}
	if err := tx.Model(&Employee{}).
		Where("company_id = ? AND id = ?", existing.CompanyId, existing.ID).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetEmployee(tx, existing.CompanyId, existing.ID)
}
