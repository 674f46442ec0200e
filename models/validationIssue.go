package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type IssueSeverity string

const (
	IssueSeverityWarn  IssueSeverity = "WARN"
	IssueSeverityError IssueSeverity = "ERROR"
)

type IssueCode string

const (
	IssueCodeRasterMismatch    IssueCode = "RASTER_MISMATCH"
	IssueCodeTbSwTimeDiff      IssueCode = "TB_SW_TIME_DIFF"
	IssueCodeTbRsStartMismatch IssueCode = "TB_RS_START_MISMATCH"
	IssueCodeTbRsEndMismatch   IssueCode = "TB_RS_END_MISMATCH"
	IssueCodeTbRsBreakMismatch IssueCode = "TB_RS_BREAK_MISMATCH"
)

// ValidationIssue is owned by the validation engine; a recompute replaces the
// whole set of a workday.
type ValidationIssue struct {
	ID        string            `gorm:"type:char(36);primaryKey" json:"id"`
	CompanyId string            `gorm:"size:64;not null;index" json:"company_id"`
	WorkdayId string            `gorm:"size:36;not null;index" json:"workday_id"`
	Position  int               `gorm:"not null" json:"position"`
	Code      IssueCode         `gorm:"size:40;not null" json:"code"`
	Severity  IssueSeverity     `gorm:"size:10;not null" json:"severity"`
	Message   string            `gorm:"type:text" json:"message"`
	FieldRef  string            `gorm:"size:100" json:"field_ref"`
	Delta     datatypes.JSONMap `json:"delta"`
	CreatedAt time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func (v *ValidationIssue) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = newID()
	}
	return nil
}

func HasErrorIssue(issues []ValidationIssue) bool {
	for _, issue := range issues {
		if issue.Severity == IssueSeverityError {
			return true
		}
	}
	return false
}

func ListValidationIssues(tx *gorm.DB, companyId, workdayId string) ([]ValidationIssue, error) {
	var issues []ValidationIssue
	if err := tx.Where("company_id = ? AND workday_id = ?", companyId, workdayId).
		Order("position").
		Find(&issues).Error; err != nil {
		return nil, err
	}
	return issues, nil
}

// ReplaceValidationIssues deletes every stored issue of the workday and inserts
// the given set in order. Run it inside the caller's transaction.
func ReplaceValidationIssues(tx *gorm.DB, companyId, workdayId string, issues []ValidationIssue) error {
	if err := tx.Where("company_id = ? AND workday_id = ?", companyId, workdayId).
		Delete(&ValidationIssue{}).Error; err != nil {
		return err
	}
	if len(issues) == 0 {
		return nil
	}
	for i := range issues {
		issues[i].ID = ""
		issues[i].CompanyId = companyId
		issues[i].WorkdayId = workdayId
		issues[i].Position = i
	}
	return tx.Create(&issues).Error
}
