package workflow

import (
	"context"
	"errors"

	"github.com/montron/pm_backend/models"
	"github.com/montron/pm_backend/utils"
	"gorm.io/gorm"
)

// WorkdayDetail is the full read model of one workday.
type WorkdayDetail struct {
	Workday            models.Workday            `json:"workday"`
	Employee           *models.Employee          `json:"employee"`
	Tb                 *models.TbEntry           `json:"tb"`
	Rs                 *models.RsEntry           `json:"rs"`
	Streetwatch        *models.StreetwatchDay    `json:"streetwatch"`
	StreetwatchEntries []models.StreetwatchEntry `json:"streetwatch_entries"`
	Attachments        []models.Attachment       `json:"attachments"`
	Issues             []models.ValidationIssue  `json:"issues"`
	Release            *models.ReleaseAction     `json:"release"`
	AuditTrail         []models.AuditEntry       `json:"audit_trail"`
}

func GetWorkdayDetail(ctx context.Context, db *gorm.DB, companyId, workdayId string) (*WorkdayDetail, error) {
	tx := db.WithContext(ctx)
	snapshot, err := LoadWorkdaySnapshot(tx, companyId, workdayId)
	if err != nil {
		return nil, err
	}
	detail := &WorkdayDetail{
		Workday:            *snapshot.Workday,
		Tb:                 snapshot.Tb,
		Rs:                 snapshot.Rs,
		Streetwatch:        snapshot.Streetwatch,
		StreetwatchEntries: snapshot.StreetwatchEntries,
	}
	employee, err := models.GetEmployee(tx, companyId, snapshot.Workday.EmployeeId)
	switch {
	case err == nil:
		detail.Employee = employee
	case !errors.Is(err, utils.ErrorRecordNotFound):
		return nil, err
	}
	if detail.Attachments, err = models.ListAttachments(tx, companyId, workdayId); err != nil {
		return nil, err
	}
	if detail.Issues, err = models.ListValidationIssues(tx, companyId, workdayId); err != nil {
		return nil, err
	}
	if detail.Release, err = models.FindReleaseAction(tx, companyId, workdayId); err != nil {
		return nil, err
	}
	entityIds := []string{workdayId}
	if snapshot.Tb != nil {
		entityIds = append(entityIds, snapshot.Tb.ID)
	}
	if snapshot.Rs != nil {
		entityIds = append(entityIds, snapshot.Rs.ID)
	}
	if detail.AuditTrail, err = models.ListAuditTrail(tx, companyId, entityIds...); err != nil {
		return nil, err
	}
	return detail, nil
}

// ListEmployeeWorkdays checks the employee belongs to the company before listing.
func ListEmployeeWorkdays(ctx context.Context, db *gorm.DB, companyId, employeeId, from, to string) ([]models.Workday, error) {
	tx := db.WithContext(ctx)
	if _, err := models.GetEmployee(tx, companyId, employeeId); err != nil {
		return nil, mapNotFound(err, "employee", employeeId)
	}
	for field, v := range map[string]string{"from": from, "to": to} {
		if v == "" {
			continue
		}
		if _, err := models.ParseWorkDate(v); err != nil {
			return nil, &BadInputError{Field: field, Reason: "expected YYYY-MM-DD"}
		}
	}
	return models.ListWorkdaysForEmployee(tx, companyId, employeeId, from, to)
}
