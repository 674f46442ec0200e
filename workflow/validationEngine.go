package workflow

import (
	"context"

	"github.com/montron/pm_backend/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// LoadWorkdaySnapshot reads the workday and its optional TB, RS and Streetwatch
// records. Only a missing workday is an error.
func LoadWorkdaySnapshot(tx *gorm.DB, companyId, workdayId string) (*WorkdaySnapshot, error) {
	workday, err := models.GetWorkday(tx, companyId, workdayId)
	if err != nil {
		return nil, mapNotFound(err, "workday", workdayId)
	}
	return loadSnapshotFor(tx, workday)
}

func loadSnapshotFor(tx *gorm.DB, workday *models.Workday) (*WorkdaySnapshot, error) {
	s := &WorkdaySnapshot{Workday: workday}
	var err error
	if s.Tb, err = models.FindTbEntryByWorkday(tx, workday.CompanyId, workday.ID); err != nil {
		return nil, err
	}
	if s.Rs, err = models.FindRsEntryByWorkday(tx, workday.CompanyId, workday.ID); err != nil {
		return nil, err
	}
	if s.Streetwatch, err = models.FindStreetwatchDayByWorkday(tx, workday.CompanyId, workday.ID); err != nil {
		return nil, err
	}
	if s.Streetwatch != nil {
		if s.StreetwatchEntries, err = models.ListStreetwatchEntries(tx, workday.CompanyId, s.Streetwatch.ID); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RecalculateTx rebuilds the workday's issue set inside tx: the new set is
// computed in memory, then the stored set is replaced wholesale.
func RecalculateTx(tx *gorm.DB, companyId, workdayId string) ([]models.ValidationIssue, error) {
	snapshot, err := LoadWorkdaySnapshot(tx, companyId, workdayId)
	if err != nil {
		return nil, err
	}
	return recalculateSnapshot(tx, snapshot)
}

func recalculateSnapshot(tx *gorm.DB, snapshot *WorkdaySnapshot) ([]models.ValidationIssue, error) {
	issues := BuildIssues(snapshot)
	if err := models.ReplaceValidationIssues(tx, snapshot.Workday.CompanyId, snapshot.Workday.ID, issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// Recalculate is RecalculateTx in its own transaction.
func Recalculate(ctx context.Context, db *gorm.DB, companyId, workdayId string) ([]models.ValidationIssue, error) {
	ctx, span := tracer.Start(ctx, "workflow.Recalculate", trace.WithAttributes(
		attribute.String("company_id", companyId),
		attribute.String("workday_id", workdayId),
	))
	defer span.End()

	var issues []models.ValidationIssue
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		issues, err = RecalculateTx(tx, companyId, workdayId)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return issues, nil
}
