package formsync

import (
	"context"
	"fmt"
	"time"

	"github.com/montron/pm_backend/config"
	"github.com/montron/pm_backend/models"
	"github.com/montron/pm_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Fetcher is the part of Client the worker depends on.
type Fetcher interface {
	FetchEmployees(ctx context.Context, updatedAfter *time.Time) ([]EmployeeDTO, error)
	FetchSubmissions(ctx context.Context, docType DocumentType, from, to string, updatedAfter *time.Time) ([]SubmissionDTO, error)
	Close()
}

type RunStats struct {
	Employees int `json:"employees"`
	TbApplied int `json:"tb_applied"`
	RsApplied int `json:"rs_applied"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type Worker struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	NewClient func(Tenant) (Fetcher, error)
	Now       func() time.Time
}

func NewWorker(db *gorm.DB, logger *logrus.Logger) *Worker {
	return &Worker{
		DB:        db,
		Logger:    config.LoggerOrDefault(logger),
		NewClient: NewTenantClient,
		Now:       time.Now,
	}
}

// Run pulls employees, then TB and RS submissions with work dates in
// [from, to], for one tenant. Empty bounds default to the tenant's lookback
// window. A source's cursor only moves when every item of that source was
// stored, so failed items are fetched again on the next run.
func (w *Worker) Run(ctx context.Context, tenant Tenant, from, to string) (RunStats, error) {
	var stats RunStats
	from, to, err := w.window(tenant, from, to)
	if err != nil {
		return stats, err
	}

	client, err := w.NewClient(tenant)
	if err != nil {
		return stats, err
	}
	defer client.Close()

	logger := w.Logger.WithFields(logrus.Fields{
		"company_id": tenant.CompanyId,
		"from":       from,
		"to":         to,
	})

	if err := w.syncEmployees(ctx, client, tenant.CompanyId, &stats); err != nil {
		config.LogError(w.Logger, "formsync", "Run", "employees", tenant.CompanyId, err)
		return stats, err
	}
	for _, docType := range []DocumentType{DocumentTypeTb, DocumentTypeRs} {
		if err := w.syncSubmissions(ctx, client, tenant.CompanyId, docType, from, to, &stats); err != nil {
			config.LogError(w.Logger, "formsync", "Run", string(docType), tenant.CompanyId, err)
			return stats, err
		}
	}

	logger.WithFields(logrus.Fields{
		"employees":  stats.Employees,
		"tb_applied": stats.TbApplied,
		"rs_applied": stats.RsApplied,
		"skipped":    stats.Skipped,
		"failed":     stats.Failed,
	}).Info("form sync run finished")
	return stats, nil
}

func (w *Worker) window(tenant Tenant, from, to string) (string, string, error) {
	today := w.Now().UTC()
	if to == "" {
		to = today.Format(models.WorkDateLayout)
	}
	if from == "" {
		days := tenant.LookbackDays
		if days <= 0 {
			days = defaultLookbackDays
		}
		from = today.AddDate(0, 0, -days).Format(models.WorkDateLayout)
	}
	fromDate, err := models.ParseWorkDate(from)
	if err != nil {
		return "", "", &workflow.BadInputError{Field: "from", Reason: err.Error()}
	}
	toDate, err := models.ParseWorkDate(to)
	if err != nil {
		return "", "", &workflow.BadInputError{Field: "to", Reason: err.Error()}
	}
	if toDate.Before(fromDate) {
		return "", "", &workflow.BadInputError{Field: "to", Reason: "before from"}
	}
	return from, to, nil
}

func (w *Worker) syncEmployees(ctx context.Context, client Fetcher, companyId string, stats *RunStats) error {
	db := w.DB.WithContext(ctx)
	cursor, err := models.GetIngestCursor(db, companyId, models.IngestSourceEmployees)
	if err != nil {
		return err
	}
	employees, err := client.FetchEmployees(ctx, cursor)
	if err != nil {
		return err
	}

	var newest time.Time
	failed := false
	for _, dto := range employees {
		if dto.ID == "" {
			stats.Skipped++
			continue
		}
		if _, err := models.UpsertEmployee(db, dto.toModel(companyId)); err != nil {
			failed = true
			stats.Failed++
			config.LogError(w.Logger, "formsync", "syncEmployees", "upsert", dto.ID, err)
			continue
		}
		stats.Employees++
		if dto.UpdatedAt != nil && dto.UpdatedAt.After(newest) {
			newest = *dto.UpdatedAt
		}
	}
	if failed || newest.IsZero() {
		return nil
	}
	return models.AdvanceIngestCursor(db, companyId, models.IngestSourceEmployees, newest)
}

func (w *Worker) syncSubmissions(ctx context.Context, client Fetcher, companyId string, docType DocumentType, from, to string, stats *RunStats) error {
	source := models.IngestSourceTb
	if docType == DocumentTypeRs {
		source = models.IngestSourceRs
	}
	db := w.DB.WithContext(ctx)
	cursor, err := models.GetIngestCursor(db, companyId, source)
	if err != nil {
		return err
	}
	submissions, err := client.FetchSubmissions(ctx, docType, from, to, cursor)
	if err != nil {
		return err
	}

	var newest time.Time
	failed := false
	for _, sub := range submissions {
		result, err := w.ingest(ctx, companyId, docType, sub)
		if err != nil {
			failed = true
			stats.Failed++
			config.LogError(w.Logger, "formsync", "syncSubmissions", string(docType), sub.ID, err)
			continue
		}
		if result.Outcome == workflow.IngestApplied {
			if docType == DocumentTypeTb {
				stats.TbApplied++
			} else {
				stats.RsApplied++
			}
		} else {
			stats.Skipped++
		}
		if t := sub.updatedAt(); t.After(newest) {
			newest = t
		}
	}
	if failed || newest.IsZero() {
		return nil
	}
	return models.AdvanceIngestCursor(db, companyId, source, newest)
}

func (w *Worker) ingest(ctx context.Context, companyId string, docType DocumentType, sub SubmissionDTO) (workflow.IngestResult, error) {
	if sub.DocumentType != "" && sub.DocumentType != docType {
		return workflow.IngestResult{}, fmt.Errorf("submission %s has type %s, expected %s", sub.ID, sub.DocumentType, docType)
	}
	switch docType {
	case DocumentTypeTb:
		tb, err := sub.toTb()
		if err != nil {
			return workflow.IngestResult{}, err
		}
		return workflow.IngestTbSubmission(ctx, w.DB, companyId, tb)
	default:
		rs, err := sub.toRs()
		if err != nil {
			return workflow.IngestResult{}, err
		}
		return workflow.IngestRsSubmission(ctx, w.DB, companyId, rs)
	}
}
