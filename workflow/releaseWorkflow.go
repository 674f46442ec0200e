package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/montron/pm_backend/config"
	"github.com/montron/pm_backend/exporter"
	"github.com/montron/pm_backend/models"
	"github.com/montron/pm_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// DocumentRenderer turns TB and RS entries into export documents.
type DocumentRenderer interface {
	RenderTb(workday models.Workday, entry models.TbEntry, employee models.Employee) ([]byte, error)
	RenderRs(workday models.Workday, entry models.RsEntry, employee models.Employee) ([]byte, error)
	FileExtension() string
}

// WorkdayExporter writes a rendered bundle and returns where it landed. The
// same workday must always map to the same path.
type WorkdayExporter interface {
	ExportWorkdayFiles(ctx context.Context, bundle exporter.Bundle) (string, error)
}

// Releaser runs the DRAFT -> RELEASED transition. Locker is optional.
type Releaser struct {
	DB       *gorm.DB
	Pins     *PinGuard
	Renderer DocumentRenderer
	Exporter WorkdayExporter
	Locker   ReleaseLocker
	Logger   *logrus.Logger
	Now      func() time.Time
}

type ReleaseCommand struct {
	Actor          Actor
	WorkdayId      string
	Pin            string
	ForceRelease   bool
	OverrideReason string
}

type ReleaseResult struct {
	WorkdayId  string               `json:"workday_id"`
	Status     models.WorkdayStatus `json:"status"`
	ReleasedAt time.Time            `json:"released_at"`
	TargetPath string               `json:"target_path"`
	Forced     bool                 `json:"forced"`
}

type workdayReleasedPayload struct {
	WorkdayId  string    `json:"workday_id"`
	EmployeeId string    `json:"employee_id"`
	WorkDate   string    `json:"work_date"`
	ReleasedBy string    `json:"released_by"`
	ReleasedAt time.Time `json:"released_at"`
	TargetPath string    `json:"target_path"`
	Forced     bool      `json:"forced"`
}

func (r *Releaser) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func pinLast4(pin string) string {
	if len(pin) <= 4 {
		return pin
	}
	return pin[len(pin)-4:]
}

// ReleaseWorkday finalizes a DRAFT workday.
//
// The PIN attempt is committed on its own before the release transaction.
// Everything after it, including the export, either commits together with
// the status flip or leaves no trace besides the written files.
//
// Errors: ErrNotFound, ErrConflict, *BadInputError, ErrPinNotConfigured,
// *PinInvalidError, *PinLockedError, *ValidationBlockedError, *StorageError.
func (r *Releaser) ReleaseWorkday(ctx context.Context, cmd ReleaseCommand) (*ReleaseResult, error) {
	ctx, span := tracer.Start(ctx, "workflow.ReleaseWorkday")
	defer span.End()
	span.SetAttributes(
		attribute.String("company_id", cmd.Actor.CompanyId),
		attribute.String("workday_id", cmd.WorkdayId),
	)
	logger := config.LoggerOrDefault(r.Logger)
	companyId := cmd.Actor.CompanyId

	workday, err := models.GetWorkday(r.DB.WithContext(ctx), companyId, cmd.WorkdayId)
	if err != nil {
		return nil, mapNotFound(err, "workday", cmd.WorkdayId)
	}
	if workday.IsReleased() {
		return nil, fmt.Errorf("workday %s already released: %w", workday.ID, ErrConflict)
	}

	if r.Locker != nil {
		unlock, err := r.Locker.Acquire(ctx, companyId, workday.ID)
		if err != nil {
			if errors.Is(err, ErrLockHeld) {
				return nil, ErrConflict
			}
			return nil, err
		}
		defer unlock()
	}

	if err := r.Pins.Verify(ctx, companyId, cmd.Actor.UserId, cmd.Pin); err != nil {
		return nil, err
	}

	var result *ReleaseResult
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = r.releaseTx(ctx, tx, cmd)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"company_id":  companyId,
		"workday_id":  result.WorkdayId,
		"user_id":     cmd.Actor.UserId,
		"target_path": result.TargetPath,
		"forced":      result.Forced,
	}).Info("workday released")
	return result, nil
}

func (r *Releaser) releaseTx(ctx context.Context, tx *gorm.DB, cmd ReleaseCommand) (*ReleaseResult, error) {
	companyId := cmd.Actor.CompanyId

	workday, err := models.GetWorkdayForUpdate(tx, companyId, cmd.WorkdayId)
	if err != nil {
		return nil, mapNotFound(err, "workday", cmd.WorkdayId)
	}
	if workday.IsReleased() {
		return nil, ErrConflict
	}

	snapshot, err := loadSnapshotFor(tx, workday)
	if err != nil {
		return nil, err
	}
	issues, err := recalculateSnapshot(tx, snapshot)
	if err != nil {
		return nil, err
	}
	hasError := models.HasErrorIssue(issues)
	overrideReason := strings.TrimSpace(cmd.OverrideReason)
	if hasError && !cmd.ForceRelease {
		return nil, &ValidationBlockedError{Issues: issues}
	}
	if hasError && overrideReason == "" {
		return nil, &BadInputError{Field: "overrideReason", Reason: "required when releasing over error-level issues"}
	}
	forced := hasError

	employee, err := models.GetEmployee(tx, companyId, workday.EmployeeId)
	if err != nil {
		return nil, mapNotFound(err, "employee", workday.EmployeeId)
	}
	attachments, err := models.ListAttachments(tx, companyId, workday.ID)
	if err != nil {
		return nil, err
	}

	bundle := exporter.Bundle{
		CompanyId:   companyId,
		Workday:     *workday,
		Employee:    *employee,
		Extension:   r.Renderer.FileExtension(),
		Attachments: attachments,
	}
	if snapshot.Tb != nil {
		if bundle.TbDocument, err = r.Renderer.RenderTb(*workday, *snapshot.Tb, *employee); err != nil {
			return nil, &StorageError{Op: "render TB", Err: err}
		}
	}
	if snapshot.Rs != nil {
		if bundle.RsDocument, err = r.Renderer.RenderRs(*workday, *snapshot.Rs, *employee); err != nil {
			return nil, &StorageError{Op: "render RS", Err: err}
		}
	}
	targetPath, err := r.Exporter.ExportWorkdayFiles(ctx, bundle)
	if err != nil {
		return nil, &StorageError{Op: "export", Err: err}
	}

	releasedAt := r.now()
	flipped, err := models.MarkWorkdayReleased(tx, companyId, workday.ID)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return nil, ErrConflict
	}

	action := models.ReleaseAction{
		CompanyId:  companyId,
		WorkdayId:  workday.ID,
		UserId:     cmd.Actor.UserId,
		PinLast4:   pinLast4(cmd.Pin),
		ReleasedAt: releasedAt,
		TargetPath: targetPath,
		Forced:     forced,
	}
	if forced {
		action.OverrideReason = overrideReason
	}
	if err := tx.Create(&action).Error; err != nil {
		if utils.IsDuplicateKeyErr(err) {
			return nil, ErrConflict
		}
		return nil, err
	}

	if _, err := RecordChange(tx, cmd.Actor, models.AuditEntityWorkday, workday.ID, "status",
		models.WorkdayStatusDraft, models.WorkdayStatusReleased, releasedAt); err != nil {
		return nil, err
	}
	if forced {
		if _, err := RecordChange(tx, cmd.Actor, models.AuditEntityWorkday, workday.ID, "overrideReason",
			nil, overrideReason, releasedAt); err != nil {
			return nil, err
		}
	}

	payload := workdayReleasedPayload{
		WorkdayId:  workday.ID,
		EmployeeId: workday.EmployeeId,
		WorkDate:   workday.WorkDate,
		ReleasedBy: cmd.Actor.UserId,
		ReleasedAt: releasedAt,
		TargetPath: targetPath,
		Forced:     forced,
	}
	if _, err := models.EnqueueWorkdayEvent(ctx, tx, companyId, models.EventWorkdayReleased, workday.ID, payload); err != nil {
		return nil, err
	}

	return &ReleaseResult{
		WorkdayId:  workday.ID,
		Status:     models.WorkdayStatusReleased,
		ReleasedAt: releasedAt,
		TargetPath: targetPath,
		Forced:     forced,
	}, nil
}
