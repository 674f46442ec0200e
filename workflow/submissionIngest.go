package workflow

import (
	"context"
	"sort"
	"time"

	"github.com/montron/pm_backend/config"
	"github.com/montron/pm_backend/models"
	"github.com/montron/pm_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type IngestOutcome string

const (
	IngestApplied                IngestOutcome = "APPLIED"
	IngestSkippedUnknownEmployee IngestOutcome = "SKIPPED_UNKNOWN_EMPLOYEE"
	IngestSkippedReleased        IngestOutcome = "SKIPPED_RELEASED"
)

type IngestResult struct {
	Outcome   IngestOutcome
	WorkdayId string
}

type SubmissionAttachment struct {
	Kind      models.AttachmentKind
	ObjectKey string
	Filename  string
	Bytes     int64
}

// TbSubmission is one TB form as delivered by the upstream form backend.
type TbSubmission struct {
	SubmissionId       string
	EmployeeExternalId string
	WorkDate           string
	UpdatedAt          time.Time
	StartTime          *models.TimeOfDay
	EndTime            *models.TimeOfDay
	BreakMinutes       *int
	TravelMinutes      *int
	LicensePlate       string
	Department         string
	Overnight          *bool
	KmStart            *int
	KmEnd              *int
	Comment            string
	Extra              map[string]interface{}
	Attachments        []SubmissionAttachment
}

// RsSubmission is one RS form as delivered by the upstream form backend.
type RsSubmission struct {
	SubmissionId       string
	EmployeeExternalId string
	WorkDate           string
	UpdatedAt          time.Time
	CustomerId         string
	CustomerName       string
	StartTime          *models.TimeOfDay
	EndTime            *models.TimeOfDay
	BreakMinutes       *int
	Positions          []models.RsPosition
	DocumentObjectKey  string
	Attachments        []SubmissionAttachment
}

type StreetwatchPoint struct {
	Time      models.TimeOfDay
	Km        *int
	Latitude  decimal.NullDecimal
	Longitude decimal.NullDecimal
}

// StreetwatchSubmission is the GPS/odometer trail of one vehicle and day.
type StreetwatchSubmission struct {
	SourceId     string
	LicensePlate string
	SwDate       string
	Points       []StreetwatchPoint
}

// resolveWorkday finds or creates the DRAFT workday of (employee, date). The
// existing row is locked so a concurrent release is seen before entries change.
// A concurrent creator losing the unique index race re-reads the winner's row.
func resolveWorkday(tx *gorm.DB, companyId, employeeId, workDate string) (*models.Workday, error) {
	existing, err := models.FindWorkdayByDayForUpdate(tx, companyId, employeeId, workDate)
	if err != nil || existing != nil {
		return existing, err
	}
	workday := models.Workday{
		CompanyId:  companyId,
		EmployeeId: employeeId,
		WorkDate:   workDate,
		Status:     models.WorkdayStatusDraft,
	}
	if err := tx.SavePoint("resolve_workday").Error; err != nil {
		return nil, err
	}
	if err := tx.Create(&workday).Error; err != nil {
		if !utils.IsDuplicateKeyErr(err) {
			return nil, err
		}
		if err := tx.RollbackTo("resolve_workday").Error; err != nil {
			return nil, err
		}
		existing, err := models.FindWorkdayByDayForUpdate(tx, companyId, employeeId, workDate)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, notFound("workday of employee", employeeId)
		}
		return existing, nil
	}
	return &workday, nil
}

func toAttachments(in []SubmissionAttachment) []models.Attachment {
	out := make([]models.Attachment, 0, len(in))
	for _, a := range in {
		kind := a.Kind
		if kind == "" {
			kind = models.AttachmentKindOther
		}
		out = append(out, models.Attachment{
			Kind:      kind,
			ObjectKey: a.ObjectKey,
			Filename:  a.Filename,
			Bytes:     a.Bytes,
		})
	}
	return out
}

// ingestTarget resolves employee and workday for one submission. A nil workday
// with a non-empty outcome means the submission is skipped.
func ingestTarget(tx *gorm.DB, logger *logrus.Logger, companyId, employeeExternalId, workDate, submissionId string) (*models.Workday, IngestOutcome, error) {
	if _, err := models.ParseWorkDate(workDate); err != nil {
		return nil, "", &BadInputError{Field: "workDate", Reason: err.Error()}
	}
	employee, err := models.FindEmployeeByExternalId(tx, companyId, employeeExternalId)
	if err != nil {
		return nil, "", err
	}
	if employee == nil {
		logger.WithFields(logrus.Fields{
			"company_id":    companyId,
			"employee_ext":  employeeExternalId,
			"submission_id": submissionId,
		}).Warn("skipping submission of unknown employee")
		return nil, IngestSkippedUnknownEmployee, nil
	}
	workday, err := resolveWorkday(tx, companyId, employee.ID, workDate)
	if err != nil {
		return nil, "", err
	}
	if workday.IsReleased() {
		logger.WithFields(logrus.Fields{
			"company_id":    companyId,
			"workday_id":    workday.ID,
			"submission_id": submissionId,
		}).Warn("skipping submission for released workday")
		return nil, IngestSkippedReleased, nil
	}
	return workday, IngestApplied, nil
}

// IngestTbSubmission upserts the TB entry of the submission's workday, replaces
// the attachments of that submission and revalidates the workday.
func IngestTbSubmission(ctx context.Context, db *gorm.DB, companyId string, sub TbSubmission) (IngestResult, error) {
	logger := config.GetLogger()
	var result IngestResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		workday, outcome, err := ingestTarget(tx, logger, companyId, sub.EmployeeExternalId, sub.WorkDate, sub.SubmissionId)
		if err != nil {
			return err
		}
		result.Outcome = outcome
		if workday == nil {
			return nil
		}
		result.WorkdayId = workday.ID

		entry := models.TbEntry{
			CompanyId:          companyId,
			WorkdayId:          workday.ID,
			SourceSubmissionId: sub.SubmissionId,
			StartTime:          sub.StartTime,
			EndTime:            sub.EndTime,
			BreakMinutes:       sub.BreakMinutes,
			TravelMinutes:      sub.TravelMinutes,
			LicensePlate:       sub.LicensePlate,
			Department:         sub.Department,
			Overnight:          sub.Overnight,
			KmStart:            sub.KmStart,
			KmEnd:              sub.KmEnd,
			Comment:            sub.Comment,
			Extra:              datatypes.JSONMap(sub.Extra),
			Version:            1,
		}
		existing, err := models.FindTbEntryByWorkday(tx, companyId, workday.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			err = tx.Create(&entry).Error
		} else {
			entry.ID = existing.ID
			entry.Version = existing.Version + 1
			entry.CreatedAt = existing.CreatedAt
			err = tx.Model(&entry).Where("company_id = ?", companyId).Select("*").Omit("created_at").Updates(&entry).Error
		}
		if err != nil {
			return err
		}

		hasTb := true
		if err := models.UpdateWorkdayFlags(tx, companyId, workday.ID, &hasTb, nil, nil); err != nil {
			return err
		}
		if err := models.ReplaceSubmissionAttachments(tx, companyId, workday.ID, sub.SubmissionId, toAttachments(sub.Attachments)); err != nil {
			return err
		}
		_, err = RecalculateTx(tx, companyId, workday.ID)
		return err
	})
	return result, err
}

// IngestRsSubmission is IngestTbSubmission for RS forms.
func IngestRsSubmission(ctx context.Context, db *gorm.DB, companyId string, sub RsSubmission) (IngestResult, error) {
	logger := config.GetLogger()
	var result IngestResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		workday, outcome, err := ingestTarget(tx, logger, companyId, sub.EmployeeExternalId, sub.WorkDate, sub.SubmissionId)
		if err != nil {
			return err
		}
		result.Outcome = outcome
		if workday == nil {
			return nil
		}
		result.WorkdayId = workday.ID

		entry := models.RsEntry{
			CompanyId:          companyId,
			WorkdayId:          workday.ID,
			SourceSubmissionId: sub.SubmissionId,
			CustomerId:         sub.CustomerId,
			CustomerName:       sub.CustomerName,
			StartTime:          sub.StartTime,
			EndTime:            sub.EndTime,
			BreakMinutes:       sub.BreakMinutes,
			Positions:          datatypes.JSONSlice[models.RsPosition](sub.Positions),
			DocumentObjectKey:  sub.DocumentObjectKey,
			Version:            1,
		}
		existing, err := models.FindRsEntryByWorkday(tx, companyId, workday.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			err = tx.Create(&entry).Error
		} else {
			entry.ID = existing.ID
			entry.Version = existing.Version + 1
			entry.CreatedAt = existing.CreatedAt
			err = tx.Model(&entry).Where("company_id = ?", companyId).Select("*").Omit("created_at").Updates(&entry).Error
		}
		if err != nil {
			return err
		}

		hasRs := true
		if err := models.UpdateWorkdayFlags(tx, companyId, workday.ID, nil, &hasRs, nil); err != nil {
			return err
		}
		if err := models.ReplaceSubmissionAttachments(tx, companyId, workday.ID, sub.SubmissionId, toAttachments(sub.Attachments)); err != nil {
			return err
		}
		_, err = RecalculateTx(tx, companyId, workday.ID)
		return err
	})
	return result, err
}

// IngestStreetwatchDay replaces the Streetwatch trail of an existing workday
// and revalidates it. Points are stored in time order.
func IngestStreetwatchDay(ctx context.Context, db *gorm.DB, companyId, workdayId string, sub StreetwatchSubmission) (IngestResult, error) {
	result := IngestResult{WorkdayId: workdayId}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		workday, err := models.GetWorkdayForUpdate(tx, companyId, workdayId)
		if err != nil {
			return mapNotFound(err, "workday", workdayId)
		}
		if workday.IsReleased() {
			result.Outcome = IngestSkippedReleased
			return nil
		}
		result.Outcome = IngestApplied

		swDate := sub.SwDate
		if swDate == "" {
			swDate = workday.WorkDate
		}
		day, err := models.FindStreetwatchDayByWorkday(tx, companyId, workdayId)
		if err != nil {
			return err
		}
		if day == nil {
			day = &models.StreetwatchDay{
				CompanyId:    companyId,
				WorkdayId:    workdayId,
				LicensePlate: sub.LicensePlate,
				SwDate:       swDate,
				SourceId:     sub.SourceId,
			}
			if err := tx.Create(day).Error; err != nil {
				return err
			}
		} else if err := tx.Model(&models.StreetwatchDay{}).
			Where("company_id = ? AND id = ?", companyId, day.ID).
			Updates(map[string]interface{}{
				"license_plate": sub.LicensePlate,
				"sw_date":       swDate,
				"source_id":     sub.SourceId,
			}).Error; err != nil {
			return err
		}

		points := append([]StreetwatchPoint(nil), sub.Points...)
		sortPointsByTime(points)
		entries := make([]models.StreetwatchEntry, 0, len(points))
		for _, p := range points {
			entries = append(entries, models.StreetwatchEntry{
				Time:      p.Time,
				Km:        p.Km,
				Latitude:  p.Latitude,
				Longitude: p.Longitude,
			})
		}
		if err := models.ReplaceStreetwatchEntries(tx, companyId, day.ID, entries); err != nil {
			return err
		}
		hasSw := true
		if err := models.UpdateWorkdayFlags(tx, companyId, workdayId, nil, nil, &hasSw); err != nil {
			return err
		}
		_, err = RecalculateTx(tx, companyId, workdayId)
		return err
	})
	return result, err
}

func sortPointsByTime(points []StreetwatchPoint) {
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time < points[j].Time })
}
