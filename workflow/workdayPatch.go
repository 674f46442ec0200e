package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/montron/pm_backend/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TbPatch holds the TB fields to change; nil leaves a field untouched.
type TbPatch struct {
	StartTime     *models.TimeOfDay  `json:"start_time"`
	EndTime       *models.TimeOfDay  `json:"end_time"`
	BreakMinutes  *int               `json:"break_minutes" binding:"omitempty,min=0"`
	TravelMinutes *int               `json:"travel_minutes" binding:"omitempty,min=0"`
	LicensePlate  *string            `json:"license_plate" binding:"omitempty,max=20"`
	Department    *string            `json:"department" binding:"omitempty,max=100"`
	Overnight     *bool              `json:"overnight"`
	KmStart       *int               `json:"km_start" binding:"omitempty,min=0"`
	KmEnd         *int               `json:"km_end" binding:"omitempty,min=0"`
	Comment       *string            `json:"comment"`
	Extra         *datatypes.JSONMap `json:"extra"`
}

// RsPatch holds the RS fields to change; nil leaves a field untouched.
type RsPatch struct {
	CustomerId        *string                                 `json:"customer_id" binding:"omitempty,max=100"`
	CustomerName      *string                                 `json:"customer_name" binding:"omitempty,max=255"`
	StartTime         *models.TimeOfDay                       `json:"start_time"`
	EndTime           *models.TimeOfDay                       `json:"end_time"`
	BreakMinutes      *int                                    `json:"break_minutes" binding:"omitempty,min=0"`
	Positions         *datatypes.JSONSlice[models.RsPosition] `json:"positions"`
	DocumentObjectKey *string                                 `json:"document_object_key" binding:"omitempty,max=500"`
}

// patchClock stamps patch audit entries.
var patchClock = func() time.Time { return time.Now().UTC() }

// fieldChanges audits each changed field and collects the columns to save.
type fieldChanges struct {
	tx         *gorm.DB
	actor      Actor
	entityType models.AuditEntityType
	entityId   string
	at         time.Time
	columns    []string
	err        error
}

func (c *fieldChanges) record(field, column string, oldValue, newValue interface{}) bool {
	if c.err != nil {
		return false
	}
	changed, err := RecordChange(c.tx, c.actor, c.entityType, c.entityId, field, oldValue, newValue, c.at)
	if err != nil {
		c.err = err
		return false
	}
	if changed {
		c.columns = append(c.columns, column)
	}
	return changed
}

func patchPtr[T any](c *fieldChanges, field, column string, dst **T, in *T) {
	if in == nil {
		return
	}
	v := *in
	if c.record(field, column, *dst, &v) {
		*dst = &v
	}
}

func patchValue[T any](c *fieldChanges, field, column string, dst *T, in *T) {
	if in == nil {
		return
	}
	if c.record(field, column, *dst, *in) {
		*dst = *in
	}
}

func roundedTime(t *models.TimeOfDay) *models.TimeOfDay {
	if t == nil {
		return nil
	}
	r := t.RoundToQuarter()
	return &r
}

func checkNonNegative(field string, v *int) error {
	if v != nil && *v < 0 {
		return &BadInputError{Field: field, Reason: "must not be negative"}
	}
	return nil
}

func (p TbPatch) validate() error {
	for field, v := range map[string]*int{
		"breakMinutes":  p.BreakMinutes,
		"travelMinutes": p.TravelMinutes,
		"kmStart":       p.KmStart,
		"kmEnd":         p.KmEnd,
	} {
		if err := checkNonNegative(field, v); err != nil {
			return err
		}
	}
	return nil
}

func (p RsPatch) validate() error {
	return checkNonNegative("breakMinutes", p.BreakMinutes)
}

// loadEditableWorkday locks the workday and refuses edits once it is released.
func loadEditableWorkday(tx *gorm.DB, companyId, workdayId string) (*models.Workday, error) {
	workday, err := models.GetWorkdayForUpdate(tx, companyId, workdayId)
	if err != nil {
		return nil, mapNotFound(err, "workday", workdayId)
	}
	if workday.IsReleased() {
		return nil, fmt.Errorf("workday %s is released and can no longer be edited: %w", workdayId, ErrConflict)
	}
	return workday, nil
}

// PatchTb applies the patch to the workday's TB entry. Start and end times are
// rounded to the nearest quarter hour. Every changed field is audited, then the
// version is bumped once and the workday is revalidated, all in one transaction.
func PatchTb(ctx context.Context, db *gorm.DB, actor Actor, workdayId string, patch TbPatch) (*models.TbEntry, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "workflow.PatchTb", trace.WithAttributes(
		attribute.String("company_id", actor.CompanyId),
		attribute.String("workday_id", workdayId),
	))
	defer span.End()

	var result *models.TbEntry
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadEditableWorkday(tx, actor.CompanyId, workdayId); err != nil {
			return err
		}
		tb, err := models.FindTbEntryByWorkday(tx, actor.CompanyId, workdayId)
		if err != nil {
			return err
		}
		if tb == nil {
			return notFound("tb entry of workday", workdayId)
		}

		c := &fieldChanges{tx: tx, actor: actor, entityType: models.AuditEntityTb, entityId: tb.ID, at: patchClock()}
		patchPtr(c, "startTime", "start_time", &tb.StartTime, roundedTime(patch.StartTime))
		patchPtr(c, "endTime", "end_time", &tb.EndTime, roundedTime(patch.EndTime))
		patchPtr(c, "breakMinutes", "break_minutes", &tb.BreakMinutes, patch.BreakMinutes)
		patchPtr(c, "travelMinutes", "travel_minutes", &tb.TravelMinutes, patch.TravelMinutes)
		patchValue(c, "licensePlate", "license_plate", &tb.LicensePlate, patch.LicensePlate)
		patchValue(c, "department", "department", &tb.Department, patch.Department)
		patchPtr(c, "overnight", "overnight", &tb.Overnight, patch.Overnight)
		patchPtr(c, "kmStart", "km_start", &tb.KmStart, patch.KmStart)
		patchPtr(c, "kmEnd", "km_end", &tb.KmEnd, patch.KmEnd)
		patchValue(c, "comment", "comment", &tb.Comment, patch.Comment)
		patchValue(c, "extra", "extra", &tb.Extra, patch.Extra)
		if c.err != nil {
			return c.err
		}

		result = tb
		if len(c.columns) == 0 {
			return nil
		}
		tb.Version++
		columns := append(c.columns, "version", "updated_at")
		if err := tx.Model(tb).Where("company_id = ?", actor.CompanyId).Select(columns).Updates(tb).Error; err != nil {
			return err
		}
		_, err = RecalculateTx(tx, actor.CompanyId, workdayId)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result, nil
}

// PatchRs is PatchTb for the workday's RS entry.
func PatchRs(ctx context.Context, db *gorm.DB, actor Actor, workdayId string, patch RsPatch) (*models.RsEntry, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "workflow.PatchRs", trace.WithAttributes(
		attribute.String("company_id", actor.CompanyId),
		attribute.String("workday_id", workdayId),
	))
	defer span.End()

	var result *models.RsEntry
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadEditableWorkday(tx, actor.CompanyId, workdayId); err != nil {
			return err
		}
		rs, err := models.FindRsEntryByWorkday(tx, actor.CompanyId, workdayId)
		if err != nil {
			return err
		}
		if rs == nil {
			return notFound("rs entry of workday", workdayId)
		}

		c := &fieldChanges{tx: tx, actor: actor, entityType: models.AuditEntityRs, entityId: rs.ID, at: patchClock()}
		patchValue(c, "customerId", "customer_id", &rs.CustomerId, patch.CustomerId)
		patchValue(c, "customerName", "customer_name", &rs.CustomerName, patch.CustomerName)
		patchPtr(c, "startTime", "start_time", &rs.StartTime, roundedTime(patch.StartTime))
		patchPtr(c, "endTime", "end_time", &rs.EndTime, roundedTime(patch.EndTime))
		patchPtr(c, "breakMinutes", "break_minutes", &rs.BreakMinutes, patch.BreakMinutes)
		patchValue(c, "positions", "positions", &rs.Positions, patch.Positions)
		patchValue(c, "documentObjectKey", "document_object_key", &rs.DocumentObjectKey, patch.DocumentObjectKey)
		if c.err != nil {
			return c.err
		}

		result = rs
		if len(c.columns) == 0 {
			return nil
		}
		rs.Version++
		columns := append(c.columns, "version", "updated_at")
		if err := tx.Model(rs).Where("company_id = ?", actor.CompanyId).Select(columns).Updates(rs).Error; err != nil {
			return err
		}
		_, err = RecalculateTx(tx, actor.CompanyId, workdayId)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result, nil
}
