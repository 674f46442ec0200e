package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/montron/pm_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkDateLayout is the persisted calendar date format of a workday.
const WorkDateLayout = "2006-01-02"

func ParseWorkDate(s string) (time.Time, error) {
	t, err := time.Parse(WorkDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid work date %q: %w", s, err)
	}
	return t, nil
}

func FormatWorkDate(t time.Time) string {
	return t.Format(WorkDateLayout)
}

func newID() string {
	return uuid.NewString()
}

// ForUpdate adds a row lock on dialects that support SELECT ... FOR UPDATE.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	switch tx.Dialector.Name() {
	case "mysql", "postgres":
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	default:
		return tx
	}
}

// ForUpdateSkipLocked is ForUpdate with SKIP LOCKED, for queue-style claims.
func ForUpdateSkipLocked(tx *gorm.DB) *gorm.DB {
	switch tx.Dialector.Name() {
	case "mysql", "postgres":
		return tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	default:
		return tx
	}
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// firstOrNil turns gorm's not-found into (nil, nil) for optional records.
func firstOrNil[T any](query *gorm.DB) (*T, error) {
	var out T
	err := query.Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// firstOrNotFound maps gorm's not-found to utils.ErrorRecordNotFound.
func firstOrNotFound[T any](query *gorm.DB) (*T, error) {
	out, err := firstOrNil[T](query)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, utils.ErrorRecordNotFound
	}
	return out, nil
}
