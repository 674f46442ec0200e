package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ingest cursor sources.
const (
	IngestSourceEmployees = "EMPLOYEES"
	IngestSourceTb        = "TB"
	IngestSourceRs        = "RS"
)

// IngestCursor remembers the newest upstream updatedAt seen per source.
type IngestCursor struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CompanyId     string     `gorm:"size:64;not null;uniqueIndex:uniq_ingest_cursor,priority:1" json:"company_id"`
	Source        string     `gorm:"size:32;not null;uniqueIndex:uniq_ingest_cursor,priority:2" json:"source"`
	LastUpdatedAt *time.Time `json:"last_updated_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetIngestCursor(tx *gorm.DB, companyId, source string) (*time.Time, error) {
	cursor, err := firstOrNil[IngestCursor](tx.Where("company_id = ? AND source = ?", companyId, source))
	if err != nil || cursor == nil {
		return nil, err
	}
	return cursor.LastUpdatedAt, nil
}

// AdvanceIngestCursor stores seen unless the stored cursor is already newer.
func AdvanceIngestCursor(tx *gorm.DB, companyId, source string, seen time.Time) error {
	current, err := GetIngestCursor(tx, companyId, source)
	if err != nil {
		return err
	}
	if current != nil && !seen.After(*current) {
		return nil
	}
	seen = seen.UTC()
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "source"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_updated_at": seen}),
	}).Create(&IngestCursor{
		CompanyId:     companyId,
		Source:        source,
		LastUpdatedAt: &seen,
	}).Error
}
