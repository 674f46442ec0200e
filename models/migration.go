package models

import (
	"gorm.io/gorm"
)

// MigrateTable creates or updates every table of the service.
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&Employee{},
		&Workday{}, &TbEntry{}, &RsEntry{},
		&StreetwatchDay{}, &StreetwatchEntry{},
		&Attachment{},
		&ValidationIssue{},
		&ReleaseAction{},
		&UserPin{},
		&AuditEntry{},
		&OutboxMessage{},
		&IdempotencyKey{},
		&IngestCursor{},
	)
}
