package workflow

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/montron/pm_backend/models"
	"gorm.io/gorm"
)

// Actor identifies who performs an operation inside which company.
type Actor struct {
	CompanyId string
	UserId    string
}

// RecordChange appends one audit entry when oldValue and newValue differ.
// Values are compared by their JSON encoding, so pointers compare by the
// value they point to and a nil pointer equals nil. It reports whether an
// entry was written.
func RecordChange(tx *gorm.DB, actor Actor, entityType models.AuditEntityType, entityId, field string, oldValue, newValue interface{}, at time.Time) (bool, error) {
	oldJSON, err := json.Marshal(oldValue)
	if err != nil {
		return false, err
	}
	newJSON, err := json.Marshal(newValue)
	if err != nil {
		return false, err
	}
	if bytes.Equal(oldJSON, newJSON) {
		return false, nil
	}
	entry := models.AuditEntry{
		CompanyId:  actor.CompanyId,
		EntityType: entityType,
		EntityId:   entityId,
		Field:      field,
		OldValue:   nullableJSON(oldJSON),
		NewValue:   nullableJSON(newJSON),
		UserId:     actor.UserId,
		ChangedAt:  at.UTC(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return false, err
	}
	return true, nil
}

func nullableJSON(raw []byte) models.AuditValue {
	if bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return models.AuditValue(raw)
}
