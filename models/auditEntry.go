package models

import (
	"time"

	"gorm.io/gorm"
)

type AuditEntityType string

const (
	AuditEntityTb      AuditEntityType = "TB"
	AuditEntityRs      AuditEntityType = "RS"
	AuditEntityWorkday AuditEntityType = "WORKDAY"
)

// AuditEntry is one field change. Append-only.
type AuditEntry struct {
	ID         string          `gorm:"type:char(36);primaryKey" json:"id"`
	CompanyId  string          `gorm:"size:64;not null;index:idx_audit_entity,priority:1" json:"company_id"`
	EntityType AuditEntityType `gorm:"size:20;not null;index:idx_audit_entity,priority:2" json:"entity_type"`
	EntityId   string          `gorm:"size:36;not null;index:idx_audit_entity,priority:3" json:"entity_id"`
	Field      string          `gorm:"size:100;not null" json:"field"`
	OldValue   AuditValue      `json:"old_value"`
	NewValue   AuditValue      `json:"new_value"`
	UserId     string          `gorm:"size:64;not null" json:"user_id"`
	ChangedAt  time.Time       `gorm:"not null;index" json:"changed_at"`
}

func (a *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = newID()
	}
	return nil
}

// ListAuditTrail returns the audit entries of the given entities, oldest first.
func ListAuditTrail(tx *gorm.DB, companyId string, entityIds ...string) ([]AuditEntry, error) {
	entries := []AuditEntry{}
	if len(entityIds) == 0 {
		return entries, nil
	}
	if err := tx.Where("company_id = ? AND entity_id IN ?", companyId, entityIds).
		Order("changed_at").Order("id").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
