package models

import (
	"time"

	"gorm.io/gorm"
)

type AttachmentKind string

const (
	AttachmentKindTb    AttachmentKind = "TB"
	AttachmentKindRs    AttachmentKind = "RS"
	AttachmentKindPhoto AttachmentKind = "PHOTO"
	AttachmentKindOther AttachmentKind = "OTHER"
)

// Attachment points at an uploaded file in object storage.
type Attachment struct {
	ID                 string         `gorm:"type:char(36);primaryKey" json:"id"`
	CompanyId          string         `gorm:"size:64;not null;index" json:"company_id"`
	WorkdayId          string         `gorm:"size:36;not null;index" json:"workday_id"`
	Kind               AttachmentKind `gorm:"size:16;not null" json:"kind"`
	ObjectKey          string         `gorm:"size:500;not null" json:"object_key"`
	Filename           string         `gorm:"size:255" json:"filename"`
	Bytes              int64          `json:"bytes"`
	SourceSubmissionId string         `gorm:"size:100;index" json:"source_submission_id"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = newID()
	}
	return nil
}

func ListAttachments(tx *gorm.DB, companyId, workdayId string) ([]Attachment, error) {
	var attachments []Attachment
	if err := tx.Where("company_id = ? AND workday_id = ?", companyId, workdayId).
		Order("created_at").Order("id").
		Find(&attachments).Error; err != nil {
		return nil, err
	}
	return attachments, nil
}

// ReplaceSubmissionAttachments swaps the attachments one upstream submission contributed.
func ReplaceSubmissionAttachments(tx *gorm.DB, companyId, workdayId, sourceSubmissionId string, attachments []Attachment) error {
	if err := tx.Where("company_id = ? AND workday_id = ? AND source_submission_id = ?", companyId, workdayId, sourceSubmissionId).
		Delete(&Attachment{}).Error; err != nil {
		return err
	}
	if len(attachments) == 0 {
		return nil
	}
	for i := range attachments {
		attachments[i].ID = ""
		attachments[i].CompanyId = companyId
		attachments[i].WorkdayId = workdayId
		attachments[i].SourceSubmissionId = sourceSubmissionId
	}
	return tx.Create(&attachments).Error
}
