package exporter

import (
	"context"

	"github.com/montron/pm_backend/models"
)

// Bundle is everything written for one released workday. A nil document
// means the workday has no entry of that kind.
type Bundle struct {
	CompanyId   string
	Workday     models.Workday
	Employee    models.Employee
	TbDocument  []byte
	RsDocument  []byte
	Extension   string
	Attachments []models.Attachment
}

type Exporter interface {
	ExportWorkdayFiles(ctx context.Context, bundle Bundle) (string, error)
}

// AttachmentFetcher loads the bytes behind an attachment object key.
type AttachmentFetcher func(ctx context.Context, objectKey string) ([]byte, error)
