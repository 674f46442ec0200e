package formsync

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/montron/pm_backend/models"
	"github.com/montron/pm_backend/utils"
	"github.com/montron/pm_backend/workflow"
	"github.com/shopspring/decimal"
)

type DocumentType string

const (
	DocumentTypeTb DocumentType = "TB"
	DocumentTypeRs DocumentType = "RS"
)

type EmployeeDTO struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	Department string     `json:"department"`
	Status     string     `json:"status"`
	UpdatedAt  *time.Time `json:"updatedAt"`
}

type AttachmentDTO struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	S3Key    string `json:"s3Key"`
	Filename string `json:"filename"`
	Bytes    *int64 `json:"bytes"`
}

type PositionDTO struct {
	Code         string          `json:"code"`
	Description  string          `json:"description"`
	Hours        decimal.Decimal `json:"hours"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
}

// SubmissionDTO is one TB or RS form as returned by /integration/submissions.
type SubmissionDTO struct {
	ID            string                 `json:"id"`
	EmployeeId    string                 `json:"employeeId"`
	WorkDate      string                 `json:"workDate"`
	DocumentType  DocumentType           `json:"documentType"`
	StartTime     *string                `json:"startTime"`
	EndTime       *string                `json:"endTime"`
	BreakMinutes  *int                   `json:"breakMinutes"`
	TravelMinutes *int                   `json:"travelMinutes"`
	LicensePlate  string                 `json:"licensePlate"`
	Department    string                 `json:"department"`
	Overnight     *bool                  `json:"overnight"`
	KmStart       *int                   `json:"kmStart"`
	KmEnd         *int                   `json:"kmEnd"`
	Comment       string                 `json:"comment"`
	CustomerId    string                 `json:"customerId"`
	CustomerName  string                 `json:"customerName"`
	Positions     []PositionDTO          `json:"positions"`
	PdfObjectKey  string                 `json:"pdfObjectKey"`
	Extra         map[string]interface{} `json:"extra"`
	Attachments   []AttachmentDTO        `json:"attachments"`
	UpdatedAt     *time.Time             `json:"updatedAt"`
}

// PushEnvelope is the body Pub/Sub push subscriptions deliver.
type PushEnvelope struct {
	Message struct {
		Data        []byte            `json:"data"`
		MessageId   string            `json:"messageId"`
		Attributes  map[string]string `json:"attributes"`
		PublishTime time.Time         `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// IngestRunPayload asks the service to run one ingestion for a tenant.
// Empty dates fall back to the tenant's lookback window.
type IngestRunPayload struct {
	CompanyId string `json:"company_id"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
}

func decodePayload(data []byte) (IngestRunPayload, error) {
	var p IngestRunPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, err
	}
	if strings.TrimSpace(p.CompanyId) == "" {
		return p, fmt.Errorf("company_id is required")
	}
	return p, nil
}

func (e EmployeeDTO) toModel(companyId string) models.Employee {
	status := models.EmployeeStatusActive
	if strings.EqualFold(e.Status, string(models.EmployeeStatusInactive)) {
		status = models.EmployeeStatusInactive
	}
	return models.Employee{
		CompanyId:  companyId,
		ExternalId: e.ID,
		Username:   e.Username,
		FirstName:  e.FirstName,
		LastName:   e.LastName,
		Department: e.Department,
		Status:     status,
	}
}

func parseOptionalTime(field string, v *string) (*models.TimeOfDay, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, err := models.ParseTimeOfDay(*v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &t, nil
}

func attachmentKind(kind string) models.AttachmentKind {
	switch k := models.AttachmentKind(strings.ToUpper(strings.TrimSpace(kind))); k {
	case models.AttachmentKindTb, models.AttachmentKindRs, models.AttachmentKindPhoto:
		return k
	default:
		return models.AttachmentKindOther
	}
}

func (s SubmissionDTO) attachments() []workflow.SubmissionAttachment {
	out := make([]workflow.SubmissionAttachment, 0, len(s.Attachments))
	for _, a := range s.Attachments {
		if strings.TrimSpace(a.S3Key) == "" {
			continue
		}
		out = append(out, workflow.SubmissionAttachment{
			Kind:      attachmentKind(a.Kind),
			ObjectKey: a.S3Key,
			Filename:  a.Filename,
			Bytes:     utils.DereferencePtr(a.Bytes),
		})
	}
	return out
}

func (s SubmissionDTO) updatedAt() time.Time {
	if s.UpdatedAt == nil {
		return time.Time{}
	}
	return s.UpdatedAt.UTC()
}

func (s SubmissionDTO) toTb() (workflow.TbSubmission, error) {
	start, err := parseOptionalTime("startTime", s.StartTime)
	if err != nil {
		return workflow.TbSubmission{}, err
	}
	end, err := parseOptionalTime("endTime", s.EndTime)
	if err != nil {
		return workflow.TbSubmission{}, err
	}
	return workflow.TbSubmission{
		SubmissionId:       s.ID,
		EmployeeExternalId: s.EmployeeId,
		WorkDate:           s.WorkDate,
		UpdatedAt:          s.updatedAt(),
		StartTime:          start,
		EndTime:            end,
		BreakMinutes:       s.BreakMinutes,
		TravelMinutes:      s.TravelMinutes,
		LicensePlate:       s.LicensePlate,
		Department:         s.Department,
		Overnight:          s.Overnight,
		KmStart:            s.KmStart,
		KmEnd:              s.KmEnd,
		Comment:            s.Comment,
		Extra:              s.Extra,
		Attachments:        s.attachments(),
	}, nil
}

func (s SubmissionDTO) toRs() (workflow.RsSubmission, error) {
	start, err := parseOptionalTime("startTime", s.StartTime)
	if err != nil {
		return workflow.RsSubmission{}, err
	}
	end, err := parseOptionalTime("endTime", s.EndTime)
	if err != nil {
		return workflow.RsSubmission{}, err
	}
	positions := make([]models.RsPosition, 0, len(s.Positions))
	for _, p := range s.Positions {
		positions = append(positions, models.RsPosition{
			Code:         p.Code,
			Description:  p.Description,
			Hours:        p.Hours,
			Quantity:     p.Quantity,
			Unit:         p.Unit,
			PricePerUnit: p.PricePerUnit,
		})
	}
	return workflow.RsSubmission{
		SubmissionId:       s.ID,
		EmployeeExternalId: s.EmployeeId,
		WorkDate:           s.WorkDate,
		UpdatedAt:          s.updatedAt(),
		CustomerId:         s.CustomerId,
		CustomerName:       s.CustomerName,
		StartTime:          start,
		EndTime:            end,
		BreakMinutes:       s.BreakMinutes,
		Positions:          positions,
		DocumentObjectKey:  s.PdfObjectKey,
		Attachments:        s.attachments(),
	}, nil
}
