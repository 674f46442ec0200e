package exporter

import (
	"context"
	"errors"
	"path"

	"cloud.google.com/go/storage"
	"github.com/montron/pm_backend/config"
	"github.com/montron/pm_backend/utils"
)

// GCSExporter uploads documents into the partition and copies attachments
// server side. Attachment object keys are read from the same bucket.
type GCSExporter struct {
	Client *storage.Client
	Bucket string
}

func NewGCSExporter(client *storage.Client, bucket string) *GCSExporter {
	return &GCSExporter{Client: client, Bucket: bucket}
}

func (e *GCSExporter) ExportWorkdayFiles(ctx context.Context, b Bundle) (string, error) {
	if e.Bucket == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	prefix, err := PartitionPrefix(b.CompanyId, b.Employee, b.Workday.WorkDate)
	if err != nil {
		return "", err
	}
	for _, f := range documentFiles(b) {
		if err := utils.UploadBytesToGCS(ctx, e.Client, e.Bucket, path.Join(prefix, f.name), f.data); err != nil {
			return "", err
		}
	}
	for _, a := range b.Attachments {
		if err := utils.CopyObjectInGCS(ctx, e.Client, e.Bucket, a.ObjectKey, path.Join(prefix, AttachmentName(a))); err != nil {
			return "", err
		}
	}
	return "gs://" + e.Bucket + "/" + prefix, nil
}

// GCSFetcher reads attachment bytes from a bucket, for use with LocalExporter.
func GCSFetcher(client *storage.Client, bucket string) AttachmentFetcher {
	return func(ctx context.Context, objectKey string) ([]byte, error) {
		return utils.ReadObjectFromGCS(ctx, client, bucket, objectKey)
	}
}

// FromSettings builds the configured exporter. The GCS client is only
// created when needed; a local exporter with a bucket fetches attachments from it.
func FromSettings(ctx context.Context, settings config.ExportSettings) (Exporter, error) {
	if settings.Provider != config.StorageProviderGCS && settings.Bucket == "" {
		return NewLocalExporter(settings.BaseDir, nil), nil
	}
	client, err := utils.GetGCSClient(ctx)
	if err != nil {
		return nil, err
	}
	if settings.Provider == config.StorageProviderGCS {
		return NewGCSExporter(client, settings.Bucket), nil
	}
	return NewLocalExporter(settings.BaseDir, GCSFetcher(client, settings.Bucket)), nil
}
