package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalExporter writes the partition below BaseDir. Without Fetch, each
// attachment becomes a text file naming its object key.
type LocalExporter struct {
	BaseDir string
	Fetch   AttachmentFetcher
}

func NewLocalExporter(baseDir string, fetch AttachmentFetcher) *LocalExporter {
	return &LocalExporter{BaseDir: baseDir, Fetch: fetch}
}

func (e *LocalExporter) ExportWorkdayFiles(ctx context.Context, b Bundle) (string, error) {
	if e.BaseDir == "" {
		return "", fmt.Errorf("export base directory is not configured")
	}
	prefix, err := PartitionPrefix(b.CompanyId, b.Employee, b.Workday.WorkDate)
	if err != nil {
		return "", err
	}
	targetDir := filepath.Join(e.BaseDir, filepath.FromSlash(prefix))
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	for _, f := range documentFiles(b) {
		if err := os.WriteFile(filepath.Join(targetDir, f.name), f.data, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	for _, a := range b.Attachments {
		data, err := e.attachmentBytes(ctx, a.ObjectKey)
		if err != nil {
			return "", fmt.Errorf("fetch attachment %s: %w", a.ObjectKey, err)
		}
		name := AttachmentName(a)
		if err := os.WriteFile(filepath.Join(targetDir, name), data, 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}
	return targetDir, nil
}

func (e *LocalExporter) attachmentBytes(ctx context.Context, objectKey string) ([]byte, error) {
	if e.Fetch == nil {
		return []byte("Attachment placeholder for object key: " + objectKey), nil
	}
	return e.Fetch(ctx, objectKey)
}
