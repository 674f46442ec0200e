package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GetGCSClient prefers ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
// Set GCS_CREDENTIALS_JSON to provide explicit credentials, e.g. locally.
func GetGCSClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// ContentTypeFor detects the MIME type, fixing up office formats that sniff as zip.
func ContentTypeFor(objectName string, data []byte) string {
	mimeType := http.DetectContentType(data)
	if mimeType == "application/zip" {
		if strings.HasSuffix(objectName, ".docx") {
			return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		}
		if strings.HasSuffix(objectName, ".xlsx") {
			return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		}
	}
	return mimeType
}

func UploadBytesToGCS(ctx context.Context, client *storage.Client, bucketName, objectName string, data []byte) error {
	if client == nil {
		return errors.New("gcs client is nil")
	}
	if bucketName == "" {
		return errors.New("GCS_BUCKET is required")
	}

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = ContentTypeFor(objectName, data)

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to upload bytes to Google Cloud Storage: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// CopyObjectInGCS copies within one bucket.
func CopyObjectInGCS(ctx context.Context, client *storage.Client, bucketName, srcObject, dstObject string) error {
	if client == nil {
		return errors.New("gcs client is nil")
	}
	bucket := client.Bucket(bucketName)
	if _, err := bucket.Object(dstObject).CopierFrom(bucket.Object(srcObject)).Run(ctx); err != nil {
		return fmt.Errorf("copy %q -> %q: %w", srcObject, dstObject, err)
	}
	return nil
}

func ReadObjectFromGCS(ctx context.Context, client *storage.Client, bucketName, objectName string) ([]byte, error) {
	if client == nil {
		return nil, errors.New("gcs client is nil")
	}
	rc, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
