package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSTier mirrors report JSON into a Google Cloud Storage bucket. Grounded
// on the teacher's internal/storage/gcs/blob_store.go.
type GCSTier struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSTier wraps an existing storage.Client for the given bucket/prefix.
func NewGCSTier(client *storage.Client, bucket, prefix string) (*GCSTier, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GCSTier{client: client, bucket: bucket, prefix: prefix}, nil
}

// PutReport implements SecondaryTier.
func (t *GCSTier) PutReport(ctx context.Context, jobID string, data []byte) (string, error) {
	objectPath := fmt.Sprintf("%s%s.json", t.prefix, jobID)
	writer := t.client.Bucket(t.bucket).Object(objectPath).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("copy report object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close report writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", t.bucket, objectPath), nil
}
