// Package archive stores generated curve reports in S3-compatible object
// storage. When no bucket is configured the NoopArchiver is used and reports
// are not retained.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperengineering/digitaltwin/internal/config"
	"github.com/hyperengineering/digitaltwin/internal/types"
)

// Archiver retains generated reports.
type Archiver interface {
	// Put stores the report generated from the given data snapshot.
	Put(ctx context.Context, userID, snapshotHash string, report *types.DigitalTwinCurveOutput) error
}

// s3Client defines the minimal minio.Client operations used by S3Archiver.
type s3Client interface {
	PutObject(ctx context.Context, bucket, objectName string, reader io.Reader, size int64, contentType string) error
}

// minioClientWrapper wraps *minio.Client to satisfy the s3Client interface.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) PutObject(ctx context.Context, bucket, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := w.client.PutObject(ctx, bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// S3Archiver writes reports as JSON objects.
type S3Archiver struct {
	client s3Client
	bucket string
}

// Put uploads the report JSON under its object key.
func (a *S3Archiver) Put(ctx context.Context, userID, snapshotHash string, report *types.DigitalTwinCurveOutput) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	key := ObjectKey(userID, snapshotHash)
	if err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return fmt.Errorf("archive report to S3: %w", err)
	}
	return nil
}

// NoopArchiver is used when archive storage is not configured.
type NoopArchiver struct{}

// Put is a no-op.
func (NoopArchiver) Put(context.Context, string, string, *types.DigitalTwinCurveOutput) error {
	return nil
}

// New creates the appropriate Archiver based on configuration.
// Returns NoopArchiver when bucket is empty, S3Archiver otherwise.
func New(cfg config.ArchiveConfig) (Archiver, error) {
	if cfg.Bucket == "" {
		return NoopArchiver{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}
	endpoint := stripScheme(cfg.Endpoint, &useSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Archiver{
		client: &minioClientWrapper{client: client},
		bucket: cfg.Bucket,
	}, nil
}

// stripScheme removes an http(s):// prefix from endpoint, which minio
// rejects, and sets useSSL to match the scheme when one was given.
func stripScheme(endpoint string, useSSL *bool) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		*useSSL = true
		return strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		*useSSL = false
		return strings.TrimPrefix(endpoint, "http://")
	}
	return endpoint
}

// ObjectKey returns the object key for a report.
// Convention: reports/{user_id}/{snapshot_hash}.json
func ObjectKey(userID, snapshotHash string) string {
	return "reports/" + userID + "/" + snapshotHash + ".json"
}
