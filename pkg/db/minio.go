package db

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/hephaex/Barami/pkg/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const CompressionLevel = gzip.BestSpeed

type MinioClient struct {
	*minio.Client
	bucket string
}

func NewMinioClient(cfg *config.Config) (*MinioClient, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	// Verify connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := client.ListBuckets(ctx); err != nil {
		return nil, fmt.Errorf("failed to list MinIO buckets: %w", err)
	}

	if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
		// Bucket might already exist, which is fine
		exists, errBucketExists := client.BucketExists(ctx, cfg.MinioBucket)
		if errBucketExists != nil || !exists {
			return nil, fmt.Errorf("failed to create export bucket: %w", err)
		}
	}

	return &MinioClient{Client: client, bucket: cfg.MinioBucket}, nil
}

func (m *MinioClient) HealthCheck(ctx context.Context) error {
	_, err := m.ListBuckets(ctx)
	return err
}

// ExportArchive keeps a compressed copy of every log export.
type ExportArchive struct {
	client *minio.Client
	bucket string
}

func NewExportArchive(m *MinioClient) *ExportArchive {
	return &ExportArchive{client: m.Client, bucket: m.bucket}
}

// ObjectName is exports/{yyyy}/{mm}/{dd}/{name}.gz.
func ObjectName(name string, at time.Time) string {
	return path.Join("exports", at.UTC().Format("2006/01/02"), name+".gz")
}

func (a *ExportArchive) Archive(ctx context.Context, name string, body []byte) (string, error) {
	var buf bytes.Buffer
	gzipWriter, err := gzip.NewWriterLevel(&buf, CompressionLevel)
	if err != nil {
		return "", fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := gzipWriter.Write(body); err != nil {
		gzipWriter.Close()
		return "", fmt.Errorf("failed to compress export: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to close gzip writer: %w", err)
	}

	objectName := ObjectName(name, time.Now())
	_, err = a.client.PutObject(ctx, a.bucket, objectName, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType:     "application/gzip",
		ContentEncoding: "gzip",
		UserMetadata: map[string]string{
			"original-name": name,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export to MinIO: %w", err)
	}

	return objectName, nil
}
