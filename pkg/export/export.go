// Package export writes interview artifacts (analyses, adaptive interview results) to
// object storage.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"discovery/pkg/logx"
)

// ErrNotFound is returned by Get when no artifact exists under the key.
var ErrNotFound = errors.New("artifact not found")

// Artifact kinds used as key prefixes.
const (
	KindAnalysis = "analyses"
	KindAdaptive = "adaptive"
)

// Exporter persists a JSON artifact under key.
type Exporter interface {
	Export(ctx context.Context, key string, v any) error
}

// Key builds the object key for an artifact: <kind>/<id>.json.
func Key(kind, id string) string {
	return strings.Trim(kind, "/") + "/" + strings.TrimSpace(id) + ".json"
}

// NopExporter discards artifacts.
type NopExporter struct{}

// Export implements Exporter.
func (NopExporter) Export(context.Context, string, any) error { return nil }

// MemoryExporter keeps artifacts in memory. Used by tests and dry runs.
type MemoryExporter struct {
	mu    sync.Mutex
	items map[string][]byte
}

// NewMemoryExporter creates an empty in-memory exporter.
func NewMemoryExporter() *MemoryExporter {
	return &MemoryExporter{items: make(map[string][]byte)}
}

// Export implements Exporter.
func (m *MemoryExporter) Export(_ context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal artifact %s: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = data
	return nil
}

// Get returns the stored bytes for key.
func (m *MemoryExporter) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

// Keys lists stored keys in order.
func (m *MemoryExporter) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// S3Config configures an S3-compatible exporter.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Exporter writes artifacts to an S3-compatible bucket through minio.
type S3Exporter struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
	logger   *logx.Logger
}

// NewS3Exporter validates cfg and creates the minio client. The bucket is created
// lazily on first export.
func NewS3Exporter(cfg S3Config) (*S3Exporter, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Exporter{
		client: client,
		bucket: bucket,
		region: region,
		logger: logx.NewLogger("export"),
	}, nil
}

func (s *S3Exporter) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Export implements Exporter.
func (s *S3Exporter) Export(ctx context.Context, key string, v any) error {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return fmt.Errorf("artifact key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact %s: %w", key, err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	s.logger.Info("exported %s (%d bytes) to bucket %s", key, len(data), s.bucket)
	return nil
}

// Get reads an artifact back.
func (s *S3Exporter) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}
