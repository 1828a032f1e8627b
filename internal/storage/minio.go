// Package storage puts profile photos into an S3 compatible bucket (MinIO,
// AWS S3, Cloudflare R2).
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sony/gobreaker"

	"github.com/VYBRANDMEDIA/nannygo/internal/breaker"
	"github.com/VYBRANDMEDIA/nannygo/internal/config"
)

var ErrNotConfigured = errors.New("object storage endpoint is not configured")

// MinioStore implements profiles.ObjectStore.
type MinioStore struct {
	client  *mclient.Client
	bucket  string
	baseURL string
	cb      *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// New connects to the endpoint and fails fast when the bucket is missing.
// The endpoint may carry a scheme, which then overrides cfg.UseSSL.
func New(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*MinioStore, error) {
	const op = "storage.New"
	if cfg.Endpoint == "" {
		return nil, ErrNotConfigured
	}
	s, err := newStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	exists, err := s.client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, cfg.Bucket)
	}
	return s, nil
}

func newStore(cfg config.StorageConfig, logger *slog.Logger) (*MinioStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	endpoint, secure := cfg.Endpoint, cfg.UseSSL
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}
	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = strings.TrimRight(client.EndpointURL().String(), "/") + "/" + cfg.Bucket
	}
	return &MinioStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: base,
		cb:      breaker.New("object-store", 30*time.Second, logger),
		logger:  logger,
	}, nil
}

// Put uploads data under key and returns the object's public URL.
func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), mclient.PutObjectOptions{
			ContentType:  contentType,
			CacheControl: "public, max-age=31536000, immutable",
		})
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	s.logger.InfoContext(ctx, "object stored", slog.String("key", key), slog.Int("bytes", len(data)))
	return s.URL(key), nil
}

func (s *MinioStore) URL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}
