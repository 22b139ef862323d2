// Package media uploads message assets and avatars to the object store and
// hands back the download URLs that become message content.
package media

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/config"
)

// Store uploads blobs to an S3-compatible bucket.
type Store struct {
	uploader *manager.Uploader
	bucket   string
	region   string
	endpoint string
	logger   *zap.Logger
}

// NewStore builds a Store from the account's storage configuration.
// Endpoint is non-empty for S3-compatible servers (MinIO and friends).
func NewStore(ctx context.Context, cfg config.Storage, logger *zap.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Store{
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		endpoint: cfg.Endpoint,
		logger:   logger,
	}, nil
}

// Upload writes data under key and returns its download URL.
func (s *Store) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	s.logger.Info("blob uploaded", zap.String("key", key), zap.Int("bytes", len(data)))
	return s.downloadURL(key), nil
}

func (s *Store) downloadURL(key string) string {
	escaped := escapeKey(key)
	if s.endpoint != "" {
		return strings.TrimRight(s.endpoint, "/") + "/" + s.bucket + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped)
}

// escapeKey escapes each key segment but keeps the slashes that structure
// the key.
func escapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}

// ObjectKey builds a collision-free object key under prefix/scope, e.g.
// images/{conversationId}/{uuid}.jpg.
func ObjectKey(prefix, scope, ext string) string {
	return fmt.Sprintf("%s/%s/%s%s", prefix, scope, uuid.NewString(), ext)
}
