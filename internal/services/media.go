package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/Ananth-NQI/unibox-backend/internal/models"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// MediaStore uploads attachment files to S3 and returns descriptors that
// can be passed straight into send requests.
type MediaStore struct {
	client s3API
	bucket string
	region string
	logger *slog.Logger
	now    func() time.Time
}

func NewMediaStore(awsCfg aws.Config, bucket string, logger *slog.Logger) *MediaStore {
	return newMediaStore(s3.NewFromConfig(awsCfg), bucket, awsCfg.Region, logger)
}

func newMediaStore(client s3API, bucket, region string, logger *slog.Logger) *MediaStore {
	return &MediaStore{client: client, bucket: bucket, region: region, logger: logger, now: time.Now}
}

func (m *MediaStore) Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (*models.AttachmentInput, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := m.objectKey(filename)

	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
		Metadata: map[string]string{
			"original_name": filename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("S3 PutObject %s/%s: %w", m.bucket, key, err)
	}

	m.logger.Info("attachment uploaded", "bucket", m.bucket, "key", key, "size", size)
	return &models.AttachmentInput{
		Filename:    filename,
		URL:         fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", m.bucket, m.region, key),
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (m *MediaStore) objectKey(filename string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, path.Base(filename))
	if name == "" || name == "." || name == "/" {
		name = "file"
	}
	return fmt.Sprintf("attachments/%s/%s-%s", m.now().UTC().Format("2006/01/02"), uuid.NewString(), name)
}
