package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Media kinds accepted by the blob store.
const (
	MediaKindActivity = "activity"
	MediaKindSelfie   = "selfie"
)

// BlobStore uploads proof media to durable storage and returns its public
// URL. An upload failure is per-image and non-fatal to the pipeline.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, kind, ownerID string) (string, error)
}

// S3Store stores proof media in an S3 bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	region string
}

// NewS3Store creates an S3-backed blob store. An empty access key falls back
// to the default credential chain; a non-empty endpoint targets an
// S3-compatible service.
func NewS3Store(ctx context.Context, region, bucket, accessKey, secretKey, endpoint string) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: bucket, region: region}, nil
}

// Upload stores one image under a key scoped by owner, kind and capture time
// so concurrent submissions never collide.
func (s *S3Store) Upload(ctx context.Context, data []byte, kind, ownerID string) (string, error) {
	key := fmt.Sprintf("%s/%s/%d.jpg", ownerID, kind, time.Now().UnixMilli())

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s image: %w", kind, err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}
