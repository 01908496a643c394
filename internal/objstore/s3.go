// Package objstore provides file stores for attachments and generated
// images: S3 for deployments, local disk for development.
package objstore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/leofalp/conduit/core/chat"
)

const uploadTimeout = 2 * time.Minute

// S3Store saves files to an S3 bucket and returns their public URLs.
type S3Store struct {
	uploader *manager.Uploader
	region   string
	bucket   string
}

// S3Config holds the credentials and target bucket for an S3Store.
type S3Config struct {
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
}

// NewS3Store builds an S3-backed file store.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("AWS credentials not set")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("AWS region not set")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Store{
		uploader: manager.NewUploader(client),
		region:   cfg.Region,
		bucket:   cfg.Bucket,
	}, nil
}

// Save uploads the payload under a fresh key and returns its reference.
// The original file name is kept as a suffix so downloads stay readable.
func (s *S3Store) Save(ctx context.Context, fileName, contentType string, data []byte) (chat.StoredFile, error) {
	key := fmt.Sprintf("%s/%s", uuid.NewString(), fileName)

	uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	_, err := s.uploader.Upload(uploadCtx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return chat.StoredFile{}, fmt.Errorf("s3 upload failed: %w", err)
	}

	return chat.StoredFile{
		ID:  key,
		URL: fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key),
	}, nil
}
