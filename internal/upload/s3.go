package upload

import (
	"bytes"
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Uploader stores attachments in an S3 bucket and serves them from its
// public URL.
type S3Uploader struct {
	uploader *manager.Uploader
	bucket   string
	region   string
}

func NewS3Uploader(ctx context.Context, bucket, region string) (*S3Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Uploader{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		region:   region,
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, key, mimeType string, data []byte) (string, error) {
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &u.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload: %w", err)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key), nil
}
