package s3backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"

	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
)

// Uploader is the part of Client the photo backup job needs.
type Uploader interface {
	UploadFile(ctx context.Context, localFilePath, objectKey string) (*UploadResult, error)
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
}

type UploadResult struct {
	BucketName  string
	ObjectKey   string
	Size        int64
	ContentType string
}

// Client copies listing photos into one bucket.
type Client struct {
	api    *s3.Client
	bucket string
}

// NewClient connects to the configured bucket. Outside production a missing
// bucket is created.
func NewClient(cfg *Config) (*Client, error) {
	if !cfg.IsEnabled() {
		return nil, errors.New("S3 backup is disabled")
	}
	ctx := context.Background()

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// S3-compatible providers (B2, MinIO) want path-style addressing
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	c := &Client{api: api, bucket: cfg.BucketName}
	if err := c.ensureBucket(ctx, cfg); err != nil {
		return nil, err
	}
	log.Infof("[S3Backup] listing photos will be copied to bucket %s", c.bucket)
	return c, nil
}

func (c *Client) ensureBucket(ctx context.Context, cfg *Config) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		return nil
	}
	if !env.IsDev() {
		return fmt.Errorf("bucket %s not accessible: %w", c.bucket, err)
	}

	log.Warnf("[S3Backup] bucket %s missing, creating it", c.bucket)
	in := &s3.CreateBucketInput{Bucket: aws.String(c.bucket)}
	if cfg.EndpointURL == "" && cfg.Region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(cfg.Region),
		}
	}
	if _, err := c.api.CreateBucket(ctx, in); err != nil {
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}
	return nil
}

// UploadFile puts a local photo under objectKey.
func (c *Client) UploadFile(ctx context.Context, localFilePath, objectKey string) (*UploadResult, error) {
	f, err := os.Open(localFilePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", localFilePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", localFilePath, err)
	}
	contentType := photoContentType(localFilePath)

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(objectKey),
		Body:          f,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(info.Size()),
		Metadata:      map[string]string{"source": "hangarlinks-listing-photo"},
	})
	if err != nil {
		return nil, fmt.Errorf("put s3://%s/%s: %w", c.bucket, objectKey, err)
	}
	log.Debugf("[S3Backup] uploaded s3://%s/%s (%d bytes)", c.bucket, objectKey, info.Size())

	return &UploadResult{
		BucketName:  c.bucket,
		ObjectKey:   objectKey,
		Size:        info.Size(),
		ContentType: contentType,
	}, nil
}

func (c *Client) ObjectExists(ctx context.Context, objectKey string) (bool, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	var notFound *types.NotFound
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &notFound):
		return false, nil
	default:
		return false, fmt.Errorf("head s3://%s/%s: %w", c.bucket, objectKey, err)
	}
}

func photoContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return "application/octet-stream"
}
