package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/threadfeed/threadfeed/pkg/threadfeed"
)

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
	PresignDuration int    // Duration in seconds for presigned URLs (default: 900)

	// MinIO-specific options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// Backend is an AWS S3 implementation of the threadfeed.BlobStore interface
type Backend struct {
	client          *s3.Client
	bucket          string
	presignClient   *s3.PresignClient
	presignDuration time.Duration
}

// New creates a new S3 storage backend
func New(config Config) (threadfeed.BlobStore, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	if config.Region == "" {
		config.Region = "us-east-1" // Default region
	}

	if config.PresignDuration <= 0 {
		config.PresignDuration = 900 // Default to 15 minutes
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			),
		))
	}

	// Custom endpoint for S3-compatible services like MinIO
	if config.Endpoint != "" {
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               config.Endpoint,
					SigningRegion:     config.Region,
					HostnameImmutable: true,
				}, nil
			})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(customResolver))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if config.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	presignClient := s3.NewPresignClient(s3Client)

	if config.CreateBucketIfNotExist {
		_, err := s3Client.HeadBucket(context.Background(), &s3.HeadBucketInput{
			Bucket: aws.String(config.Bucket),
		})

		if err != nil {
			_, err = s3Client.CreateBucket(context.Background(), &s3.CreateBucketInput{
				Bucket: aws.String(config.Bucket),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create bucket: %w", err)
			}
		}
	}

	return &Backend{
		client:          s3Client,
		bucket:          config.Bucket,
		presignClient:   presignClient,
		presignDuration: time.Duration(config.PresignDuration) * time.Second,
	}, nil
}

// GetUploadURL returns a pre-signed URL for writing one object. The URL is
// valid for the configured presign duration and single-use by contract:
// the service issues one per attachment and never hands the same key out
// twice.
func (b *Backend) GetUploadURL(ctx context.Context, objectKey string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	}

	result, err := b.presignClient.PresignPutObject(ctx, input,
		s3.WithPresignExpires(b.presignDuration))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return result.URL, nil
}

// Upload uploads content directly to S3
func (b *Backend) Upload(ctx context.Context, objectKey, mimeType string, reader io.Reader) error {
	uploader := manager.NewUploader(b.client)

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
		Body:   reader,
	}
	if mimeType != "" {
		input.ContentType = aws.String(mimeType)
	}

	_, err := uploader.Upload(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}

	return nil
}

// GetDownloadURL returns a pre-signed URL for reading an object
func (b *Backend) GetDownloadURL(ctx context.Context, objectKey string) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	}

	result, err := b.presignClient.PresignGetObject(ctx, input,
		s3.WithPresignExpires(b.presignDuration))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return result.URL, nil
}

// Download downloads content directly from S3
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	}

	result, err := b.client.GetObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to download object: %w", err)
	}

	return result.Body, nil
}

// Delete deletes content from S3
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey),
	}

	_, err := b.client.DeleteObject(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}
