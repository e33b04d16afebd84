package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/adonhq/assessment-backend/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store writes objects to one bucket.
type S3Store struct {
	client  S3API
	bucket  string
	baseURL string
}

// NewS3Store wraps an existing client. baseURL is the public prefix of the
// bucket; see VirtualHostURL for the default AWS form.
func NewS3Store(client S3API, bucket, baseURL string) *S3Store {
	return &S3Store{client: client, bucket: bucket, baseURL: baseURL}
}

// VirtualHostURL is the default public address of a bucket.
func VirtualHostURL(bucket, region string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
}

// NewS3StoreFromConfig builds the client from application config. Static
// credentials are used when both keys are set, otherwise the default AWS
// chain applies. Retries are disabled: a failed write is reported, never
// replayed behind the caller's back.
func NewS3StoreFromConfig(ctx context.Context, cfg *config.Config) (*S3Store, error) {
	if cfg.AWSBucket == "" {
		return nil, errors.New("AWS_S3_BUCKET_NAME is not set")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.S3PublicBaseURL
	if baseURL == "" {
		baseURL = VirtualHostURL(cfg.AWSBucket, cfg.AWSRegion)
	}
	return NewS3Store(client, cfg.AWSBucket, baseURL), nil
}

func (s *S3Store) Put(ctx context.Context, namespace, name string, body io.Reader, size int64, contentType string) error {
	key, err := Key(namespace, name)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Delete(ctx context.Context, namespace, name string) error {
	key, err := Key(namespace, name)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Address(namespace, name string) string {
	key, err := Key(namespace, name)
	if err != nil {
		return ""
	}
	return joinURL(s.baseURL, key)
}
