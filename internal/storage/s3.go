package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/tbourn/go-telehealth-backend/internal/config"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds an S3 client from cfg. Static credentials are used when
// both keys are set; otherwise the default AWS provider chain applies.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if strings.TrimSpace(cfg.AccessKeyID) != "" && strings.TrimSpace(cfg.SecretAccessKey) != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	}), nil
}

// S3Store writes report files to a bucket.
type S3Store struct {
	client S3API
	cfg    config.S3Config
	newID  func() string
}

// NewS3Store returns a store for cfg.Bucket. A nil client or empty bucket
// yields a disabled store.
func NewS3Store(client S3API, cfg config.S3Config) *S3Store {
	return &S3Store{client: client, cfg: cfg, newID: uuid.NewString}
}

// Enabled reports whether the store can accept writes.
func (s *S3Store) Enabled() bool {
	return s != nil && s.client != nil && s.cfg.Bucket != ""
}

// Put uploads the body under reports/<uuid><ext>.
func (s *S3Store) Put(ctx context.Context, in PutInput) (Object, error) {
	if !s.Enabled() {
		return Object{}, ErrDisabled
	}
	key := "reports/" + s.newID() + in.Ext
	if s.cfg.Prefix != "" {
		key = s.cfg.Prefix + "/" + key
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(in.Body),
		ContentType: aws.String(in.ContentType),
	})
	if err != nil {
		return Object{}, fmt.Errorf("storage: s3 put %s: %w", key, err)
	}
	return Object{Key: key, URL: s.objectURL(key), Method: MethodS3}, nil
}

func (s *S3Store) objectURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if s.cfg.PublicBaseURL != "" {
		return s.cfg.PublicBaseURL + "/" + escaped
	}
	if s.cfg.Endpoint != "" {
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, escaped)
}
