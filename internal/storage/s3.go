package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/postdesk/internal/logger"
)

// S3Config holds S3-compatible storage configuration
type S3Config struct {
	Endpoint        string // e.g. https://xxx.r2.cloudflarestorage.com
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicURL       string // optional CDN base URL
	BasePath        string // prefix for all objects (e.g. "uploads/")
	ForcePathStyle  bool   // true for MinIO/R2
}

// S3Store stores blobs in an S3/R2/MinIO bucket.
type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
	basePath  string
}

// NewS3Store creates a new S3-compatible store
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}

	client := s3.New(s3.Options{}, func(o *s3.Options) {
		o.Region = cfg.Region
		if cfg.AccessKeyID != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.amazonaws.com", cfg.Bucket)
	}

	basePath := strings.Trim(cfg.BasePath, "/")
	if basePath != "" {
		basePath += "/"
	}

	logger.Get().Info().
		Str("bucket", cfg.Bucket).
		Str("endpoint", cfg.Endpoint).
		Msg("S3 storage client initialized")

	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: publicURL,
		basePath:  basePath,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.basePath + key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	return s.URL(key), nil
}

func (s *S3Store) Copy(ctx context.Context, srcKey, dstKey string) (string, error) {
	srcKey, err := CleanKey(srcKey)
	if err != nil {
		return "", err
	}
	dstKey, err = CleanKey(dstKey)
	if err != nil {
		return "", err
	}

	source := url.PathEscape(s.bucket) + "/" + escapeKey(s.basePath+srcKey)
	if _, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(s.basePath + dstKey),
		CopySource: aws.String(source),
	}); err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return "", fmt.Errorf("s3 copy %s: %w", srcKey, ErrNotFound)
		}
		return "", fmt.Errorf("s3 copy failed: %w", err)
	}
	return s.URL(dstKey), nil
}

// Delete removes a blob; S3 already treats missing keys as success.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.basePath + key),
	}); err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]Object, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.basePath + prefix),
	})

	var objects []Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list failed: %w", err)
		}
		for _, item := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(item.Key), s.basePath)
			obj := Object{
				Key:  key,
				URL:  s.URL(key),
				Size: aws.ToInt64(item.Size),
			}
			if item.LastModified != nil {
				obj.UploadedAt = *item.LastModified
			}
			objects = append(objects, obj)
		}
	}
	return objects, nil
}

func (s *S3Store) URL(key string) string {
	return joinURL(s.publicURL+"/"+strings.TrimSuffix(s.basePath, "/"), key)
}

func (s *S3Store) KeyFromURL(rawURL string) (string, bool) {
	return keyFromPublicURL(s.publicURL+"/"+strings.TrimSuffix(s.basePath, "/"), rawURL)
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
