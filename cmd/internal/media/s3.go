package media

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
)

// S3Uploader stores chat images in an S3-compatible bucket (AWS, SeaweedFS,
// minio) and returns the public object URL.
type S3Uploader struct {
	api       *s3.Client
	bucket    string
	publicURL string
}

// S3Config carries the environment-driven S3 settings.
type S3Config struct {
	Endpoint       string
	Region         string
	AccessKey      string
	SecretKey      string
	Bucket         string
	DisableTLS     bool
	ForcePathStyle bool

	// PublicBaseURL overrides the URL prefix for stored objects.
	// Defaults to <endpoint>/<bucket>.
	PublicBaseURL string
}

// LoadS3ConfigFromEnv reads S3 settings from environment variables.
//
// Required:
//   - QUAD_S3_ENDPOINT: host:port or full URL of the S3 endpoint.
//   - QUAD_S3_ACCESS_KEY / QUAD_S3_SECRET_KEY: static credentials.
//   - QUAD_S3_BUCKET: target bucket.
//
// Optional:
//   - QUAD_S3_REGION (default "us-east-1").
//   - QUAD_S3_DISABLE_TLS (bool; default false).
//   - QUAD_S3_FORCE_PATH_STYLE (bool; default true).
//   - QUAD_S3_PUBLIC_BASE_URL.
func LoadS3ConfigFromEnv() (S3Config, error) {
	cfg := S3Config{
		Endpoint:       strings.TrimSpace(os.Getenv("QUAD_S3_ENDPOINT")),
		Region:         strings.TrimSpace(os.Getenv("QUAD_S3_REGION")),
		AccessKey:      os.Getenv("QUAD_S3_ACCESS_KEY"),
		SecretKey:      os.Getenv("QUAD_S3_SECRET_KEY"),
		Bucket:         strings.TrimSpace(os.Getenv("QUAD_S3_BUCKET")),
		ForcePathStyle: true,
		PublicBaseURL:  strings.TrimSpace(os.Getenv("QUAD_S3_PUBLIC_BASE_URL")),
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Endpoint == "" {
		return S3Config{}, errors.New("QUAD_S3_ENDPOINT is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return S3Config{}, errors.New("QUAD_S3_ACCESS_KEY and QUAD_S3_SECRET_KEY are required")
	}
	if cfg.Bucket == "" {
		return S3Config{}, errors.New("QUAD_S3_BUCKET is required")
	}

	cfg.DisableTLS, _ = strconv.ParseBool(os.Getenv("QUAD_S3_DISABLE_TLS"))
	if v := strings.TrimSpace(os.Getenv("QUAD_S3_FORCE_PATH_STYLE")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.ForcePathStyle = parsed
		}
	}
	return cfg, nil
}

// NewS3Uploader constructs an Uploader backed by an S3-compatible endpoint.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	endpoint := cfg.Endpoint
	scheme := "https"
	if cfg.DisableTLS {
		scheme = "http"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = fmt.Sprintf("%s://%s", scheme, endpoint)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	)
	if err != nil {
		return nil, err
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	public := cfg.PublicBaseURL
	if public == "" {
		public = strings.TrimRight(endpoint, "/") + "/" + cfg.Bucket
	}

	return &S3Uploader{
		api:       api,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(public, "/"),
	}, nil
}

// Upload puts the payload under chat/<ulid>.<ext> and returns its public URL.
func (u *S3Uploader) Upload(ctx context.Context, img Image) (string, error) {
	if u == nil || u.api == nil {
		return "", fmt.Errorf("%w: nil uploader", ErrUploadFailed)
	}
	if len(img.Data) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrUploadFailed)
	}

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	contentType := img.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(img.Data)
	}
	key := "chat/" + id.String() + extensionFor(contentType)

	_, err = u.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return u.publicURL + "/" + key, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
