package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/okian/resumerank/internal/domain/model"
)

// Default MinIO configuration constants.
const (
	DefaultPresignExpiry = 15 * time.Minute
	DefaultRegion        = "us-east-1"
	defaultContentType   = "application/octet-stream"
)

// MinioConfig holds the connection settings of an S3-compatible endpoint.
type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	Region        string
	PresignExpiry time.Duration
}

// Minio is a Gateway backed by MinIO or any S3-compatible store.
type Minio struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewMinio creates the client. It does not contact the server; call EnsureBucket for that.
func NewMinio(cfg MinioConfig) (*Minio, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	// A fixed region spares a bucket-location round trip before presigning.
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	return &Minio{client: client, bucket: cfg.Bucket, expiry: expiry}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *Minio) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Put uploads the bytes unchanged. The object name is the reference.
func (s *Minio) Put(ctx context.Context, key string, f model.File) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	ct := f.ContentType
	if ct == "" {
		ct = defaultContentType
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(f.Data), f.Size(), minio.PutObjectOptions{
		ContentType:  ct,
		UserMetadata: map[string]string{"file-name": f.Name},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return key, nil
}

func (s *Minio) Open(ctx context.Context, ref string) (model.File, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return model.File{}, s.mapErr(ref, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return model.File{}, s.mapErr(ref, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return model.File{}, fmt.Errorf("failed to read %s: %w", ref, err)
	}
	name := info.UserMetadata["File-Name"]
	if name == "" {
		name = ref
	}
	return model.File{Name: name, ContentType: info.ContentType, Data: data}, nil
}

func (s *Minio) Remove(ctx context.Context, ref string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", ref, err)
	}
	return nil
}

// URL presigns a GET that downloads under the original file name.
func (s *Minio) URL(ctx context.Context, ref string, fileName string) (string, error) {
	params := url.Values{}
	if fileName != "" {
		if cd := mime.FormatMediaType("attachment", map[string]string{"filename": fileName}); cd != "" {
			params.Set("response-content-disposition", cd)
		}
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, ref, s.expiry, params)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", ref, err)
	}
	return u.String(), nil
}

func (s *Minio) mapErr(ref string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return fmt.Errorf("failed to open %s: %w", ref, err)
}
