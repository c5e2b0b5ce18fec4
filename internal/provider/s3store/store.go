// Package s3store reads and writes deployment artifacts in an S3 compatible
// bucket through minio-go. Artifacts carry their content hash in the
// "filesha256" user metadata entry.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/roach88/driftless/internal/canon"
	"github.com/roach88/driftless/internal/deploy"
)

// MetadataContentHash is the user metadata key holding the artifact hash.
const MetadataContentHash = "filesha256"

const codeNoSuchBucket = "NoSuchBucket"

// Config holds connection settings.
type Config struct {
	Endpoint        string // defaults to s3.amazonaws.com
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Insecure        bool
}

// objectAPI is the part of *minio.Client the store uses.
type objectAPI interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Store implements deploy.ObjectLister, deploy.ObjectStater and uploads.
type Store struct {
	api objectAPI
}

// New connects to the object store. Without static keys, credentials come
// from the AWS environment variables or the shared credentials file.
func New(cfg Config) (*Store, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.FileAWSCredentials{},
	})
	if cfg.AccessKeyID != "" {
		creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	}
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: !cfg.Insecure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Store{api: mc}, nil
}

func newWithAPI(api objectAPI) *Store {
	return &Store{api: api}
}

// ListObjects lists every object under prefix. Listings carry no user
// metadata, so ContentHash is left empty.
func (s *Store) ListObjects(ctx context.Context, bucket, prefix string) ([]deploy.ArtifactDescriptor, error) {
	ch := s.api.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	var out []deploy.ArtifactDescriptor
	for obj := range ch {
		if obj.Err != nil {
			return nil, translate(obj.Err, bucket)
		}
		out = append(out, describe(obj))
	}
	return out, nil
}

// StatObject reads object metadata including the content hash. Objects
// uploaded without the metadata entry have an empty ContentHash.
func (s *Store) StatObject(ctx context.Context, bucket, key string) (deploy.ArtifactDescriptor, error) {
	info, err := s.api.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return deploy.ArtifactDescriptor{}, translate(err, bucket)
	}
	a := describe(info)
	a.ContentHash = contentHash(info.UserMetadata)
	return a, nil
}

// Upload stores data under key with its content hash as metadata.
func (s *Store) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (deploy.ArtifactDescriptor, error) {
	hash := canon.BytesSHA256(data)
	if err := s.Put(ctx, bucket, key, data, contentType, hash); err != nil {
		return deploy.ArtifactDescriptor{}, err
	}
	size := int64(len(data))
	return deploy.ArtifactDescriptor{Key: key, ContentHash: hash, Size: &size}, nil
}

// Put stores data under key recording contentHash as its hash. Templates
// are hashed in normalized form, so their recorded hash differs from the
// hash of the uploaded bytes.
func (s *Store) Put(ctx context.Context, bucket, key string, data []byte, contentType, contentHash string) error {
	_, err := s.api.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{MetadataContentHash: contentHash},
	})
	if err != nil {
		return translate(err, bucket)
	}
	return nil
}

func describe(info minio.ObjectInfo) deploy.ArtifactDescriptor {
	a := deploy.ArtifactDescriptor{Key: info.Key}
	if !info.LastModified.IsZero() {
		t := info.LastModified
		a.LastModified = &t
	}
	if info.Size >= 0 {
		size := info.Size
		a.Size = &size
	}
	return a
}

// contentHash finds the hash entry. Servers return user metadata keys in
// canonical header case.
func contentHash(meta map[string]string) string {
	for k, v := range meta {
		if strings.EqualFold(strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-"), MetadataContentHash) {
			return v
		}
	}
	return ""
}

// translate maps a missing bucket to deploy.ErrBucketNotFound, keeping the
// original error in the chain.
func translate(err error, bucket string) error {
	if minio.ToErrorResponse(err).Code == codeNoSuchBucket {
		return fmt.Errorf("bucket %s: %w: %w", bucket, deploy.ErrBucketNotFound, err)
	}
	return err
}

// ErrorCode returns the S3 error code of err, or "" when err did not come
// from an S3 response.
func ErrorCode(err error) string {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code
	}
	return ""
}
