package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"fanwiki/internal/config"
)

type Bucket int

const (
	BucketPublic Bucket = iota
	BucketBackup
)

// TempPrefix holds objects uploaded through presigned URLs and not yet owned by a post.
const TempPrefix = "temp/"

type Storage interface {
	PresignPut(ctx context.Context, folder string) (string, error)
	Get(ctx context.Context, bucket Bucket, key string) ([]byte, string, error)
	Put(ctx context.Context, bucket Bucket, key string, data []byte, mime string) error
	DeleteMany(ctx context.Context, bucket Bucket, keys []string) error
	ListOlderThan(ctx context.Context, bucket Bucket, prefix string, age time.Duration) ([]string, error)
	PublicURL(key string) string
}

type MinIOClient struct {
	client *minio.Client
	// signer presigns URLs against the host clients can reach; it is client itself in production.
	signer     *minio.Client
	buckets    map[Bucket]string
	publicBase string
	presignTTL time.Duration
}

func NewMinIOClient(ctx context.Context, cfg *config.Config) (*MinIOClient, error) {
	creds := credentials.NewStaticV4(cfg.S3.AccessKey, cfg.S3.SecretKey, "")

	client, err := minio.New(cfg.S3.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.S3.UseSSL,
		Region: cfg.S3.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	m := &MinIOClient{
		client: client,
		signer: client,
		buckets: map[Bucket]string{
			BucketPublic: cfg.S3.PublicBucket,
			BucketBackup: cfg.S3.BackupBucket,
		},
		presignTTL: cfg.S3.PresignTTL,
	}

	if cfg.S3.PublicFacingURL != "" {
		facing, err := url.Parse(cfg.S3.PublicFacingURL)
		if err != nil || facing.Host == "" {
			return nil, fmt.Errorf("invalid S3_PUBLIC_FACING_URL %q", cfg.S3.PublicFacingURL)
		}
		m.signer, err = minio.New(facing.Host, &minio.Options{
			Creds:  creds,
			Secure: facing.Scheme == "https",
			Region: cfg.S3.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("create public facing signer: %w", err)
		}
		m.publicBase = strings.TrimSuffix(facing.String(), "/") + "/" + cfg.S3.PublicBucket + "/"
	} else {
		m.publicBase = "https://" + cfg.S3.PublicBucket + "." + cfg.S3.Endpoint + "/"
	}

	for _, name := range m.buckets {
		exists, err := client.BucketExists(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("check bucket %s: %w", name, err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: cfg.S3.Region}); err != nil {
				return nil, fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
	}

	return m, nil
}

func (m *MinIOClient) bucket(b Bucket) string {
	return m.buckets[b]
}

// PresignPut issues a PUT URL for a fresh key under temp/<folder>/.
func (m *MinIOClient) PresignPut(ctx context.Context, folder string) (string, error) {
	key, err := TempKey(folder)
	if err != nil {
		return "", err
	}

	u, err := m.signer.PresignedPutObject(ctx, m.bucket(BucketPublic), key, m.presignTTL)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

func (m *MinIOClient) Get(ctx context.Context, bucket Bucket, key string) ([]byte, string, error) {
	obj, err := m.client.GetObject(ctx, m.bucket(bucket), key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("stat object %s: %w", key, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("read object %s: %w", key, err)
	}
	return data, info.ContentType, nil
}

func (m *MinIOClient) Put(ctx context.Context, bucket Bucket, key string, data []byte, mime string) error {
	_, err := m.client.PutObject(ctx, m.bucket(bucket), key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:        mime,
			ContentDisposition: ContentDisposition(mime),
		})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (m *MinIOClient) DeleteMany(ctx context.Context, bucket Bucket, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	objects := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objects <- minio.ObjectInfo{Key: key}
	}
	close(objects)

	var errs []error
	for removeErr := range m.client.RemoveObjects(ctx, m.bucket(bucket), objects, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("delete %s: %w", removeErr.ObjectName, removeErr.Err))
	}
	return errors.Join(errs...)
}

func (m *MinIOClient) ListOlderThan(ctx context.Context, bucket Bucket, prefix string, age time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-age)

	var keys []string
	for obj := range m.client.ListObjects(ctx, m.bucket(bucket), minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return keys, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		if obj.LastModified.Before(cutoff) {
			keys = append(keys, obj.Key)
		}
	}
	return keys, nil
}

func (m *MinIOClient) PublicURL(key string) string {
	return m.publicBase + key
}
