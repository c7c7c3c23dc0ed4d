package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore keeps objects in any s3 compatible storage
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore creates minio client
func NewMinioStore(opts Options) (*MinioStore, error) {
	host, secure, err := hostAndScheme(opts.URL, opts.Secure)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, opts.SessionToken),
		Secure: secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("can't init minio client: %w", err)
	}
	goapp.Log.Info().Str("url", host).Bool("secure", secure).Msg("minio storage")
	return &MinioStore{client: client}, nil
}

// Put saves data
func (s *MinioStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	goapp.Log.Debug().Str("bucket", bucket).Str("key", key).Int("len", len(data)).Msg("put")
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("can't put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Get loads data
func (s *MinioStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioErr(err, bucket, key)
	}
	defer obj.Close()
	res, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapMinioErr(err, bucket, key)
	}
	return res, nil
}

// Exists checks if object exists
func (s *MinioStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		err = mapMinioErr(err, bucket, key)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func mapMinioErr(err error, bucket, key string) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	}
	return fmt.Errorf("can't get %s/%s: %w", bucket, key, err)
}
