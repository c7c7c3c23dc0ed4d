package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store keeps objects in aws s3
type S3Store struct {
	client *s3.Client
}

// NewS3Store creates aws s3 client, url overrides the default endpoint
func NewS3Store(cfg aws.Config, url string) (*S3Store, error) {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if url != "" {
			o.BaseEndpoint = aws.String(url)
			o.UsePathStyle = true
		}
	})
	goapp.Log.Info().Str("url", url).Str("region", cfg.Region).Msg("s3 storage")
	return &S3Store{client: client}, nil
}

// Put saves data
func (s *S3Store) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	goapp.Log.Debug().Str("bucket", bucket).Str("key", key).Int("len", len(data)).Msg("put")
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("can't put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Get loads data
func (s *S3Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, mapS3Err(err, bucket, key)
	}
	defer out.Body.Close()
	res, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("can't read %s/%s: %w", bucket, key, err)
	}
	return res, nil
}

// Exists checks if object exists
func (s *S3Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		err = mapS3Err(err, bucket, key)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func mapS3Err(err error, bucket, key string) error {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	var re *awshttp.ResponseError
	if errors.As(err, &nsk) || errors.As(err, &nf) ||
		(errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound) {
		return fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	}
	return fmt.Errorf("can't get %s/%s: %w", bucket, key, err)
}
