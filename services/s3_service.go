package services

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rotisserie/eris"
)

// S3API is the subset of *s3.Client used here.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Service reads and writes whole objects in one bucket.
type S3Service struct {
	Client S3API
	Bucket string
}

// InitializeS3Client initializes the S3 client
func InitializeS3Client(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, eris.Wrap(err, "failed to load AWS config")
	}
	return s3.NewFromConfig(cfg), nil
}

// errObjectMissing is returned by GetObject when the key does not exist.
var errObjectMissing = eris.New("object does not exist")

// GetObject returns the object body, or errObjectMissing.
func (s *S3Service) GetObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, errObjectMissing
		}
		return nil, eris.Wrapf(err, "failed to get object %s", key)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read object %s", key)
	}
	return body, nil
}

// PutObject uploads body under key.
func (s *S3Service) PutObject(ctx context.Context, key, contentType string, body []byte) error {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        bytes.NewReader(body),
	})
	return eris.Wrapf(err, "failed to put object %s", key)
}
