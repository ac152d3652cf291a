package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3PutAPI is the subset of *s3.Client used by S3Store.
type S3PutAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes objects into an S3 or S3-compatible bucket.
// PublicBaseURL, when set, is the prefix objects are served from
// (e.g. a CDN or "http://minio:9000/<bucket>").
type S3Store struct {
	Client        S3PutAPI
	Bucket        string
	Region        string
	PublicBaseURL string
}

func NewS3Store(client S3PutAPI, bucket, region, publicBaseURL string) *S3Store {
	return &S3Store{Client: client, Bucket: bucket, Region: region, PublicBaseURL: publicBaseURL}
}

func (s *S3Store) Put(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	if s.Client == nil || s.Bucket == "" {
		return "", ErrNoStore
	}
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(objectPath),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return s.publicURL(objectPath), nil
}

func (s *S3Store) publicURL(objectPath string) string {
	if s.PublicBaseURL != "" {
		return strings.TrimRight(s.PublicBaseURL, "/") + "/" + objectPath
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.Bucket, s.Region, objectPath)
}
