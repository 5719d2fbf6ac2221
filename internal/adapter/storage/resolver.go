// Package storage maps stored object paths to URIs the oracle can read, and reads
// the metadata attached to uploaded objects.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// GCSResolver addresses objects in place as gs://bucket/path. Bucket is used only for
// entries recorded without the bucket of their upload.
type GCSResolver struct {
	Bucket string
}

func (r GCSResolver) FileURI(_ context.Context, bucket, objectPath string) (string, error) {
	if strings.Contains(objectPath, "://") {
		return objectPath, nil
	}
	b, err := pickBucket(bucket, r.Bucket, objectPath)
	if err != nil {
		return "", err
	}
	return "gs://" + b + "/" + strings.TrimPrefix(objectPath, "/"), nil
}

func pickBucket(recorded, fallback, objectPath string) (string, error) {
	if recorded != "" {
		return recorded, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("no bucket recorded or configured for %s", objectPath)
}

// GetPresigner is the subset of *s3.PresignClient used to share objects.
type GetPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Resolver hands the oracle a time-limited GET URL per object.
type S3Resolver struct {
	p      GetPresigner
	bucket string
	ttl    time.Duration
}

func NewS3Resolver(p GetPresigner, bucket string, ttl time.Duration) *S3Resolver {
	return &S3Resolver{p: p, bucket: bucket, ttl: ttl}
}

func (r *S3Resolver) FileURI(ctx context.Context, bucket, objectPath string) (string, error) {
	b, err := pickBucket(bucket, r.bucket, objectPath)
	if err != nil {
		return "", err
	}
	req, err := r.p.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b),
		Key:    aws.String(strings.TrimPrefix(objectPath, "/")),
	}, func(o *s3.PresignOptions) { o.Expires = r.ttl })
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", objectPath, err)
	}
	return req.URL, nil
}
