package storage

import (
	"context"
	"fmt"
	"net/url"

	"collateral-evidence/internal/usecase/evidence"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// HeadObjecter is the subset of *s3.Client needed to read object metadata.
type HeadObjecter interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// EventFromS3 turns an S3 notification record into a storage event. The key arrives
// URL-encoded; user metadata comes back from HeadObject with lowercased keys.
func EventFromS3(ctx context.Context, h HeadObjecter, bucket, rawKey string) (evidence.StorageEvent, error) {
	key, err := url.QueryUnescape(rawKey)
	if err != nil {
		return evidence.StorageEvent{}, fmt.Errorf("decode key %q: %w", rawKey, err)
	}
	head, err := h.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return evidence.StorageEvent{}, fmt.Errorf("head %s/%s: %w", bucket, key, err)
	}
	meta := make(map[string]any, len(head.Metadata))
	for k, v := range head.Metadata {
		meta[k] = v
	}
	return evidence.StorageEvent{
		Bucket:      bucket,
		Name:        key,
		ContentType: aws.ToString(head.ContentType),
		Metadata:    meta,
	}, nil
}
