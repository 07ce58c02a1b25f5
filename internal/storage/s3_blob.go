package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
)

// S3Client defines the interface for S3 operations we need
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Blob keeps the favorites slot as a single JSON object in a bucket
type S3Blob struct {
	client     S3Client
	bucketName string
	key        string
}

func NewS3Blob(client S3Client, bucketName, slot string) *S3Blob {
	return &S3Blob{
		client:     client,
		bucketName: bucketName,
		key:        SlotKey(slot),
	}
}

// Read returns the stored payload and its ETag, or nil when the object does not exist yet
func (b *S3Blob) Read(ctx context.Context) ([]byte, string, error) {
	if b.bucketName == "" {
		return nil, "", fmt.Errorf("empty bucket name")
	}

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(b.key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("getting %s from S3: %w", b.key, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing S3 object body")
		}
	}(result.Body)

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading S3 object body: %w", err)
	}
	return data, aws.ToString(result.ETag), nil
}

// Write replaces the object with a single conditional PutObject call. An
// empty version means the object must not exist yet; otherwise it must still
// carry that ETag.
func (b *S3Blob) Write(ctx context.Context, data []byte, version string) error {
	if b.bucketName == "" {
		return fmt.Errorf("empty bucket name")
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucketName),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}
	if version == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(version)
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		if isPreconditionFailure(err) {
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return fmt.Errorf("saving to S3: %w", err)
	}

	log.Debug().Str("key", b.key).Int("bytes", len(data)).Msg("Saved favorites slot to S3")
	return nil
}

// isPreconditionFailure matches a failed If-Match/If-None-Match (412) and a
// concurrent conditional write on the same key (409)
func isPreconditionFailure(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}
