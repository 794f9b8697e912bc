package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

// s3PutAPI is the slice of the S3 client the sink uses; tests substitute
// a fake.
type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink writes gzip-compressed reports under a reports/ prefix.
type S3Sink struct {
	Client s3PutAPI
	Bucket string
}

// NewS3Sink creates a sink for the given bucket.
func NewS3Sink(client *s3.Client, bucket string) S3Sink {
	return S3Sink{Client: client, Bucket: bucket}
}

func (s S3Sink) Write(ctx context.Context, rep *Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return fmt.Errorf("compress report: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("compress report: %w", err)
	}

	key := "reports/" + rep.Filename() + ".gz"
	contentType := "application/json"
	contentEncoding := "gzip"

	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          &s.Bucket,
		Key:             &key,
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     &contentType,
		ContentEncoding: &contentEncoding,
	})
	if err != nil {
		return fmt.Errorf("upload report to s3: %w", err)
	}

	log.Info().
		Str("bucket", s.Bucket).
		Str("key", key).
		Int("compressedBytes", buf.Len()).
		Msg("Run report uploaded")
	return nil
}
