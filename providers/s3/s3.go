// Package s3bucket stores encrypted attachments in an S3 bucket. Files are
// encrypted with the owner's personal key while they stream to S3, so
// plaintext never touches the bucket or the local disk.
package s3bucket

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Client is the part of the S3 API used by the store.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Streamer encrypts and decrypts streams with a personal key.
// *remotecare.Vault implements it.
type Streamer interface {
	EncryptStream(ctx context.Context, keyID uuid.UUID, src io.Reader, dst io.Writer) error
	DecryptStream(ctx context.Context, keyID uuid.UUID, src io.Reader, dst io.Writer) error
}

// AttachmentStore uploads and downloads encrypted attachments.
type AttachmentStore struct {
	client Client
	vault  Streamer
	bucket string
	prefix string
	logger *slog.Logger
}

// Config selects the bucket and object key prefix, e.g. "attachments/".
type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	AWSConfig *aws.Config
}

// New creates an AttachmentStore with an S3 client built from cfg.
func New(ctx context.Context, vault Streamer, cfg Config) (*AttachmentStore, error) {
	var awsConfig aws.Config
	if cfg.AWSConfig != nil {
		awsConfig = *cfg.AWSConfig
	} else {
		var opts []func(*config.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}
		var err error
		awsConfig, err = config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
	}
	return NewWithClient(s3.NewFromConfig(awsConfig), vault, cfg), nil
}

// NewWithClient creates an AttachmentStore around an existing client.
func NewWithClient(client Client, vault Streamer, cfg Config) *AttachmentStore {
	return &AttachmentStore{
		client: client,
		vault:  vault,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: slog.Default().With("component", "s3"),
	}
}

// Upload encrypts src with the personal key keyID and stores it under a new
// uuid object key, which is returned.
func (s *AttachmentStore) Upload(ctx context.Context, keyID uuid.UUID, src io.Reader, contentType string) (string, error) {
	key := s.prefix + uuid.NewString()

	w := newObjectWriter(ctx, s.client, s.bucket, key, contentType)
	if err := s.vault.EncryptStream(ctx, keyID, src, w); err != nil {
		w.CloseWithError(err)
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	s.logger.InfoContext(ctx, "attachment uploaded", "bucket", s.bucket, "key", key)
	return key, nil
}

// Download decrypts the object key into dst.
func (s *AttachmentStore) Download(ctx context.Context, keyID uuid.UUID, key string, dst io.Writer) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	defer out.Body.Close()

	if err := s.vault.DecryptStream(ctx, keyID, out.Body, dst); err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	return nil
}

// Delete removes the object key.
func (s *AttachmentStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// objectWriter streams writes into a PutObject call running in the
// background. Close waits for the upload to finish.
type objectWriter struct {
	writer *io.PipeWriter
	done   chan error
}

func newObjectWriter(ctx context.Context, client Client, bucket, key, contentType string) *objectWriter {
	reader, writer := io.Pipe()
	w := &objectWriter{writer: writer, done: make(chan error, 1)}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   reader,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic during upload: %v", r)
				reader.CloseWithError(err)
				w.done <- err
			}
		}()
		_, err := client.PutObject(ctx, input)
		// unblock the writer when the upload stops early
		if err != nil {
			reader.CloseWithError(err)
		} else {
			reader.Close()
		}
		w.done <- err
	}()
	return w
}

func (w *objectWriter) Write(p []byte) (int, error) {
	return w.writer.Write(p)
}

// Close signals EOF to the upload and returns its result.
func (w *objectWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		return err
	}
	return <-w.done
}

// CloseWithError aborts the upload.
func (w *objectWriter) CloseWithError(err error) {
	w.writer.CloseWithError(err)
	<-w.done
}
