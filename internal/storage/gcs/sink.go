// Package gcs uploads crawl results to Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

const defaultContentType = "application/json; charset=utf-8"

// Config names the object that receives the results.
type Config struct {
	Bucket      string
	Object      string
	ContentType string
}

// Sink overwrites one GCS object per write.
type Sink struct {
	client      *storage.Client
	bucket      string
	object      string
	contentType string
	ownsClient  bool
}

// ParseURI splits gs://bucket/path/to/object.
func ParseURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// uri: %q", uri)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || strings.TrimSpace(object) == "" {
		return "", "", fmt.Errorf("gs uri %q needs a bucket and an object", uri)
	}
	return bucket, object, nil
}

// New wraps an existing client. The caller keeps ownership of it.
func New(client *storage.Client, cfg Config) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if strings.TrimSpace(cfg.Object) == "" {
		return nil, fmt.Errorf("object name is required")
	}
	contentType := cfg.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	return &Sink{
		client:      client,
		bucket:      cfg.Bucket,
		object:      cfg.Object,
		contentType: contentType,
	}, nil
}

// Open builds a client with Application Default Credentials, or against
// endpoint without auth when one is given (emulators, tests).
func Open(ctx context.Context, uri, contentType, endpoint string) (*Sink, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	var opts []option.ClientOption
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	sink, err := New(client, Config{Bucket: bucket, Object: object, ContentType: contentType})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	sink.ownsClient = true
	return sink, nil
}

// Write uploads the encoded records and returns the gs:// URI.
func (s *Sink) Write(ctx context.Context, jobs []crawler.JobRecord) (string, error) {
	data, err := crawler.MarshalRecords(jobs)
	if err != nil {
		return "", err
	}
	writer := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	writer.ContentType = s.contentType
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer for object %s: %w", s.object, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.object), nil
}

// Close releases the client when the Sink created it.
func (s *Sink) Close() error {
	if !s.ownsClient {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}
