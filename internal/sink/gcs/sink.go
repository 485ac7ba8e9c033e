// Package gcs writes article records as JSON objects to Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
)

const contentType = "application/json"

// Config captures the parameters required to write to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// ObjectWriter stores one object.
type ObjectWriter interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) error
}

// Hasher derives object names from normalized article URLs.
type Hasher interface {
	HashKey(key string) (string, error)
}

// Sink stores one object per record at <prefix>/<key hash>.json. The name
// depends only on the normalized URL, so a re-run or a URL variant overwrites
// instead of duplicating.
type Sink struct {
	writer ObjectWriter
	hasher Hasher
	prefix string
}

var _ harvest.Sink = (*Sink)(nil)

// New creates a GCS-backed Sink.
func New(client *storage.Client, hasher Hasher, cfg Config) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("sink.gcs.bucket is required")
	}
	return NewWithWriter(&bucketWriter{client: client, bucket: cfg.Bucket}, hasher, cfg.Prefix)
}

// NewWithWriter builds a Sink over any ObjectWriter (primarily for testing).
func NewWithWriter(writer ObjectWriter, hasher Hasher, prefix string) (*Sink, error) {
	if writer == nil {
		return nil, fmt.Errorf("object writer is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	return &Sink{
		writer: writer,
		hasher: hasher,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Emit writes the record.
func (s *Sink) Emit(ctx context.Context, record harvest.ArticleRecord) error {
	if record.URL == "" {
		return fmt.Errorf("record url is required")
	}
	key, err := record.StorageKey()
	if err != nil {
		return err
	}
	path, err := s.ObjectPath(key)
	if err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.writer.PutObject(ctx, path, contentType, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("put object %s: %w", path, err)
	}
	return nil
}

// ObjectPath returns the object name used for an article key.
func (s *Sink) ObjectPath(key string) (string, error) {
	hash, err := s.hasher.HashKey(key)
	if err != nil {
		return "", fmt.Errorf("object path: %w", err)
	}
	if s.prefix == "" {
		return fmt.Sprintf("%s.json", hash), nil
	}
	return fmt.Sprintf("%s/%s.json", s.prefix, hash), nil
}

type bucketWriter struct {
	client *storage.Client
	bucket string
}

func (w *bucketWriter) PutObject(ctx context.Context, path string, contentType string, r io.Reader) error {
	writer := w.client.Bucket(w.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
