package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// SuggestionArchiver writes a whole discovery batch to cold storage.
type SuggestionArchiver interface {
	ArchiveBatch(ctx context.Context, profile string, at time.Time, suggestions []Suggestion) (string, error)
}
