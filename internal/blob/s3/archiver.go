package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// Archiver implements domain.SuggestionArchiver. Each batch becomes one JSONL
// object under suggestions/{profile}/{yyyy}/{mm}/{dd}/.
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates an Archiver on top of writer.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

// ArchiveBatch uploads suggestions and returns the object path. An empty batch
// writes nothing and returns "".
func (a *Archiver) ArchiveBatch(ctx context.Context, profile string, at time.Time, suggestions []domain.Suggestion) (string, error) {
	if len(suggestions) == 0 {
		return "", nil
	}

	buf, err := marshalJSONL(suggestions)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s marshal: %w", profile, err)
	}

	path := archivePath(profile, at)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive %s upload: %w", profile, err)
	}
	return path, nil
}

func archivePath(profile string, at time.Time) string {
	at = at.UTC()
	if profile == "" {
		profile = "default"
	}
	return fmt.Sprintf("suggestions/%s/%s/%s.jsonl", profile, at.Format("2006/01/02"), at.Format("150405.000"))
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

var _ domain.SuggestionArchiver = (*Archiver)(nil)
