package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apemarkets/curator/internal/domain"
)

// multipartWriter is implemented by writers that can split a large upload
// into concurrently uploaded parts.
type multipartWriter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// multipartThreshold is the payload size above which raw pages go through
// the multipart upload path.
const multipartThreshold = 8 * 1024 * 1024

// Archiver stores raw upstream fetch payloads for later replay and audit.
// Each fetched page lands under raw/gamma/, partitioned by fetch date.
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates an Archiver uploading through the given writer.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

// ArchiveRawPage uploads one raw response body exactly as received. The key
// includes the fetch timestamp so repeated fetches never overwrite each
// other.
func (a *Archiver) ArchiveRawPage(ctx context.Context, payload []byte, fetchedAt time.Time) (string, error) {
	if len(payload) == 0 {
		return "", nil
	}

	path := rawPagePath(fetchedAt)
	if mw, ok := a.writer.(multipartWriter); ok && len(payload) > multipartThreshold {
		if err := mw.PutMultipart(ctx, path, bytes.NewReader(payload), 0); err != nil {
			return "", fmt.Errorf("s3blob: archive raw page: %w", err)
		}
		return path, nil
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(payload), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive raw page: %w", err)
	}
	return path, nil
}

// rawPagePath builds the S3 key for a raw fetch, for example
// raw/gamma/2026/08/31/143015.json.
func rawPagePath(fetchedAt time.Time) string {
	t := fetchedAt.UTC()
	return fmt.Sprintf("raw/gamma/%s/%s.json", t.Format("2006/01/02"), t.Format("150405"))
}
