package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
)

const csvContentType = "text/csv"

var _ interfaces.AuditSink = (*BlobCSVSink)(nil)

// BlobCSVSink appends audit rows to a CSV blob. Each write downloads the
// current blob, appends one row and uploads the result, so writes from this
// process are serialized.
type BlobCSVSink struct {
	store BlobStore
	key   string
	mu    sync.Mutex
}

func NewBlobCSVSink(store BlobStore, key string) *BlobCSVSink {
	return &BlobCSVSink{store: store, key: key}
}

func (s *BlobCSVSink) Name() string { return "blob_csv" }

func (s *BlobCSVSink) Record(ctx context.Context, entry models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.download(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		buf.WriteByte('\n')
	}

	w := csv.NewWriter(&buf)
	if len(existing) == 0 {
		if err := w.Write(models.AuditColumns); err != nil {
			return fmt.Errorf("failed to write audit header: %w", err)
		}
	}
	if err := w.Write(entry.Row()); err != nil {
		return fmt.Errorf("failed to write audit row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write audit row: %w", err)
	}

	return s.store.Upload(ctx, s.key, &buf, csvContentType)
}

func (s *BlobCSVSink) download(ctx context.Context) ([]byte, error) {
	body, err := s.store.Download(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit blob: %w", err)
	}
	return data, nil
}
