package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/database"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
)

var _ interfaces.LookupSource = (*BlobLookupSource)(nil)

// BlobLookupSource loads the lookup table from a CSV snapshot in blob storage.
type BlobLookupSource struct {
	store BlobStore
	key   string
	now   func() time.Time
}

func NewBlobLookupSource(store BlobStore, key string) *BlobLookupSource {
	return &BlobLookupSource{store: store, key: key, now: time.Now}
}

func (s *BlobLookupSource) Name() string { return "blob" }

func (s *BlobLookupSource) Load(ctx context.Context) (*models.LookupTable, error) {
	body, err := s.store.Download(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to download lookup snapshot %s/%s: %w", s.store.Container(), s.key, err)
	}
	defer body.Close()
	return database.ParseLookupCSV(body, s.Name(), s.now())
}
