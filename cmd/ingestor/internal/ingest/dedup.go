package ingest

import (
	"context"

	"github.com/jwkim-dev/tickstream/pkg/models"
)

// Deduplicator suppresses exact repeats from the upstream feed. It compares
// only against the single most recent cached entry for the symbol — a tick
// identical to a deeper window entry is still accepted. Only state
// transitions are interesting downstream.
type Deduplicator struct {
	cache *RecencyCache
}

func NewDeduplicator(cache *RecencyCache) *Deduplicator {
	return &Deduplicator{cache: cache}
}

// IsDuplicate reports whether the tick is field-for-field identical to the
// symbol's current most recent cached entry. Read-only.
func (d *Deduplicator) IsDuplicate(ctx context.Context, t models.Tick) (bool, error) {
	latest, err := d.cache.PeekLatest(ctx, t.StockID)
	if err != nil {
		return false, err
	}
	if latest == nil {
		return false, nil
	}
	return latest.Equal(t), nil
}
