package repository

import (
	"context"
)

// TickStore is the read side of the recency cache plus the live tick feed.
type TickStore interface {
	Snapshot(ctx context.Context, symbol string) ([]string, error)
	RunFeed(ctx context.Context, onTick func(payload string))
	Close() error
}
