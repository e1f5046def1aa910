package scans

import (
	"context"
	"time"
)

// Repository port (interface untuk persistence). The scan log is append-only.
type Repository interface {
	// Append inserts one row and fills ID, ScannedAt and CreatedAt.
	Append(ctx context.Context, s *Scan) error
	Latest(ctx context.Context, limit int) ([]*Scan, error)
	Stats(ctx context.Context, dayStart time.Time) (Stats, error)
}

// DescriptionLookup resolves a code to a product description.
type DescriptionLookup interface {
	Describe(ctx context.Context, code string) (string, bool, error)
}

// EventPublisher port for downstream consumers of recorded scans
type EventPublisher interface {
	Publish(ctx context.Context, ev RecordedEvent) error
}
