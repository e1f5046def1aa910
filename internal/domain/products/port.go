package products

import "context"

// Repository port for the product master
type Repository interface {
	Get(ctx context.Context, partNum string) (*Product, error)
	// UpsertBatch applies all rows in one transaction. Each row is a single
	// conditional write: insert when new, otherwise overwrite the description.
	UpsertBatch(ctx context.Context, rows []Row) (BatchResult, error)
	Count(ctx context.Context) (int64, error)
}

// ImportErrorLog persists chunk failures
type ImportErrorLog interface {
	Save(ctx context.Context, e *ImportError) error
	ListByRun(ctx context.Context, runID string, limit int) ([]*ImportError, error)
}

// Archive stores the raw file of an import run.
type Archive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
