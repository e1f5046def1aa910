package products

import "time"

// Product is one entry of the product master.
type Product struct {
	PartNum         string    `json:"partNum"`
	PartDescription string    `json:"partDescription"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Row is one import line before it reaches the store
type Row struct {
	PartNum         string `json:"partNum"`
	PartDescription string `json:"partDescription"`
}

// Valid reports whether both fields are present after trimming.
func (r Row) Valid() bool {
	return r.PartNum != "" && r.PartDescription != ""
}

// BatchResult is what the store reports for one committed chunk.
type BatchResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// ImportStats aggregates one import run. Inserted+Updated+Skipped == Total.
type ImportStats struct {
	RunID        string        `json:"runId"`
	Total        int           `json:"total"`
	Inserted     int           `json:"inserted"`
	Updated      int           `json:"updated"`
	Skipped      int           `json:"skipped"`
	Chunks       int           `json:"chunks"`
	FailedChunks int           `json:"failedChunks"`
	Duration     time.Duration `json:"-"`
}

// ImportError records a chunk that could not be committed.
type ImportError struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"runId"`
	Chunk        int       `json:"chunk"`
	Rows         int       `json:"rows"`
	FirstPartNum string    `json:"firstPartNum,omitempty"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"createdAt"`
}
