package scans

import (
	"time"
)

// ScanID tipe untuk Scan, assigned by the store
type ScanID int64

// Status of a submission
type Status string

const (
	StatusRecorded  Status = "recorded"
	StatusDuplicate Status = "duplicate"
)

// Source enum
type Source string

const (
	SourceManual  Source = "manual"
	SourceBarcode Source = "barcode"
	SourceOCR     Source = "ocr"
)

const (
	MaxCodeLength      = 255
	MaxTimestampLength = 50
)

// Scan is one entry of the append-only scan log.
type Scan struct {
	ID          ScanID    `json:"id"`
	Code        string    `json:"code"`
	Timestamp   string    `json:"timestamp"`
	Description *string   `json:"description"`
	ScannedAt   time.Time `json:"scanned_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Stats value object for the dashboard
type Stats struct {
	Total int64 `json:"total"`
	Today int64 `json:"today"`
}

// RecordedEvent is published after a scan was appended.
type RecordedEvent struct {
	ID          ScanID    `json:"id"`
	Code        string    `json:"code"`
	Description *string   `json:"description"`
	Timestamp   string    `json:"timestamp"`
	ScannedAt   time.Time `json:"scanned_at"`
	Source      Source    `json:"source"`
}
