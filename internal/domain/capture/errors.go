package capture

import "errors"

// ErrQuotaExceeded indicates the recognition provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("recognition quota exceeded")

// ErrSourceClosed is returned by a FrameSource after Close.
var ErrSourceClosed = errors.New("frame source closed")
