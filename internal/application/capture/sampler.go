package capture

import (
	"context"
	"errors"
	"log"
	"time"

	domain "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/capture"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/scans"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/metrics"
)

// DefaultOCRInterval is the pause between two OCR samples.
const DefaultOCRInterval = time.Second

// Sampler reads the newest frame at a fixed interval, runs text recognition
// on it and emits the first product number it finds.
type Sampler struct {
	Source     domain.FrameSource
	Recognizer domain.Recognizer
	Interval   time.Duration

	// OnSample is told about every finished recognition; optional.
	OnSample func(SampleResult)
}

// SampleResult describes one finished recognition.
type SampleResult struct {
	FrameSeq  uint64
	Text      string
	Code      string
	Matched   bool
	Discarded bool
	Err       error
}

// Run blocks until ctx is done or the source is closed. Matches are sent to
// out; sends never outlive ctx.
func (s *Sampler) Run(ctx context.Context, out chan<- Event) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultOCRInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		frame, err := s.Source.Next(ctx)
		if errors.Is(err, domain.ErrSourceClosed) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			log.Printf("ocr sampler: next frame err=%v", err)
			continue
		}

		res := s.sample(ctx, frame)
		if s.OnSample != nil {
			s.OnSample(res)
		}
		if !res.Matched || res.Discarded {
			continue
		}

		ev := Event{
			ctx:       context.WithoutCancel(ctx),
			Code:      res.Code,
			Timestamp: frame.CapturedAt.UTC().Format(time.RFC3339Nano),
			Source:    scans.SourceOCR,
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Sampler) sample(ctx context.Context, frame domain.Frame) SampleResult {
	res := SampleResult{FrameSeq: frame.Seq}

	// an in-flight recognition may finish after stop; its result is dropped
	text, err := s.Recognizer.Recognize(ctx, frame)
	if ctx.Err() != nil {
		res.Discarded = true
		metrics.OCRRecognitions.WithLabelValues("discarded").Inc()
		return res
	}
	if err != nil {
		res.Err = err
		metrics.OCRRecognitions.WithLabelValues("error").Inc()
		log.Printf("ocr sampler: recognize frame=%d err=%v", frame.Seq, err)
		return res
	}

	res.Text = text
	res.Code, res.Matched = scans.ExtractProductNumber(text)
	if res.Matched {
		metrics.OCRRecognitions.WithLabelValues("match").Inc()
	} else {
		metrics.OCRRecognitions.WithLabelValues("no_match").Inc()
	}
	return res
}
