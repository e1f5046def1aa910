package camera

import (
	"context"
	"errors"
	"runtime"
	"testing"

	domain "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/capture"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
}

func TestCommandSource_Next(t *testing.T) {
	skipWithoutShell(t)
	src, err := NewCommandSource([]string{"sh", "-c", "printf frame"}, "image/png")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer src.Close()

	for want := uint64(1); want <= 2; want++ {
		f, err := src.Next(context.Background())
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if string(f.Data) != "frame" || f.ContentType != "image/png" || f.Seq != want {
			t.Fatalf("unexpected frame %+v", f)
		}
	}

	src.Close()
	src.Close()
	if _, err := src.Next(context.Background()); !errors.Is(err, domain.ErrSourceClosed) {
		t.Fatalf("expected ErrSourceClosed, got %v", err)
	}
}

func TestCommandSource_Failure(t *testing.T) {
	skipWithoutShell(t)
	src, err := NewCommandSource([]string{"sh", "-c", "echo no device >&2; exit 3"}, "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = src.Next(context.Background())
	if err == nil || err.Error() != "capture exit=3 stderr=no device" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestNewCommandSource_Validation(t *testing.T) {
	if _, err := NewCommandSource(nil, ""); err == nil {
		t.Fatalf("expected error for empty command")
	}
	if _, err := NewCommandSource([]string{"definitely-not-a-camera-tool"}, ""); err == nil {
		t.Fatalf("expected error for missing binary")
	}
}
