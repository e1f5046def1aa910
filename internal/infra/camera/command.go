package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	domain "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/capture"
)

// CommandSource grabs one still per Next by running an external capture
// command that writes the image to stdout, e.g.
//
//	ffmpeg -loglevel error -f v4l2 -i /dev/video0 -frames:v 1 -f image2pipe -vcodec mjpeg -
type CommandSource struct {
	name        string
	args        []string
	contentType string

	seq  atomic.Uint64
	done chan struct{}
	once sync.Once
}

func NewCommandSource(command []string, contentType string) (*CommandSource, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, errors.New("camera command is empty")
	}
	if _, err := exec.LookPath(command[0]); err != nil {
		return nil, fmt.Errorf("camera command %q: %w", command[0], err)
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return &CommandSource{
		name:        command[0],
		args:        command[1:],
		contentType: contentType,
		done:        make(chan struct{}),
	}, nil
}

func (c *CommandSource) Next(ctx context.Context) (domain.Frame, error) {
	select {
	case <-c.done:
		return domain.Frame{}, domain.ErrSourceClosed
	default:
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return domain.Frame{}, ctx.Err()
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return domain.Frame{}, fmt.Errorf("capture exit=%d stderr=%s", ee.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return domain.Frame{}, fmt.Errorf("capture run error: %w", err)
	}
	if len(out) == 0 {
		return domain.Frame{}, errors.New("capture produced no data")
	}

	return domain.Frame{
		Data:        out,
		ContentType: c.contentType,
		Seq:         c.seq.Add(1),
		CapturedAt:  time.Now(),
	}, nil
}

// Close makes further Next calls fail. Safe to call more than once.
func (c *CommandSource) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
