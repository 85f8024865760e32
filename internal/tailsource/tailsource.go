// Package tailsource provides a line poller that follows a file across
// truncation and rotation using github.com/nxadm/tail.
package tailsource

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/nxadm/tail"
)

// ErrStopped is returned once the underlying tail has stopped delivering
// lines.
var ErrStopped = errors.New("tail stopped")

// Config configures a Source.
type Config struct {
	// FromStart reads the file from the beginning instead of the end.
	FromStart bool

	// Logger receives the tail library's diagnostics at debug level.
	// Nil discards them.
	Logger *slog.Logger
}

// Source reads lines from a followed file.
// It implements poll.Poller[string] and can replace the LinePoll chain
// when the file may be rotated or truncated underneath the reader.
type Source struct {
	t *tail.Tail

	// pending is a line error seen while draining a batch, reported on the
	// next call.
	pending error
}

// New starts following path.
func New(path string, cfg Config) (*Source, error) {
	whence := io.SeekEnd
	if cfg.FromStart {
		whence = io.SeekStart
	}

	tl := tail.DiscardingLogger
	if cfg.Logger != nil {
		tl = slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelDebug)
	}

	t, err := tail.TailFile(path, tail.Config{
		Location:  &tail.SeekInfo{Offset: 0, Whence: whence},
		ReOpen:    true,
		MustExist: true,
		Poll:      true,
		Follow:    true,
		Logger:    tl,
	})
	if err != nil {
		return nil, err
	}
	return &Source{t: t}, nil
}

// WaitAndRead blocks until at least one line is available and returns it
// together with any further lines that are already buffered.
func (s *Source) WaitAndRead(ctx context.Context) ([]string, error) {
	if err := s.pending; err != nil {
		s.pending = nil
		return nil, err
	}

	var first *tail.Line
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case l, ok := <-s.t.Lines:
		if !ok {
			return nil, s.stopErr()
		}
		first = l
	}
	if first.Err != nil {
		return nil, first.Err
	}

	lines := []string{first.Text}
	for {
		select {
		case l, ok := <-s.t.Lines:
			if !ok {
				return lines, nil
			}
			if l.Err != nil {
				s.pending = l.Err
				return lines, nil
			}
			lines = append(lines, l.Text)
		default:
			return lines, nil
		}
	}
}

// Close stops following the file.
func (s *Source) Close() error {
	err := s.t.Stop()
	s.t.Cleanup()
	return err
}

func (s *Source) stopErr() error {
	if err := s.t.Err(); err != nil {
		return err
	}
	return ErrStopped
}
