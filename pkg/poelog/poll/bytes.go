package poll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultDelay is the default wait between empty reads.
	DefaultDelay = 20 * time.Millisecond

	// DefaultBufferLen is the default scratch buffer capacity in bytes.
	DefaultBufferLen = 1024
)

// BytePoll polls an io.Reader for bytes appended after the current read
// position. It only works for sources that are appended to; it never seeks.
type BytePoll struct {
	r       io.Reader
	buf     []byte
	backoff backoff.BackOff

	// pending holds a read error that arrived together with data.
	// It is reported on the next call.
	pending error
}

// NewBytePoll creates a BytePoll that reads at most bufferLen bytes per
// call and sleeps delay between empty reads.
func NewBytePoll(r io.Reader, delay time.Duration, bufferLen int) (*BytePoll, error) {
	if r == nil {
		return nil, errors.New("poll: reader is nil")
	}
	if delay < 0 {
		return nil, fmt.Errorf("poll: delay must be non-negative, got %v", delay)
	}
	if bufferLen <= 0 {
		return nil, fmt.Errorf("poll: buffer length must be positive, got %d", bufferLen)
	}
	return &BytePoll{
		r:       r,
		buf:     make([]byte, bufferLen),
		backoff: backoff.NewConstantBackOff(delay),
	}, nil
}

// WaitAndRead blocks until new bytes are appended and returns them.
// io.EOF from the reader means "nothing new yet" and is never returned.
func (p *BytePoll) WaitAndRead(ctx context.Context) ([]byte, error) {
	if err := p.pending; err != nil {
		p.pending = nil
		return nil, &ReadError{Err: err}
	}

	p.backoff.Reset()
	for {
		n, err := p.r.Read(p.buf)
		if n > 0 {
			if err != nil && !errors.Is(err, io.EOF) {
				p.pending = err
			}
			out := make([]byte, n)
			copy(out, p.buf[:n])
			return out, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, &ReadError{Err: err}
		}

		if err := sleep(ctx, p.backoff.NextBackOff()); err != nil {
			return nil, err
		}
	}
}

var _ Poller[byte] = (*BytePoll)(nil)
