package poll

import (
	"context"
	"io"
	"time"
)

// LinePoll assembles characters into complete lines.
//
// Returned lines do not include the terminating '\n'. Any other character,
// including '\r', is kept. A line is only returned once its newline has
// been read; the unterminated tail stays buffered across calls.
type LinePoll struct {
	src Poller[rune]
	buf []rune
}

// NewLinePoll wraps a character poller.
func NewLinePoll(src Poller[rune]) *LinePoll {
	return &LinePoll{src: src}
}

// NewLinePollFromReader builds the full BytePoll -> CharPoll -> LinePoll
// chain over r.
func NewLinePollFromReader(r io.Reader, delay time.Duration, bufferLen int, opts ...CharOption) (*LinePoll, error) {
	bp, err := NewBytePoll(r, delay, bufferLen)
	if err != nil {
		return nil, err
	}
	return NewLinePoll(NewCharPoll(bp, opts...)), nil
}

// WaitAndRead blocks until at least one complete line is available.
// The returned batch is never empty on success.
func (p *LinePoll) WaitAndRead(ctx context.Context) ([]string, error) {
	var lines []string
	for len(lines) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chars, err := p.src.WaitAndRead(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range chars {
			if c == '\n' {
				lines = append(lines, string(p.buf))
				p.buf = p.buf[:0]
				continue
			}
			p.buf = append(p.buf, c)
		}
	}
	return lines, nil
}

// Pending returns the buffered, not yet terminated part of the current line.
func (p *LinePoll) Pending() string {
	return string(p.buf)
}

var _ Poller[string] = (*LinePoll)(nil)
