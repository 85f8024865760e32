package poll

import (
	"context"
	"unicode/utf8"
)

// CharOption configures a CharPoll.
type CharOption func(*CharPoll)

// CarryIncomplete makes CharPoll hold back an incomplete multi-byte sequence
// at the end of a batch and prepend it to the next batch, instead of failing
// with a DecodeError. Invalid bytes still fail.
func CarryIncomplete() CharOption {
	return func(p *CharPoll) {
		p.carryIncomplete = true
	}
}

// CharPoll decodes each byte batch from its source as UTF-8.
//
// By default every batch must be valid UTF-8 on its own: a code point split
// across two reads fails with *DecodeError even if the stream as a whole is
// valid. Use CarryIncomplete to opt out of that.
type CharPoll struct {
	src             Poller[byte]
	carryIncomplete bool
	carry           []byte
}

// NewCharPoll wraps a byte poller.
func NewCharPoll(src Poller[byte], opts ...CharOption) *CharPoll {
	p := &CharPoll{src: src}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// WaitAndRead blocks until new bytes arrive and returns them as characters.
func (p *CharPoll) WaitAndRead(ctx context.Context) ([]rune, error) {
	for {
		b, err := p.src.WaitAndRead(ctx)
		if err != nil {
			return nil, err
		}

		if len(p.carry) > 0 {
			b = append(p.carry, b...)
			p.carry = nil
		}
		if p.carryIncomplete {
			var rest []byte
			b, rest = splitIncomplete(b)
			if len(rest) > 0 {
				p.carry = append([]byte(nil), rest...)
			}
		}

		if off := invalidOffset(b); off >= 0 {
			return nil, &DecodeError{Offset: off, Size: len(b)}
		}
		if len(b) == 0 {
			continue
		}
		return []rune(string(b)), nil
	}
}

// invalidOffset returns the offset of the first invalid UTF-8 sequence in b,
// or -1 if b is valid.
func invalidOffset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}

// splitIncomplete splits b before a trailing multi-byte sequence that has
// not been fully received yet.
func splitIncomplete(b []byte) (complete, rest []byte) {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return b[:i], b[i:]
		}
		break
	}
	return b, nil
}

var _ Poller[rune] = (*CharPoll)(nil)
