package poelog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"unicode/utf8"

	"github.com/poelog/poelog-go/internal/safefile"
	"github.com/poelog/poelog-go/pkg/poelog/pattern"
)

// DefaultMaxLineBytes is the default longest line ParseReader accepts.
const DefaultMaxLineBytes = 512 * 1024

// ErrInvalidUTF8 is wrapped by ParseError for lines that are not valid UTF-8.
var ErrInvalidUTF8 = errors.New("invalid UTF-8")

// ParseError reports a line that could not be processed.
type ParseError struct {
	LineNumber int // 1-based
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.LineNumber, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseOption configures ParseLine, ParseReader and ParseFile.
type ParseOption func(*parseConfig)

type parseConfig struct {
	filter         *compiledFilter
	includeRawLine bool
	ruleFiles      []*pattern.File
	parsers        []LineParser
	maxLineBytes   int
}

func applyParseOptions(opts []ParseOption) *parseConfig {
	cfg := &parseConfig{maxLineBytes: DefaultMaxLineBytes}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithParseFilter sets both include and exclude type filters for parsing.
func WithParseFilter(include, exclude []EventType) ParseOption {
	return func(c *parseConfig) {
		c.filter = newCompiledFilter(include, exclude)
	}
}

// WithParseIncludeRawLine includes the original log line in Info.RawLine.
func WithParseIncludeRawLine(include bool) ParseOption {
	return func(c *parseConfig) {
		c.includeRawLine = include
	}
}

// WithParseRuleFiles adds custom event rules after the built-in ones.
func WithParseRuleFiles(files ...*pattern.File) ParseOption {
	return func(c *parseConfig) {
		c.ruleFiles = append(c.ruleFiles, files...)
	}
}

// WithParseParsers adds line parsers that run on every line after the
// rules. Their failures skip the line.
func WithParseParsers(parsers ...LineParser) ParseOption {
	return func(c *parseConfig) {
		c.parsers = append(c.parsers, parsers...)
	}
}

// WithParseMaxLineBytes sets the longest accepted line.
// Default is 512KB.
func WithParseMaxLineBytes(n int) ParseOption {
	return func(c *parseConfig) {
		if n > 0 {
			c.maxLineBytes = n
		}
	}
}

// ParseLine runs a single line through the built-in rules and returns the
// records it produces. A line that matches no rule yields no records and no
// error.
//
// Example:
//
//	records, err := poelog.ParseLine("2024/01/01 00:00:01 123 abc] : You have entered The Forest.")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range records {
//	    fmt.Println(r.Event.Type, r.Event.Area, r.Info.Tick)
//	}
func ParseLine(line string, opts ...ParseOption) ([]Record, error) {
	if !utf8.ValidString(line) {
		return nil, &ParseError{LineNumber: 1, Err: ErrInvalidUTF8}
	}
	cfg := applyParseOptions(opts)
	p, err := newLineParser(cfg)
	if err != nil {
		return nil, err
	}
	return p.parse(context.Background(), line)
}

// ParseReader returns an iterator over the records in r.
//
// Unlike Watch, ParseReader treats EOF as the end of input, so a final line
// without a trailing newline is processed too. Lines that are not valid
// UTF-8 are reported as *ParseError and skipped; the consumer may stop by
// breaking out of the loop. Read errors and ctx cancellation end the
// iteration after being yielded.
func ParseReader(ctx context.Context, r io.Reader, opts ...ParseOption) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		cfg := applyParseOptions(opts)
		p, err := newLineParser(cfg)
		if err != nil {
			yield(Record{}, err)
			return
		}

		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, min(64*1024, cfg.maxLineBytes)), cfg.maxLineBytes)

		n := 0
		for sc.Scan() {
			n++
			if err := ctx.Err(); err != nil {
				yield(Record{}, err)
				return
			}

			line := sc.Text()
			if !utf8.ValidString(line) {
				if !yield(Record{}, &ParseError{LineNumber: n, Err: ErrInvalidUTF8}) {
					return
				}
				continue
			}

			records, err := p.parse(ctx, line)
			if err != nil {
				yield(Record{}, &ParseError{LineNumber: n, Err: err})
				return
			}
			for _, rec := range records {
				if !yield(rec, nil) {
					return
				}
			}
		}
		if err := sc.Err(); err != nil {
			yield(Record{}, &ParseError{LineNumber: n + 1, Err: err})
		}
	}
}

// ParseFile returns an iterator over the records in the file at path.
// See ParseReader.
func ParseFile(ctx context.Context, path string, opts ...ParseOption) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		f, _, err := safefile.Open(path, safefile.Start)
		if err != nil {
			yield(Record{}, fmt.Errorf("open log file: %w", err))
			return
		}
		defer f.Close()

		for rec, err := range ParseReader(ctx, f, opts...) {
			if !yield(rec, err) {
				return
			}
		}
	}
}

// lineParser drives Events one line at a time and collects its output.
type lineParser struct {
	events *Events
	batch  []Record
}

func newLineParser(cfg *parseConfig) (*lineParser, error) {
	p := &lineParser{}
	sink := SinkFunc(func(_ context.Context, r Record) error {
		p.batch = append(p.batch, r)
		return nil
	})
	p.events = newEvents(nil, sink, &watchConfig{
		filter:         cfg.filter,
		includeRawLine: cfg.includeRawLine,
	})
	if err := registerAll(p.events, cfg.ruleFiles, cfg.parsers); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *lineParser) parse(ctx context.Context, line string) ([]Record, error) {
	p.batch = nil
	if err := p.events.Process(ctx, line); err != nil {
		return nil, err
	}
	return p.batch, nil
}
