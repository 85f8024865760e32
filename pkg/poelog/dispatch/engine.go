// Package dispatch runs lines from a line poller through an ordered filter
// chain and a registry of regular-expression event rules.
//
// For every line the engine creates a zero metadata value, lets each filter
// rewrite the line and annotate the metadata in registration order, and then
// tries every rule in registration order. Rules are not exclusive: every rule
// whose pattern matches fires, and each handler receives its own copy of the
// metadata.
package dispatch

import (
	"context"
	"io"
	"log/slog"
	"regexp"

	"github.com/poelog/poelog-go/pkg/poelog/poll"
)

// Filter rewrites a line and may annotate its metadata.
// Filters must not fail.
type Filter[M any] func(line string, meta *M) string

// Handler is invoked for every line matching its rule's pattern.
//
// Handlers run synchronously on the engine's goroutine, so a slow handler
// stalls all subsequent lines. A non-nil error stops Run.
type Handler[M any] func(ctx context.Context, c Captures, meta M) error

// Cloner may be implemented by metadata types holding reference fields.
// When it is, each handler receives meta.Clone() instead of a plain copy.
type Cloner[M any] interface {
	Clone() M
}

type rule[M any] struct {
	pattern string
	re      *regexp.Regexp
	handler Handler[M]
}

// Option configures an Engine.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger sets a logger for debug output. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Engine dispatches lines to filters and event rules.
//
// Filters and rules must be registered before Run is called and must not be
// registered concurrently with Run or Process.
type Engine[M any] struct {
	src     poll.Poller[string]
	filters []Filter[M]
	rules   []rule[M]
	log     *slog.Logger
}

// New creates an Engine reading lines from src.
func New[M any](src poll.Poller[string], opts ...Option) *Engine[M] {
	var cfg config
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	log := cfg.logger
	if log == nil {
		log = discardLogger
	}
	return &Engine[M]{src: src, log: log}
}

// RegisterFilter appends f to the filter chain. A nil f is ignored.
func (e *Engine[M]) RegisterFilter(f Filter[M]) {
	if f == nil {
		return
	}
	e.filters = append(e.filters, f)
}

// RegisterEvent compiles pattern and appends it with handler to the rule list.
// It returns ErrNilHandler for a nil handler and *PatternError on a compile
// error; in both cases the rule list is unchanged.
func (e *Engine[M]) RegisterEvent(pattern string, handler Handler[M]) error {
	if handler == nil {
		return ErrNilHandler
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return &PatternError{Pattern: pattern, Err: err}
	}
	e.rules = append(e.rules, rule[M]{pattern: pattern, re: re, handler: handler})
	return nil
}

// Process runs a single line through the filter chain and every rule.
// It returns the first handler error as *HandlerError.
func (e *Engine[M]) Process(ctx context.Context, line string) error {
	var meta M
	for _, f := range e.filters {
		line = f(line, &meta)
	}

	for i, r := range e.rules {
		idx := r.re.FindStringSubmatchIndex(line)
		if idx == nil {
			continue
		}
		c := Captures{subject: line, idx: idx, names: r.re.SubexpNames()}
		if err := r.handler(ctx, c, cloneMeta(meta)); err != nil {
			return &HandlerError{Index: i, Pattern: r.pattern, Err: err}
		}
	}
	return nil
}

// Run polls lines forever and processes each one in arrival order. Every
// line of a batch is fully processed before the next batch is requested.
//
// Run only returns on failure: a poller error, a handler error, or the
// context error once ctx is done.
func (e *Engine[M]) Run(ctx context.Context) error {
	e.log.Debug("dispatch started", "filters", len(e.filters), "rules", len(e.rules))

	var processed int
	for {
		lines, err := e.src.WaitAndRead(ctx)
		if err != nil {
			e.log.Debug("dispatch stopped", "lines", processed, "error", err)
			return err
		}
		for _, line := range lines {
			if err := e.Process(ctx, line); err != nil {
				e.log.Debug("dispatch stopped", "lines", processed, "error", err)
				return err
			}
			processed++
		}
	}
}

func cloneMeta[M any](meta M) M {
	if c, ok := any(meta).(Cloner[M]); ok {
		return c.Clone()
	}
	return meta
}
