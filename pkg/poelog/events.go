package poelog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/poelog/poelog-go/pkg/poelog/dispatch"
	"github.com/poelog/poelog-go/pkg/poelog/event"
	"github.com/poelog/poelog-go/pkg/poelog/pattern"
	"github.com/poelog/poelog-go/pkg/poelog/poll"
)

// Sink receives the records produced by Events.
// *queue.Queue[Record] implements Sink.
type Sink interface {
	Send(ctx context.Context, r Record) error
}

// SinkFunc is an adapter to allow ordinary functions to be used as Sinks.
type SinkFunc func(ctx context.Context, r Record) error

// Send implements the Sink interface.
func (f SinkFunc) Send(ctx context.Context, r Record) error {
	return f(ctx, r)
}

// LineParser produces events from one line. It lets rule sources other
// than regular expressions, such as WebAssembly plugins, feed Events.
type LineParser interface {
	ParseLine(ctx context.Context, line string) ([]Event, error)
}

// LineParserFunc is an adapter to allow ordinary functions to be used as
// LineParsers.
type LineParserFunc func(ctx context.Context, line string) ([]Event, error)

// ParseLine implements the LineParser interface.
func (f LineParserFunc) ParseLine(ctx context.Context, line string) ([]Event, error) {
	return f(ctx, line)
}

// anyLine matches every line in full.
const anyLine = `(?s)^.*$`

// Events wires the client log format onto a dispatch engine: it registers
// the prefix filter and the event rules, and sends every matched event with
// its line metadata to a Sink.
//
// Sink errors are not swallowed; they stop Run with a *dispatch.HandlerError.
type Events struct {
	engine *dispatch.Engine[event.Info]
	sink   Sink
	filter *compiledFilter
	raw    bool
	log    *slog.Logger
}

// NewEvents creates Events reading from src and sending to sink.
// Only WithIncludeTypes, WithExcludeTypes, WithFilter, WithIncludeRawLine
// and WithLogger apply; other options are ignored.
//
// Call RegisterDefaults (and optionally RegisterRuleFile or RegisterEvent)
// before Run.
func NewEvents(src poll.Poller[string], sink Sink, opts ...WatchOption) *Events {
	return newEvents(src, sink, applyWatchOptions(opts))
}

func newEvents(src poll.Poller[string], sink Sink, cfg *watchConfig) *Events {
	log := cfg.logger
	if log == nil {
		log = discardLogger
	}
	return &Events{
		engine: dispatch.New[event.Info](src, dispatch.WithLogger(cfg.logger)),
		sink:   sink,
		filter: cfg.filter,
		raw:    cfg.includeRawLine,
		log:    log,
	}
}

// RegisterDefaults registers the line filters and the built-in event rules.
func (e *Events) RegisterDefaults() error {
	if e.raw {
		e.engine.RegisterFilter(keepRawLine)
	}
	e.engine.RegisterFilter(trimCR)
	e.engine.RegisterFilter(extractInfo)

	for _, r := range builtinRules {
		if err := e.RegisterEvent(r.pattern, r.build); err != nil {
			return err
		}
	}
	return nil
}

// RegisterEvent registers a rule that builds an event from each match.
// It returns *dispatch.PatternError if pattern does not compile.
func (e *Events) RegisterEvent(pattern string, build func(c dispatch.Captures) Event) error {
	return e.engine.RegisterEvent(pattern, func(ctx context.Context, c dispatch.Captures, info event.Info) error {
		return e.emit(ctx, build(c), info)
	})
}

// RegisterRuleFile registers every rule of f. Matches produce events with
// Type set to the rule's event type and Data set to its named captures.
//
// Every regex is compiled before any rule is registered, so a file with a
// bad regex is rejected as a whole with *pattern.RuleError and leaves e
// unchanged.
func (e *Events) RegisterRuleFile(f *pattern.File) error {
	if f == nil {
		return errors.New("rule file is nil")
	}
	for i, r := range f.Rules {
		if _, err := regexp.Compile(r.Regex); err != nil {
			return &pattern.RuleError{
				Index:   i,
				ID:      r.ID,
				Field:   "regex",
				Message: fmt.Sprintf("invalid regular expression: %v", err),
				Cause:   &dispatch.PatternError{Pattern: r.Regex, Err: err},
			}
		}
	}

	for _, r := range f.Rules {
		typ := event.Type(r.EventType)
		err := e.RegisterEvent(r.Regex, func(c dispatch.Captures) Event {
			return Event{Type: typ, Data: c.Map()}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RegisterParser runs p on every line, after the filters and in rule order,
// and emits each event it returns. A failure of p is logged and the line
// is skipped; only a done ctx stops processing.
func (e *Events) RegisterParser(p LineParser) error {
	if p == nil {
		return errors.New("line parser is nil")
	}
	return e.engine.RegisterEvent(anyLine, func(ctx context.Context, c dispatch.Captures, info event.Info) error {
		evs, err := p.ParseLine(ctx, c.Group(0))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Warn("line parser failed, skipping line", "error", err)
			return nil
		}
		for _, ev := range evs {
			if err := e.emit(ctx, ev, info); err != nil {
				return err
			}
		}
		return nil
	})
}

// Process runs one line through the filters and rules.
func (e *Events) Process(ctx context.Context, line string) error {
	return e.engine.Process(ctx, line)
}

// Run processes lines until the source fails, a sink send fails, or ctx is
// done. It always returns a non-nil error.
func (e *Events) Run(ctx context.Context) error {
	return e.engine.Run(ctx)
}

func (e *Events) emit(ctx context.Context, ev Event, info event.Info) error {
	if !e.filter.Allows(ev.Type) {
		return nil
	}
	return e.sink.Send(ctx, Record{Event: ev, Info: info})
}
