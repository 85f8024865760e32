package wasm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"golang.org/x/time/rate"
)

const (
	// MaxLogSize is the longest plugin log message; longer ones are cut.
	MaxLogSize = 256

	// LogRateLimit is how many plugin log messages per second reach the
	// logger. The rest are dropped.
	LogRateLimit = 10

	// bufferTooSmall is returned by regex_find_submatch when the result
	// does not fit the plugin's buffer.
	bufferTooSmall = 0xFFFFFFFF
)

// Plugin log levels passed to the log host function.
const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

// host holds the state behind the functions a plugin imports from "env".
type host struct {
	regexes *regexCache
	log     *slog.Logger
	limiter *rate.Limiter
}

func newHost(logger *slog.Logger) *host {
	if logger == nil {
		logger = discardLogger
	}
	return &host{
		regexes: newRegexCache(DefaultRegexCacheSize),
		log:     logger,
		limiter: rate.NewLimiter(LogRateLimit, LogRateLimit),
	}
}

// instantiate registers the host functions as the "env" module of rt.
func (h *host) instantiate(ctx context.Context, rt wazero.Runtime) error {
	_, err := rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, sPtr, sLen, rePtr, reLen uint32) uint32 {
			s, pattern, ok := readPair(m, sPtr, sLen, rePtr, reLen)
			if !ok || !h.match(pattern, s) {
				return 0
			}
			return 1
		}).
		Export("regex_match").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, sPtr, sLen, rePtr, reLen, outPtr, outLen uint32) uint32 {
			s, pattern, ok := readPair(m, sPtr, sLen, rePtr, reLen)
			if !ok {
				return 0
			}
			out := h.findSubmatch(pattern, s)
			if out == nil {
				return 0
			}
			if uint32(len(out)) > outLen {
				return bufferTooSmall
			}
			if !m.Memory().Write(outPtr, out) {
				return 0
			}
			return uint32(len(out))
		}).
		Export("regex_find_submatch").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, level, ptr, n uint32) {
			truncated := n > MaxLogSize
			if truncated {
				n = MaxLogSize
			}
			b, ok := m.Memory().Read(ptr, n)
			if !ok {
				return
			}
			h.logMessage(ctx, level, string(b), truncated)
		}).
		Export("log").
		NewFunctionBuilder().
		WithFunc(func() int64 { return time.Now().UnixMilli() }).
		Export("now_ms").
		Instantiate(ctx)
	return err
}

// readPair reads the subject string and the pattern out of guest memory.
func readPair(m api.Module, sPtr, sLen, rePtr, reLen uint32) (s, pattern string, ok bool) {
	sb, ok := m.Memory().Read(sPtr, sLen)
	if !ok {
		return "", "", false
	}
	pb, ok := m.Memory().Read(rePtr, reLen)
	if !ok {
		return "", "", false
	}
	return string(sb), string(pb), true
}

// match reports whether pattern matches s. Invalid patterns never match.
// The regexp engine runs in time linear in the input, so no deadline is
// needed here beyond the parse_line timeout.
func (h *host) match(pattern, s string) bool {
	re, err := h.regexes.Get(pattern)
	if err != nil {
		h.log.Warn("plugin regex rejected", "pattern", pattern, "error", err)
		return false
	}
	return re.MatchString(s)
}

// findSubmatch returns the leftmost match of pattern in s and its groups as
// a JSON array of strings, or nil if there is no match.
func (h *host) findSubmatch(pattern, s string) []byte {
	re, err := h.regexes.Get(pattern)
	if err != nil {
		h.log.Warn("plugin regex rejected", "pattern", pattern, "error", err)
		return nil
	}
	groups := re.FindStringSubmatch(s)
	if groups == nil {
		return nil
	}
	out, err := json.Marshal(groups)
	if err != nil {
		h.log.Error("encode submatches", "error", err)
		return nil
	}
	return out
}

// logMessage forwards a plugin log line, subject to the rate limit.
func (h *host) logMessage(ctx context.Context, level uint32, msg string, truncated bool) {
	if !h.limiter.Allow() {
		return
	}
	msg = strings.ToValidUTF8(msg, "\ufffd")
	if truncated {
		msg += " [truncated]"
	}

	lvl := slog.LevelInfo
	switch level {
	case levelDebug:
		lvl = slog.LevelDebug
	case levelWarn:
		lvl = slog.LevelWarn
	case levelError:
		lvl = slog.LevelError
	}
	h.log.Log(ctx, lvl, "plugin: "+msg)
}
