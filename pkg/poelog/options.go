package poelog

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/poelog/poelog-go/pkg/poelog/pattern"
	"github.com/poelog/poelog-go/pkg/poelog/poll"
	"github.com/poelog/poelog-go/pkg/poelog/queue"
)

// ReplayMode specifies how to handle lines already in the log file.
type ReplayMode int

const (
	// ReplayNone only watches for new lines (default, tail -f behavior).
	ReplayNone ReplayMode = iota
	// ReplayFromStart reads from the beginning of the file.
	ReplayFromStart
)

const (
	// DefaultQueueCapacity is the default bound of the event queue.
	DefaultQueueCapacity = 4096

	// DefaultWaitInterval is the longest wait between attempts to find the
	// log file when WithWaitForLogs is set.
	DefaultWaitInterval = 2 * time.Second
)

// WatchOption configures Watch behavior using the functional options pattern.
type WatchOption func(*watchConfig)

// watchConfig holds internal configuration for the watcher.
type watchConfig struct {
	logFile         string
	pollDelay       time.Duration
	bufferSize      int
	carryIncomplete bool
	followRotation  bool
	waitForLogs     bool
	waitInterval    time.Duration
	replay          ReplayMode
	queueCapacity   int // 0 = unbounded
	overflow        queue.Policy
	includeRawLine  bool
	logger          *slog.Logger
	filter          *compiledFilter
	ruleFiles       []*pattern.File
	parsers         []LineParser
}

func defaultWatchConfig() *watchConfig {
	return &watchConfig{
		pollDelay:     poll.DefaultDelay,
		bufferSize:    poll.DefaultBufferLen,
		waitInterval:  DefaultWaitInterval,
		queueCapacity: DefaultQueueCapacity,
		overflow:      queue.Block,
	}
}

// applyWatchOptions applies functional options to a watchConfig.
func applyWatchOptions(opts []WatchOption) *watchConfig {
	cfg := defaultWatchConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// validate checks for invalid option values.
func (c *watchConfig) validate() error {
	if c.pollDelay < 0 {
		return fmt.Errorf("poll delay must be non-negative, got %v", c.pollDelay)
	}
	if c.bufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive, got %d", c.bufferSize)
	}
	if c.waitInterval <= 0 {
		return fmt.Errorf("wait interval must be positive, got %v", c.waitInterval)
	}
	if c.replay != ReplayNone && c.replay != ReplayFromStart {
		return fmt.Errorf("unknown replay mode %d", c.replay)
	}
	if c.queueCapacity < 0 {
		return fmt.Errorf("queue capacity must be non-negative, got %d", c.queueCapacity)
	}
	if c.overflow < queue.Block || c.overflow > queue.DropNewest {
		return fmt.Errorf("unknown overflow policy %d", c.overflow)
	}
	for _, f := range c.ruleFiles {
		if f == nil {
			return fmt.Errorf("rule file is nil")
		}
	}
	for _, p := range c.parsers {
		if p == nil {
			return fmt.Errorf("line parser is nil")
		}
	}
	return nil
}

// WithLogFile sets the client log file to watch.
// If not set, the POELOG_LOGFILE environment variable and then the default
// install locations are tried.
func WithLogFile(path string) WatchOption {
	return func(c *watchConfig) {
		c.logFile = path
	}
}

// WithPollDelay sets how long the reader sleeps when no new data is
// available. Default: 20ms.
func WithPollDelay(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		c.pollDelay = d
	}
}

// WithBufferSize sets the maximum number of bytes read per poll.
// Default: 1024.
func WithBufferSize(n int) WatchOption {
	return func(c *watchConfig) {
		c.bufferSize = n
	}
}

// WithCarryIncomplete keeps a UTF-8 sequence split across two reads and
// completes it on the next read instead of failing.
func WithCarryIncomplete(carry bool) WatchOption {
	return func(c *watchConfig) {
		c.carryIncomplete = carry
	}
}

// WithFollowRotation follows the file by name, reopening it when it is
// truncated or replaced.
func WithFollowRotation(follow bool) WatchOption {
	return func(c *watchConfig) {
		c.followRotation = follow
	}
}

// WithWaitForLogs configures whether to wait for the log file to appear.
// When false (default), ErrLogFileNotFound is returned by
// NewWatcherWithOptions if no log file exists.
func WithWaitForLogs(wait bool) WatchOption {
	return func(c *watchConfig) {
		c.waitForLogs = wait
	}
}

// WithWaitInterval sets the longest wait between attempts to find the log
// file. Default: 2 seconds.
func WithWaitInterval(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		c.waitInterval = d
	}
}

// WithReplay configures replay behavior for existing log lines.
// Default: ReplayNone (only new lines).
func WithReplay(mode ReplayMode) WatchOption {
	return func(c *watchConfig) {
		c.replay = mode
	}
}

// WithReplayFromStart reads from the beginning of the log file.
func WithReplayFromStart() WatchOption {
	return WithReplay(ReplayFromStart)
}

// WithQueueCapacity bounds the number of undelivered events.
// 0 makes the queue unbounded. Default: 4096.
func WithQueueCapacity(n int) WatchOption {
	return func(c *watchConfig) {
		c.queueCapacity = n
	}
}

// WithOverflowPolicy sets what happens when the event queue is full.
// Default: queue.Block.
func WithOverflowPolicy(p queue.Policy) WatchOption {
	return func(c *watchConfig) {
		c.overflow = p
	}
}

// WithIncludeRawLine includes the original log line in Info.RawLine.
// Default: false.
func WithIncludeRawLine(include bool) WatchOption {
	return func(c *watchConfig) {
		c.includeRawLine = include
	}
}

// WithLogger sets a custom logger for debug output.
// If logger is nil, logging is disabled (default behavior).
func WithLogger(logger *slog.Logger) WatchOption {
	return func(c *watchConfig) {
		c.logger = logger
	}
}

// WithRuleFiles adds custom event rules after the built-in ones.
func WithRuleFiles(files ...*pattern.File) WatchOption {
	return func(c *watchConfig) {
		c.ruleFiles = append(c.ruleFiles, files...)
	}
}

// WithParsers adds line parsers, such as WebAssembly plugins, that run on
// every line after the rules. The watcher does not close them.
func WithParsers(parsers ...LineParser) WatchOption {
	return func(c *watchConfig) {
		c.parsers = append(c.parsers, parsers...)
	}
}

// WithIncludeTypes filters events to only include the specified types.
// If called multiple times, only the last call takes effect.
func WithIncludeTypes(types ...EventType) WatchOption {
	return func(c *watchConfig) {
		if c.filter == nil {
			c.filter = &compiledFilter{}
		}
		c.filter.include = toSet(types)
	}
}

// WithExcludeTypes filters out events of the specified types.
// Exclude takes precedence over include.
// If called multiple times, only the last call takes effect.
func WithExcludeTypes(types ...EventType) WatchOption {
	return func(c *watchConfig) {
		if c.filter == nil {
			c.filter = &compiledFilter{}
		}
		c.filter.exclude = toSet(types)
	}
}

// WithFilter sets both include and exclude type filters.
func WithFilter(include, exclude []EventType) WatchOption {
	return func(c *watchConfig) {
		c.filter = newCompiledFilter(include, exclude)
	}
}
