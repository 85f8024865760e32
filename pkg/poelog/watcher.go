package poelog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	"github.com/poelog/poelog-go/internal/logfinder"
	"github.com/poelog/poelog-go/internal/safefile"
	"github.com/poelog/poelog-go/internal/tailsource"
	"github.com/poelog/poelog-go/pkg/poelog/pattern"
	"github.com/poelog/poelog-go/pkg/poelog/poll"
	"github.com/poelog/poelog-go/pkg/poelog/queue"
)

// watcherErrBuffer is the buffer size for the error channel.
const watcherErrBuffer = 16

// dropWarnInterval limits how often dropped events are reported.
const dropWarnInterval = 5 * time.Second

// Watcher monitors the client log file.
type Watcher struct {
	cfg     watchConfig // immutable after creation
	logFile string      // "" when waiting for the file
	log     *slog.Logger

	mu       sync.Mutex
	closed   bool
	cancel   context.CancelFunc
	doneCh   chan struct{}
	watching bool
}

// discardLogger returns a logger that discards all output.
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Watch starts watching and returns channels.
// Both channels close on ctx.Done(), Close, or a fatal error. A fatal error
// is sent as *WatchError on the error channel before it closes, after every
// event matched before the failure has been delivered.
// Watch can only be called once per Watcher instance.
//
// Returns ErrWatcherClosed if the watcher has been closed.
// Returns ErrAlreadyWatching if Watch() has already been called.
func (w *Watcher) Watch(ctx context.Context) (<-chan Record, <-chan error, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, nil, ErrWatcherClosed
	}
	if w.watching {
		return nil, nil, ErrAlreadyWatching
	}
	w.watching = true

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.doneCh = make(chan struct{})

	eventCh := make(chan Record)
	errCh := make(chan error, watcherErrBuffer)

	go w.run(ctx, eventCh, errCh)

	return eventCh, errCh, nil
}

// Close stops the watcher and releases resources.
// Safe to call multiple times.
// Blocks until the goroutine has exited.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true

	if w.cancel != nil {
		w.cancel()
	}
	doneCh := w.doneCh
	w.mu.Unlock()

	if doneCh != nil {
		<-doneCh
	}
	return nil
}

func (w *Watcher) run(ctx context.Context, eventCh chan<- Record, errCh chan<- error) {
	defer close(w.doneCh)
	defer close(eventCh)
	defer close(errCh)

	logFile := w.logFile
	if logFile == "" {
		w.log.Debug("waiting for log file", "max_interval", w.cfg.waitInterval)
		var err error
		logFile, err = logfinder.WaitForLogFile(ctx, w.cfg.logFile, w.cfg.waitInterval)
		if err != nil {
			if ctx.Err() == nil {
				sendError(ctx, errCh, &WatchError{Op: WatchOpFindLog, Err: err})
			}
			return
		}
		w.log.Debug("log file appeared", "path", logFile)
	}

	src, closer, err := w.openSource(logFile)
	if err != nil {
		sendError(ctx, errCh, &WatchError{Op: WatchOpOpen, Path: logFile, Err: err})
		return
	}
	defer closer.Close()
	w.log.Debug("started watching", "path", logFile,
		"from_start", w.cfg.replay == ReplayFromStart,
		"follow_rotation", w.cfg.followRotation)

	var q *queue.Queue[Record]
	limiter := rate.NewLimiter(rate.Every(dropWarnInterval), 1)
	q, err = queue.New[Record](
		queue.WithCapacity[Record](w.cfg.queueCapacity),
		queue.WithPolicy[Record](w.cfg.overflow),
		queue.WithOnDrop(func(r Record) {
			if limiter.Allow() {
				w.log.Warn("event queue full, dropping events",
					"policy", w.cfg.overflow, "type", r.Event.Type, "dropped", q.Dropped())
			}
		}),
	)
	if err != nil {
		sendError(ctx, errCh, &WatchError{Op: WatchOpDispatch, Path: logFile, Err: err})
		return
	}

	events := newEvents(src, q, &w.cfg)
	if err := registerAll(events, w.cfg.ruleFiles, w.cfg.parsers); err != nil {
		sendError(ctx, errCh, &WatchError{Op: WatchOpDispatch, Path: logFile, Err: err})
		return
	}

	var wg conc.WaitGroup
	wg.Go(func() { pump(ctx, q, eventCh) })

	err = events.Run(ctx)
	q.Close()
	wg.Wait()

	if n := q.Dropped(); n > 0 {
		w.log.Warn("events dropped by overflow policy", "dropped", n)
	}
	if ctx.Err() == nil {
		w.log.Debug("watcher stopped", "path", logFile, "error", err)
		sendError(ctx, errCh, &WatchError{Op: WatchOpDispatch, Path: logFile, Err: err})
	}
}

// openSource opens the line source for path according to the configuration.
func (w *Watcher) openSource(path string) (poll.Poller[string], io.Closer, error) {
	if w.cfg.followRotation {
		s, err := tailsource.New(path, tailsource.Config{
			FromStart: w.cfg.replay == ReplayFromStart,
			Logger:    w.log,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}

	pos := safefile.End
	if w.cfg.replay == ReplayFromStart {
		pos = safefile.Start
	}
	f, _, err := safefile.Open(path, pos)
	if err != nil {
		return nil, nil, err
	}

	var opts []poll.CharOption
	if w.cfg.carryIncomplete {
		opts = append(opts, poll.CarryIncomplete())
	}
	lp, err := poll.NewLinePollFromReader(f, w.cfg.pollDelay, w.cfg.bufferSize, opts...)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return lp, f, nil
}

// registerAll installs the built-in rules, then the rule files, then the
// line parsers.
func registerAll(e *Events, files []*pattern.File, parsers []LineParser) error {
	if err := e.RegisterDefaults(); err != nil {
		return err
	}
	for _, f := range files {
		if err := e.RegisterRuleFile(f); err != nil {
			return err
		}
	}
	for _, p := range parsers {
		if err := e.RegisterParser(p); err != nil {
			return err
		}
	}
	return nil
}

// pump moves records from q to out until q is closed and drained or ctx is
// done.
func pump(ctx context.Context, q *queue.Queue[Record], out chan<- Record) {
	for {
		r, err := q.Recv(ctx)
		if err != nil {
			return
		}
		select {
		case out <- r:
		case <-ctx.Done():
			return
		}
	}
}

// sendError sends an error to the error channel.
// With a buffered channel, errors are only dropped if the buffer is full.
// The context case ensures we don't block during shutdown.
func sendError(ctx context.Context, errCh chan<- error, err error) {
	if err == nil {
		return
	}
	select {
	case errCh <- err:
	case <-ctx.Done():
	default:
	}
}

// WatchWithOptions creates a watcher using functional options and starts watching.
//
// The underlying Watcher is not returned; it stops when ctx is cancelled.
// For synchronous shutdown use NewWatcherWithOptions and Watcher.Close.
//
// Example:
//
//	records, errs, err := poelog.WatchWithOptions(ctx,
//	    poelog.WithIncludeTypes(poelog.EventPlayerJoinedArea, poelog.EventPlayerLeftArea),
//	    poelog.WithLogger(logger),
//	)
func WatchWithOptions(ctx context.Context, opts ...WatchOption) (<-chan Record, <-chan error, error) {
	w, err := NewWatcherWithOptions(opts...)
	if err != nil {
		return nil, nil, err
	}
	return w.Watch(ctx)
}

// NewWatcherWithOptions creates a watcher using functional options.
// It validates options and rule files and locates the log file, unless
// WithWaitForLogs is set, in which case the file is located by Watch.
// Does NOT start goroutines.
func NewWatcherWithOptions(opts ...WatchOption) (*Watcher, error) {
	cfg := applyWatchOptions(opts)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	// Compile rule files now so bad patterns fail before Watch.
	dry := newEvents(nil, nil, cfg)
	for _, f := range cfg.ruleFiles {
		if err := dry.RegisterRuleFile(f); err != nil {
			return nil, fmt.Errorf("invalid rule file: %w", err)
		}
	}

	var logFile string
	if !cfg.waitForLogs {
		var err error
		logFile, err = logfinder.FindLogFile(cfg.logFile)
		if err != nil {
			return nil, fmt.Errorf("finding log file: %w", err)
		}
	}

	log := cfg.logger
	if log == nil {
		log = discardLogger
	}
	log = log.With("session", uuid.NewString())
	cfg.logger = log

	return &Watcher{
		cfg:     *cfg,
		logFile: logFile,
		log:     log,
	}, nil
}
