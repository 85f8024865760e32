package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/poelog/poelog-go/internal/wasm"
	"github.com/poelog/poelog-go/pkg/poelog"
	"github.com/poelog/poelog-go/pkg/poelog/poll"
	"github.com/poelog/poelog-go/pkg/poelog/queue"
)

var (
	// tail flags
	logFile           string
	tailFormat        string
	tailTypes         []string
	tailExclude       []string
	tailRaw           bool
	tailRules         []string
	tailPlugins       []string
	tailPluginTimeout time.Duration
	fromStart         bool
	followRotation    bool
	waitForLogs       bool
	pollDelay         time.Duration
	bufferSize        int
	carryIncomplete   bool
	queueSize         int
	overflow          string
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the client log and output events",
	Long: `Follow the Path of Exile client log in real time and output parsed events.

Events are output as JSON Lines by default (one JSON object per line),
which makes it easy to process with tools like jq.

Examples:
  # Follow with default settings (auto-detect Client.txt)
  poelog tail

  # Specify the log file
  poelog tail --log-file "C:\Program Files (x86)\Grinding Gear Games\Path of Exile\logs\Client.txt"

  # Output only area changes and level ups
  poelog tail --types joined_area,level_up

  # Human-readable output, replaying the whole file first
  poelog tail --format pretty --from-start

  # Add custom rules and a WebAssembly plugin
  poelog tail --rules trade.yaml --plugin stash.wasm

  # Pipe to jq for filtering
  poelog tail | jq 'select(.event.type == "player_joined_area")'`,
	RunE: runTail,
}

func init() {
	f := tailCmd.Flags()
	f.StringVarP(&logFile, "log-file", "l", "",
		"Client.txt path (auto-detected if not specified, or set POELOG_LOGFILE)")
	f.StringVarP(&tailFormat, "format", "f", "jsonl",
		"Output format: jsonl, pretty")
	f.StringSliceVarP(&tailTypes, "types", "t", nil,
		"Event types to show (comma-separated)")
	f.StringSliceVar(&tailExclude, "exclude-types", nil,
		"Event types to hide (comma-separated, wins over --types)")
	f.BoolVar(&tailRaw, "raw", false,
		"Include raw log lines in output")
	f.StringSliceVar(&tailRules, "rules", nil,
		"YAML rule files with custom events")
	f.StringSliceVar(&tailPlugins, "plugin", nil,
		"WebAssembly plugins that parse every line")
	f.DurationVar(&tailPluginTimeout, "plugin-timeout", wasm.DefaultTimeout,
		"Limit on one plugin call per line")
	f.BoolVar(&fromStart, "from-start", false,
		"Replay the whole file before following")
	f.BoolVar(&followRotation, "follow-rotation", false,
		"Reopen the file when it is truncated or replaced")
	f.BoolVar(&waitForLogs, "wait", false,
		"Wait for the log file to appear")
	f.DurationVar(&pollDelay, "poll-delay", poll.DefaultDelay,
		"Sleep between reads when no new data is available")
	f.IntVar(&bufferSize, "buffer-size", poll.DefaultBufferLen,
		"Maximum bytes read per poll")
	f.BoolVar(&carryIncomplete, "carry-incomplete", false,
		"Complete UTF-8 sequences split across reads instead of failing")
	f.IntVar(&queueSize, "queue-size", poelog.DefaultQueueCapacity,
		"Maximum undelivered events (0 = unbounded)")
	f.StringVar(&overflow, "overflow", queue.Block.String(),
		"Policy when the queue is full: block, drop-oldest, drop-newest")

	rootCmd.AddCommand(tailCmd)
}

// tailOptions builds watcher options from the tail flags. The returned
// cleanup releases loaded plugins and is never nil.
func tailOptions(cmd *cobra.Command) ([]poelog.WatchOption, func(), error) {
	noop := func() {}
	if !ValidFormats[tailFormat] {
		return nil, noop, fmt.Errorf("invalid --format %q (valid: jsonl, pretty)", tailFormat)
	}

	policy, err := queue.ParsePolicy(overflow)
	if err != nil {
		return nil, noop, fmt.Errorf("invalid --overflow: %w", err)
	}

	files, err := loadRuleFiles(tailRules)
	if err != nil {
		return nil, noop, err
	}
	plugins := len(tailPlugins) > 0
	include, err := parseEventTypes(tailTypes, files, plugins)
	if err != nil {
		return nil, noop, fmt.Errorf("invalid --types: %w", err)
	}
	exclude, err := parseEventTypes(tailExclude, files, plugins)
	if err != nil {
		return nil, noop, fmt.Errorf("invalid --exclude-types: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), verbose)
	parsers, cleanup, err := loadPlugins(cmd.Context(), tailPlugins, tailPluginTimeout, logger)
	if err != nil {
		return nil, noop, err
	}

	opts := []poelog.WatchOption{
		poelog.WithLogFile(logFile),
		poelog.WithFilter(include, exclude),
		poelog.WithIncludeRawLine(tailRaw),
		poelog.WithRuleFiles(files...),
		poelog.WithParsers(parsers...),
		poelog.WithFollowRotation(followRotation),
		poelog.WithWaitForLogs(waitForLogs),
		poelog.WithPollDelay(pollDelay),
		poelog.WithBufferSize(bufferSize),
		poelog.WithCarryIncomplete(carryIncomplete),
		poelog.WithQueueCapacity(queueSize),
		poelog.WithOverflowPolicy(policy),
		poelog.WithLogger(logger),
	}
	if fromStart {
		opts = append(opts, poelog.WithReplayFromStart())
	}
	return opts, cleanup, nil
}

func runTail(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, cleanup, err := tailOptions(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	watcher, err := poelog.NewWatcherWithOptions(opts...)
	if err != nil {
		return err
	}
	defer watcher.Close()

	records, errs, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}
	return outputLoop(ctx, records, errs, func(r poelog.Record) error {
		return OutputRecord(tailFormat, r, cmd.OutOrStdout())
	})
}

// outputLoop writes records until both channels are closed or ctx is done.
// Errors from the watcher are terminal and returned.
func outputLoop(ctx context.Context, records <-chan poelog.Record, errs <-chan error, write func(poelog.Record) error) error {
	var watchErr error
	for records != nil || errs != nil {
		select {
		case r, ok := <-records:
			if !ok {
				records = nil
				continue
			}
			if err := write(r); err != nil {
				return fmt.Errorf("output error: %w", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			watchErr = err
		case <-ctx.Done():
			return nil
		}
	}
	return watchErr
}
