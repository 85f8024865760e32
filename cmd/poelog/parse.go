package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/poelog/poelog-go/internal/wasm"
	"github.com/poelog/poelog-go/pkg/poelog"
)

var (
	// parse flags
	parseFormat        string
	parseTypes         []string
	parseExclude       []string
	parseRaw           bool
	parseRules         []string
	parsePlugins       []string
	parsePluginTimeout time.Duration
	parseMaxLineBytes  int
	stopOnError        bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [file...]",
	Short: "Parse saved client logs and output events",
	Long: `Parse one or more saved client logs and output the events they contain.

With no file, or when file is "-", standard input is read.
Lines that are not valid UTF-8 are reported on stderr and skipped
unless --stop-on-error is set.

Examples:
  # Parse a saved log
  poelog parse Client.txt

  # Count level ups
  poelog parse --types level_up Client.txt | wc -l

  # Read from a pipe
  cat Client.txt | poelog parse --format pretty`,
	RunE: runParse,
}

func init() {
	f := parseCmd.Flags()
	f.StringVarP(&parseFormat, "format", "f", "jsonl",
		"Output format: jsonl, pretty")
	f.StringSliceVarP(&parseTypes, "types", "t", nil,
		"Event types to show (comma-separated)")
	f.StringSliceVar(&parseExclude, "exclude-types", nil,
		"Event types to hide (comma-separated, wins over --types)")
	f.BoolVar(&parseRaw, "raw", false,
		"Include raw log lines in output")
	f.StringSliceVar(&parseRules, "rules", nil,
		"YAML rule files with custom events")
	f.StringSliceVar(&parsePlugins, "plugin", nil,
		"WebAssembly plugins that parse every line")
	f.DurationVar(&parsePluginTimeout, "plugin-timeout", wasm.DefaultTimeout,
		"Limit on one plugin call per line")
	f.IntVar(&parseMaxLineBytes, "max-line-bytes", poelog.DefaultMaxLineBytes,
		"Longest accepted line")
	f.BoolVar(&stopOnError, "stop-on-error", false,
		"Stop at the first malformed line")

	rootCmd.AddCommand(parseCmd)
}

// parseOptions builds parse options from the parse flags. The returned
// cleanup releases loaded plugins and is never nil.
func parseOptions(ctx context.Context, log *slog.Logger) ([]poelog.ParseOption, func(), error) {
	noop := func() {}
	if !ValidFormats[parseFormat] {
		return nil, noop, fmt.Errorf("invalid --format %q (valid: jsonl, pretty)", parseFormat)
	}

	files, err := loadRuleFiles(parseRules)
	if err != nil {
		return nil, noop, err
	}
	plugins := len(parsePlugins) > 0
	include, err := parseEventTypes(parseTypes, files, plugins)
	if err != nil {
		return nil, noop, fmt.Errorf("invalid --types: %w", err)
	}
	exclude, err := parseEventTypes(parseExclude, files, plugins)
	if err != nil {
		return nil, noop, fmt.Errorf("invalid --exclude-types: %w", err)
	}

	parsers, cleanup, err := loadPlugins(ctx, parsePlugins, parsePluginTimeout, log)
	if err != nil {
		return nil, noop, err
	}

	return []poelog.ParseOption{
		poelog.WithParseFilter(include, exclude),
		poelog.WithParseIncludeRawLine(parseRaw),
		poelog.WithParseRuleFiles(files...),
		poelog.WithParseParsers(parsers...),
		poelog.WithParseMaxLineBytes(parseMaxLineBytes),
	}, cleanup, nil
}

func runParse(cmd *cobra.Command, args []string) error {
	log := newLogger(cmd.ErrOrStderr(), verbose)
	if log == nil {
		log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	opts, cleanup, err := parseOptions(cmd.Context(), log)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(args) == 0 {
		args = []string{"-"}
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	for _, path := range args {
		var seq iter.Seq2[poelog.Record, error]
		if path == "-" {
			seq = poelog.ParseReader(ctx, cmd.InOrStdin(), opts...)
		} else {
			seq = poelog.ParseFile(ctx, path, opts...)
		}
		log.Debug("parsing", "source", path)
		if err := writeRecords(seq, out, log, path); err != nil {
			return err
		}
	}
	return nil
}

// writeRecords writes every record of seq to out. Malformed lines are
// logged and skipped unless --stop-on-error is set; other errors stop.
func writeRecords(seq iter.Seq2[poelog.Record, error], out io.Writer, log *slog.Logger, source string) error {
	for r, err := range seq {
		if err != nil {
			if errors.Is(err, poelog.ErrInvalidUTF8) && !stopOnError {
				log.Warn("skipping line", "source", source, "error", err)
				continue
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("%s: %w", source, err)
		}
		if err := OutputRecord(parseFormat, r, out); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
	}
	return nil
}
