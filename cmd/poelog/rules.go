package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poelog/poelog-go/internal/wasm"
	"github.com/poelog/poelog-go/pkg/poelog"
	"github.com/poelog/poelog-go/pkg/poelog/pattern"
)

// loadRuleFiles loads and validates YAML rule files.
func loadRuleFiles(paths []string) ([]*pattern.File, error) {
	files := make([]*pattern.File, 0, len(paths))
	for i, path := range paths {
		f, err := pattern.Load(path)
		if err != nil {
			// Errors from pattern.Load do not include the path.
			return nil, fmt.Errorf("rule file %d: %w", i+1, err)
		}
		files = append(files, f)
	}
	return files, nil
}

// loadPlugins loads WebAssembly plugins and applies timeout to each when it
// is positive. The returned cleanup closes them and is never nil.
func loadPlugins(ctx context.Context, paths []string, timeout time.Duration, logger *slog.Logger) ([]poelog.LineParser, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var loaded []*wasm.Plugin
	cleanup := func() {
		for _, p := range loaded {
			p.Close()
		}
	}

	parsers := make([]poelog.LineParser, 0, len(paths))
	for i, path := range paths {
		p, err := wasm.Load(ctx, path, logger)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("plugin %d: %w", i+1, err)
		}
		p.SetTimeout(timeout)
		loaded = append(loaded, p)
		parsers = append(parsers, p)
	}
	return parsers, cleanup, nil
}
