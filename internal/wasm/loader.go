package wasm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/poelog/poelog-go/internal/safefile"
)

const (
	// MaxFileSize is the largest module Load accepts (10MB).
	MaxFileSize = 10 << 20

	// ABIVersion is the plugin ABI this host implements.
	ABIVersion = 1

	// InputRegion is the guest address the host writes parse_line input
	// to. It sits above TinyGo's data segment and below its heap start.
	InputRegion = 0x10000

	// InputRegionSize is the most input bytes one parse_line call gets.
	InputRegionSize = 8192
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var requiredExports = []string{"abi_version", "alloc", "free", "parse_line"}

// module is a compiled plugin together with the runtime that owns it.
type module struct {
	rt       wazero.Runtime
	compiled wazero.CompiledModule
	cache    wazero.CompilationCache
	host     *host
}

// close releases the compiled module, the runtime and the compilation
// cache, in that order.
func (m *module) close(ctx context.Context) error {
	var errs []error
	if m.compiled != nil {
		errs = append(errs, m.compiled.Close(ctx))
		m.compiled = nil
	}
	if m.rt != nil {
		errs = append(errs, m.rt.Close(ctx))
		m.rt = nil
	}
	if m.cache != nil {
		errs = append(errs, m.cache.Close(ctx))
		m.cache = nil
	}
	return errors.Join(errs...)
}

// compile reads the module at path, registers the host functions and
// compiles it ahead of time.
func compile(ctx context.Context, path string, logger *slog.Logger) (*module, error) {
	b, err := readModule(path)
	if err != nil {
		return nil, err
	}

	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	cache := openCompilationCache(logger)
	if cache != nil {
		cfg = cfg.WithCompilationCache(cache)
	}

	m := &module{
		rt:    wazero.NewRuntimeWithConfig(ctx, cfg),
		cache: cache,
		host:  newHost(logger),
	}
	fail := func(err error) (*module, error) {
		m.close(context.Background())
		return nil, err
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, m.rt); err != nil {
		return fail(&RuntimeError{Op: "instantiate wasi", Err: err})
	}
	if err := m.host.instantiate(ctx, m.rt); err != nil {
		return fail(&RuntimeError{Op: "register host functions", Err: err})
	}

	m.compiled, err = m.rt.CompileModule(ctx, b)
	if err != nil {
		return fail(&RuntimeError{Op: "compile", Err: err})
	}
	if err := checkExports(m.compiled); err != nil {
		return fail(err)
	}
	return m, nil
}

// readModule reads a regular file of at most MaxFileSize bytes.
func readModule(path string) ([]byte, error) {
	f, info, err := safefile.Open(path, safefile.Start)
	if err != nil {
		if errors.Is(err, safefile.ErrNotRegularFile) {
			return nil, fmt.Errorf("wasm: plugin is not a regular file: %w", err)
		}
		return nil, fmt.Errorf("wasm: open plugin: %w", err)
	}
	defer f.Close()

	if info.Size() > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	// The file may have grown since Stat.
	b, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("wasm: read plugin: %w", err)
	}
	if len(b) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return b, nil
}

func checkExports(compiled wazero.CompiledModule) error {
	exported := compiled.ExportedFunctions()
	for _, name := range requiredExports {
		if _, ok := exported[name]; !ok {
			return &ABIError{Function: name, Reason: "missing required export"}
		}
	}
	return nil
}

// openCompilationCache returns a disk cache under the user cache directory,
// or nil if it cannot be created.
func openCompilationCache(logger *slog.Logger) wazero.CompilationCache {
	if logger == nil {
		logger = discardLogger
	}
	base, err := os.UserCacheDir()
	if err != nil {
		logger.Debug("no user cache directory, compiling without cache", "error", err)
		return nil
	}
	dir := filepath.Join(base, "poelog", "wasm")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		logger.Warn("create wasm cache directory", "dir", dir, "error", err)
		return nil
	}
	cache, err := wazero.NewCompilationCacheWithDir(dir)
	if err != nil {
		logger.Warn("open wasm compilation cache", "dir", dir, "error", err)
		return nil
	}
	logger.Debug("using wasm compilation cache", "dir", dir)
	return cache
}
