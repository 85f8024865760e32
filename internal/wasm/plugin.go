package wasm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/tetratelabs/wazero"

	"github.com/poelog/poelog-go/pkg/poelog/event"
)

const (
	// DefaultTimeout bounds one parse_line call.
	DefaultTimeout = 50 * time.Millisecond

	// MaxOutputSize is the largest parse_line result the host reads (1MB).
	MaxOutputSize = 1 << 20
)

type parseInput struct {
	Line string `json:"line"`
}

type parseOutput struct {
	OK     bool          `json:"ok"`
	Events []event.Event `json:"events"`
	Error  string        `json:"error,omitempty"`
	Code   string        `json:"code,omitempty"`
}

// Plugin is a loaded WebAssembly line parser.
//
// ParseLine may be called from several goroutines: every call runs in a
// fresh module instance. Close waits for calls in progress.
type Plugin struct {
	mu      sync.RWMutex
	mod     *module // nil once closed
	timeout atomic.Int64
	seq     atomic.Uint64
}

// Load compiles the plugin at path and checks its ABI version.
// A nil logger discards plugin log output.
func Load(ctx context.Context, path string, logger *slog.Logger) (*Plugin, error) {
	mod, err := compile(ctx, path, logger)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(ctx, mod); err != nil {
		mod.close(context.Background())
		return nil, err
	}

	p := &Plugin{mod: mod}
	p.timeout.Store(int64(DefaultTimeout))
	return p, nil
}

func checkVersion(ctx context.Context, mod *module) error {
	inst, err := mod.rt.InstantiateModule(ctx, mod.compiled, wazero.NewModuleConfig().WithName("plugin-init"))
	if err != nil {
		return &RuntimeError{Op: "instantiate", Err: err}
	}
	defer inst.Close(context.Background())

	res, err := inst.ExportedFunction("abi_version").Call(ctx)
	if err != nil {
		return &RuntimeError{Op: "call abi_version", Err: err}
	}
	if len(res) == 0 {
		return &ABIError{Function: "abi_version", Reason: "no return value"}
	}
	if v := uint32(res[0]); v != ABIVersion {
		return fmt.Errorf("%w: plugin has %d, host supports %d", ErrABIVersionMismatch, v, ABIVersion)
	}
	return nil
}

// SetTimeout changes the limit on one parse_line call. Non-positive values
// are ignored.
func (p *Plugin) SetTimeout(d time.Duration) {
	if d > 0 {
		p.timeout.Store(int64(d))
	}
}

// ParseLine runs parse_line on line and returns the events the plugin
// produced, or nil if it produced none.
//
// A plugin-reported failure is returned as *PluginError and a call that
// runs past the timeout as ErrTimeout. If ctx itself is done, its error is
// returned.
func (p *Plugin) ParseLine(ctx context.Context, line string) ([]event.Event, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.mod == nil {
		return nil, ErrClosed
	}

	in, err := json.Marshal(parseInput{Line: line})
	if err != nil {
		return nil, fmt.Errorf("wasm: encode input: %w", err)
	}
	if len(in) > InputRegionSize {
		return nil, fmt.Errorf("wasm: input is %d bytes (max %d)", len(in), InputRegionSize)
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(p.timeout.Load()))
	defer cancel()

	name := fmt.Sprintf("plugin-%d", p.seq.Add(1))
	inst, err := p.mod.rt.InstantiateModule(callCtx, p.mod.compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, p.callError(ctx, callCtx, &RuntimeError{Op: "instantiate", Err: err})
	}
	defer inst.Close(context.Background())

	mem := inst.Memory()
	if mem == nil || mem.Size() < InputRegion+uint32(len(in)) {
		return nil, &ABIError{Function: "memory", Reason: "too small for the input region"}
	}
	if !mem.Write(InputRegion, in) {
		return nil, &RuntimeError{Op: "write input", Err: errors.New("out of range")}
	}

	res, err := inst.ExportedFunction("parse_line").Call(callCtx, InputRegion, uint64(len(in)))
	if err != nil {
		return nil, p.callError(ctx, callCtx, &RuntimeError{Op: "call parse_line", Err: err})
	}
	if len(res) == 0 {
		return nil, &ABIError{Function: "parse_line", Reason: "no return value"}
	}

	outPtr, outLen := uint32(res[0]), uint32(res[0]>>32)
	if outLen > MaxOutputSize {
		return nil, fmt.Errorf("wasm: output is %d bytes (max %d)", outLen, MaxOutputSize)
	}
	view, ok := mem.Read(outPtr, outLen)
	if !ok {
		return nil, &ABIError{Function: "parse_line", Reason: "output out of range"}
	}
	// Read returns a view of guest memory that free may reuse.
	out := make([]byte, len(view))
	copy(out, view)
	_, _ = inst.ExportedFunction("free").Call(callCtx, uint64(outPtr), uint64(outLen))

	var po parseOutput
	if err := json.Unmarshal(out, &po); err != nil {
		return nil, fmt.Errorf("wasm: decode output: %w", err)
	}
	if !po.OK {
		msg := po.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &PluginError{Code: po.Code, Message: msg}
	}
	for i, ev := range po.Events {
		if ev.Type == "" {
			return nil, &PluginError{Code: "invalid_event", Message: fmt.Sprintf("event %d has no type", i)}
		}
	}
	if len(po.Events) == 0 {
		return nil, nil
	}
	return po.Events, nil
}

// callError maps a failed call to the caller's ctx error or ErrTimeout.
func (p *Plugin) callError(ctx, callCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// Close releases the runtime. It is safe to call more than once.
func (p *Plugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mod == nil {
		return nil
	}
	err := p.mod.close(context.Background())
	p.mod = nil
	return err
}
