// Package wasm runs WebAssembly line parsers as event rule plugins.
//
// A plugin exports abi_version, alloc, free and parse_line. For every log
// line the host writes {"line": "..."} at InputRegion and calls
// parse_line(ptr, len), which returns (out_len << 32) | out_ptr pointing at
// {"ok": true, "events": [...]} or {"ok": false, "error": "...", "code": "..."}.
// Plugins may import regex_match, regex_find_submatch, log and now_ms from
// the "env" module.
package wasm

import (
	"errors"
	"fmt"
)

var (
	// ErrABIVersionMismatch is returned when abi_version reports a version
	// other than ABIVersion.
	ErrABIVersionMismatch = errors.New("wasm: abi version mismatch")

	// ErrTimeout is returned when parse_line runs past the plugin timeout.
	ErrTimeout = errors.New("wasm: plugin timeout")

	// ErrFileTooLarge is returned for modules larger than MaxFileSize.
	ErrFileTooLarge = errors.New("wasm: file too large")

	// ErrClosed is returned by ParseLine after Close.
	ErrClosed = errors.New("wasm: plugin is closed")
)

// ABIError reports a module that does not follow the plugin ABI.
type ABIError struct {
	Function string
	Reason   string
}

func (e *ABIError) Error() string {
	return fmt.Sprintf("wasm: abi error in %s: %s", e.Function, e.Reason)
}

// PluginError is an error reported by the plugin itself for one line.
type PluginError struct {
	Code    string
	Message string
}

func (e *PluginError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("wasm: plugin error %s: %s", e.Code, e.Message)
	}
	return "wasm: plugin error: " + e.Message
}

// RuntimeError wraps a wazero failure with the step that failed.
type RuntimeError struct {
	Op  string
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("wasm: %s: %v", e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
