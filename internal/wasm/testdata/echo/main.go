//go:build tinygo

// echo returns one "echo" event carrying the line, no events for an empty
// line, and a plugin error for the line "fail".
package main

import (
	"encoding/json"
	"unsafe"
)

var heap uintptr = 0x20000

//export abi_version
func abiVersion() uint32 { return 1 }

//export alloc
func alloc(size uint32) uint32 {
	p := uint32(heap)
	heap += uintptr(size)
	return p
}

//export free
func free(ptr, size uint32) {}

//export parse_line
func parseLine(ptr, n uint32) uint64 {
	var in struct {
		Line string `json:"line"`
	}
	if err := json.Unmarshal(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), n), &in); err != nil {
		return reply(map[string]any{"ok": false, "error": "bad input", "code": "input"})
	}
	switch in.Line {
	case "":
		return reply(map[string]any{"ok": true, "events": []any{}})
	case "fail":
		return reply(map[string]any{"ok": false, "error": "asked to fail", "code": "fail"})
	}
	return reply(map[string]any{"ok": true, "events": []any{
		map[string]any{"type": "echo", "data": map[string]string{"line": in.Line}},
	}})
}

func reply(v any) uint64 {
	b, _ := json.Marshal(v)
	p := alloc(uint32(len(b)))
	copy(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(p))), len(b)), b)
	return uint64(len(b))<<32 | uint64(p)
}

func main() {}
