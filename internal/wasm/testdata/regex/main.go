//go:build tinygo

// regex reports level ups using the host regex functions and logs each
// match through the host logger.
package main

import (
	"encoding/json"
	"unsafe"
)

var heap uintptr = 0x20000

const levelUp = `^: (\S+) \(\w+\) is now level (\d+)$`

//go:wasm-module env
//export regex_match
func regexMatch(sPtr, sLen, rePtr, reLen uint32) uint32

//go:wasm-module env
//export regex_find_submatch
func regexFindSubmatch(sPtr, sLen, rePtr, reLen, outPtr, outLen uint32) uint32

//go:wasm-module env
//export log
func hostLog(level, ptr, n uint32)

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

func addr(s string) uint32 { return uint32(uintptr(unsafe.Pointer(unsafe.StringData(s)))) }

//export parse_line
func parseLine(ptr, n uint32) uint64 {
	var in struct {
		Line string `json:"line"`
	}
	if err := json.Unmarshal(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), n), &in); err != nil {
		return reply(map[string]any{"ok": false, "error": "bad input"})
	}
	line := in.Line
	if line == "" || regexMatch(addr(line), uint32(len(line)), addr(levelUp), uint32(len(levelUp))) == 0 {
		return reply(map[string]any{"ok": true, "events": []any{}})
	}

	var buf [1024]byte
	m := regexFindSubmatch(addr(line), uint32(len(line)), addr(levelUp), uint32(len(levelUp)),
		uint32(uintptr(unsafe.Pointer(&buf[0]))), uint32(len(buf)))
	var groups []string
	if m > 0 && m != 0xFFFFFFFF {
		json.Unmarshal(buf[:m], &groups)
	}
	if len(groups) != 3 {
		return reply(map[string]any{"ok": false, "error": "unexpected submatches"})
	}

	msg := "level up matched"
	hostLog(1, addr(msg), uint32(len(msg)))
	return reply(map[string]any{"ok": true, "events": []any{
		map[string]any{"type": "plugin_level_up", "player": groups[1], "data": map[string]string{"level": groups[2]}},
	}})
}

func reply(v any) uint64 {
	b, _ := json.Marshal(v)
	p := alloc(uint32(len(b)))
	copy(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(p))), len(b)), b)
	return uint64(len(b))<<32 | uint64(p)
}

func main() {}
