package poelog

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/poelog/poelog-go/pkg/poelog/event"
)

// prefixLayout is the time layout of the line prefix: "2024/01/15 23:59:59".
const prefixLayout = "2006/01/02 15:04:05"

// prefixPattern matches the structured prefix written by the client:
//
//	2024/01/15 23:59:59 123456789 cffb0719 [INFO Client 1234] rest
//	2024/01/01 00:00:01 123 abc] rest
//
// Captures: (1) date and time, (2) tick counter, (3) severity (optional).
var prefixPattern = regexp.MustCompile(
	`^(\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}) (\d+) [^\[\]]*(?:\[(\w+)[^\]]*)?\]`,
)

// extractInfo strips the structured prefix from line and records its
// timestamp, tick and severity in info. Lines without the prefix are
// returned unchanged.
func extractInfo(line string, info *event.Info) string {
	m := prefixPattern.FindStringSubmatchIndex(line)
	if m == nil {
		return line
	}

	if ts, err := time.ParseInLocation(prefixLayout, line[m[2]:m[3]], time.Local); err == nil {
		info.Timestamp = ts
	}
	if tick, err := strconv.ParseUint(line[m[4]:m[5]], 10, 64); err == nil {
		info.Tick = tick
	}
	if m[6] >= 0 {
		info.Severity = line[m[6]:m[7]]
	}

	return strings.TrimSpace(line[m[1]:])
}

// trimCR removes the '\r' left by CRLF line endings.
func trimCR(line string, _ *event.Info) string {
	return strings.TrimSuffix(line, "\r")
}

// keepRawLine records the unmodified line.
func keepRawLine(line string, info *event.Info) string {
	info.RawLine = line
	return line
}

// compiledFilter decides which event types are delivered.
type compiledFilter struct {
	include map[event.Type]struct{}
	exclude map[event.Type]struct{}
}

func newCompiledFilter(include, exclude []event.Type) *compiledFilter {
	f := &compiledFilter{}
	if len(include) > 0 {
		f.include = toSet(include)
	}
	if len(exclude) > 0 {
		f.exclude = toSet(exclude)
	}
	return f
}

// Allows reports whether t passes the filter. Exclude wins over include;
// an empty include set allows everything. A nil filter allows everything.
func (f *compiledFilter) Allows(t event.Type) bool {
	if f == nil {
		return true
	}
	if _, ok := f.exclude[t]; ok {
		return false
	}
	if len(f.include) > 0 {
		_, ok := f.include[t]
		return ok
	}
	return true
}

func toSet(types []event.Type) map[event.Type]struct{} {
	m := make(map[event.Type]struct{}, len(types))
	for _, t := range types {
		m[t] = struct{}{}
	}
	return m
}
