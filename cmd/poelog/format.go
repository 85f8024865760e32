package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/goccy/go-json"

	"github.com/poelog/poelog-go/pkg/poelog"
)

// ValidFormats lists all valid output formats.
var ValidFormats = map[string]bool{
	"jsonl":  true,
	"pretty": true,
}

// OutputRecord writes a record in the specified format to the writer.
func OutputRecord(format string, r poelog.Record, out io.Writer) error {
	switch format {
	case "jsonl":
		return OutputJSON(r, out)
	case "pretty":
		return OutputPretty(r, out)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// OutputJSON writes a record as one JSON Lines entry.
func OutputJSON(r poelog.Record, out io.Writer) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = out.Write(data)
	return err
}

// OutputPretty writes a record in human-readable format.
// Records from lines without a timestamp show "--:--:--".
func OutputPretty(r poelog.Record, out io.Writer) error {
	ts := "--:--:--"
	if !r.Info.Timestamp.IsZero() {
		ts = r.Info.Timestamp.Format("15:04:05")
	}
	ev := r.Event

	var err error
	switch ev.Type {
	case poelog.EventJoinedArea:
		_, err = fmt.Fprintf(out, "[%s] > Entered %s\n", ts, ev.Area)
	case poelog.EventConnectingToInstance:
		_, err = fmt.Fprintf(out, "[%s] ~ Connecting to %s\n", ts, ev.Address)
	case poelog.EventPlayerJoinedArea:
		_, err = fmt.Fprintf(out, "[%s] + %s joined\n", ts, ev.Player)
	case poelog.EventPlayerLeftArea:
		_, err = fmt.Fprintf(out, "[%s] - %s left\n", ts, ev.Player)
	case poelog.EventLevelUp:
		_, err = fmt.Fprintf(out, "[%s] ^ %s (%s) reached level %d\n", ts, ev.Player, ev.Class, ev.Level)
	default:
		// Custom events with Data field
		if len(ev.Data) > 0 {
			_, err = fmt.Fprintf(out, "[%s] * %s: %s\n", ts, ev.Type, formatData(ev.Data))
		} else {
			_, err = fmt.Fprintf(out, "[%s] * %s\n", ts, ev.Type)
		}
	}
	return err
}

// formatData formats a map as sorted key=value pairs.
func formatData(data map[string]string) string {
	if len(data) == 0 {
		return ""
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(data))
	for _, k := range keys {
		parts = append(parts, quoteIfNeeded(k)+"="+quoteIfNeeded(data[k]))
	}
	return strings.Join(parts, " ")
}

// quoteIfNeeded quotes v if it is empty or contains spaces, '=', quotes,
// backslashes or control characters.
func quoteIfNeeded(v string) string {
	if v == "" {
		return `""`
	}

	needsQuote := strings.ContainsFunc(v, func(c rune) bool {
		return c == ' ' || c == '=' || c == '"' || c == '\\' || c < 0x20 || c == 0x7F
	})
	if !needsQuote {
		return v
	}

	var sb strings.Builder
	sb.WriteByte('"')
	for _, c := range v {
		switch {
		case c == '\\':
			sb.WriteString(`\\`)
		case c == '"':
			sb.WriteString(`\"`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c == 0x7F:
			fmt.Fprintf(&sb, `\x%02x`, c)
		default:
			sb.WriteRune(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
