// Package event defines the events produced from client log lines and the
// per-line metadata attached to them.
package event

import "time"

// Type identifies the kind of event.
type Type string

// Built-in event types.
const (
	JoinedArea           Type = "joined_area"
	ConnectingToInstance Type = "connecting_instance"
	PlayerJoinedArea     Type = "player_joined_area"
	PlayerLeftArea       Type = "player_left_area"
	LevelUp              Type = "level_up"
)

// Types lists the built-in event types.
var Types = []Type{
	JoinedArea,
	ConnectingToInstance,
	PlayerJoinedArea,
	PlayerLeftArea,
	LevelUp,
}

// Event is a structured event extracted from a single log line.
// Which fields are set depends on Type; custom rule events carry their
// named captures in Data.
type Event struct {
	Type    Type              `json:"type"`
	Area    string            `json:"area,omitempty"`
	Address string            `json:"address,omitempty"`
	Player  string            `json:"player,omitempty"`
	Class   string            `json:"class,omitempty"`
	Level   int               `json:"level,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
}

// Info is metadata extracted from a line's prefix.
// A line without the prefix yields the zero Info.
type Info struct {
	// Timestamp is the wall-clock time written by the client (local time).
	Timestamp time.Time `json:"timestamp"`

	// Tick is the client's monotonic millisecond counter.
	Tick uint64 `json:"tick"`

	// Severity is the level inside the bracketed tag, e.g. "INFO".
	Severity string `json:"severity,omitempty"`

	// RawLine is the line as read, before any filter ran. Only set when
	// raw lines are requested.
	RawLine string `json:"raw_line,omitempty"`
}

// Record pairs an event with the metadata of the line that produced it.
type Record struct {
	Event Event `json:"event"`
	Info  Info  `json:"info"`
}
