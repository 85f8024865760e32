package poelog

import (
	"strconv"

	"github.com/poelog/poelog-go/pkg/poelog/dispatch"
	"github.com/poelog/poelog-go/pkg/poelog/event"
)

// builtinRule maps a pattern on the prefix-stripped line to an event.
type builtinRule struct {
	pattern string
	build   func(c dispatch.Captures) event.Event
}

var builtinRules = []builtinRule{
	{
		// ": You have entered The Forest."
		pattern: `^: You have entered (?P<area>.*)\.$`,
		build: func(c dispatch.Captures) event.Event {
			return event.Event{Type: event.JoinedArea, Area: c.Get("area")}
		},
	},
	{
		// "Connecting to instance server at 10.0.0.5:6112"
		pattern: `^Connecting to instance server at (?P<address>.+)$`,
		build: func(c dispatch.Captures) event.Event {
			return event.Event{Type: event.ConnectingToInstance, Address: c.Get("address")}
		},
	},
	{
		// ": SomeExile has joined the area."
		pattern: `^: (?P<player>\S+) has joined the area\.$`,
		build: func(c dispatch.Captures) event.Event {
			return event.Event{Type: event.PlayerJoinedArea, Player: c.Get("player")}
		},
	},
	{
		// ": SomeExile has left the area."
		pattern: `^: (?P<player>\S+) has left the area\.$`,
		build: func(c dispatch.Captures) event.Event {
			return event.Event{Type: event.PlayerLeftArea, Player: c.Get("player")}
		},
	},
	{
		// ": SomeExile (Witch) is now level 12"
		pattern: `^: (?P<player>\S+) \((?P<class>[^)]+)\) is now level (?P<level>\d+)$`,
		build: func(c dispatch.Captures) event.Event {
			level, _ := strconv.Atoi(c.Get("level"))
			return event.Event{
				Type:   event.LevelUp,
				Player: c.Get("player"),
				Class:  c.Get("class"),
				Level:  level,
			}
		},
	},
}
