package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/poelog/poelog-go/pkg/poelog"
	"github.com/poelog/poelog-go/pkg/poelog/event"
	"github.com/poelog/poelog-go/pkg/poelog/pattern"
)

// ValidEventTypes maps the built-in type names accepted by --types.
var ValidEventTypes = func() map[string]poelog.EventType {
	m := make(map[string]poelog.EventType, len(event.Types))
	for _, t := range event.Types {
		m[string(t)] = t
	}
	return m
}()

// ValidEventTypeNames returns the built-in type names, sorted.
func ValidEventTypeNames() []string {
	names := make([]string, 0, len(ValidEventTypes))
	for name := range ValidEventTypes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// parseEventTypes converts type names to event types. Names must be built-in
// or declared by one of the rule files, unless plugins are loaded: plugins
// do not declare their types, so any name is accepted then.
func parseEventTypes(names []string, files []*pattern.File, plugins bool) ([]poelog.EventType, error) {
	custom := make(map[string]bool)
	for _, f := range files {
		for _, r := range f.Rules {
			custom[r.EventType] = true
		}
	}

	types := make([]poelog.EventType, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if t, ok := ValidEventTypes[name]; ok {
			types = append(types, t)
			continue
		}
		if custom[name] || (plugins && name != "") {
			types = append(types, poelog.EventType(name))
			continue
		}
		return nil, fmt.Errorf("unknown event type %q (valid: %s)",
			name, strings.Join(ValidEventTypeNames(), ", "))
	}
	return types, nil
}
