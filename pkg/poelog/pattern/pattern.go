// Package pattern loads user-defined event rules from YAML files.
//
// Each rule pairs a regular expression with an event type. When a line
// matches, an event of that type is emitted with the rule's named capture
// groups in Event.Data.
package pattern

// File is the structure of a YAML rule file.
//
// Example:
//
//	version: 1
//	rules:
//	  - id: item_found
//	    event_type: item_found
//	    regex: '^: (?P<player>\S+) has found (?P<item>.+)\.$'
//	  - id: trade_whisper
//	    event_type: trade_whisper
//	    regex: '^@From (?P<from>[^:]+): (?P<message>.*)$'
//
// Regexes are matched against the line after the timestamp prefix has been
// stripped.
type File struct {
	// Version is the file format version. Only version 1 is supported.
	Version int `yaml:"version"`

	Rules []Rule `yaml:"rules"`
}

// Rule is a single event rule.
type Rule struct {
	// ID is unique within a file.
	ID string `yaml:"id"`

	// EventType is used as Event.Type for matches.
	EventType string `yaml:"event_type"`

	// Regex uses Go regexp syntax. Named groups (?P<name>...) end up in
	// Event.Data.
	Regex string `yaml:"regex"`
}
