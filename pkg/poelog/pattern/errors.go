package pattern

import "fmt"

// ValidationError reports a file-level schema problem
// (bad version, no rules, too many rules).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// RuleError reports a problem with one rule, including regexes that fail
// to compile when the rule is registered.
type RuleError struct {
	Index   int    // 0-based position in the file
	ID      string // may be empty if the id field is missing
	Field   string
	Message string
	Cause   error
}

func (e *RuleError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("rule %q: %s: %s", e.ID, e.Field, e.Message)
	}
	return fmt.Sprintf("rule[%d]: %s: %s", e.Index, e.Field, e.Message)
}

func (e *RuleError) Unwrap() error {
	return e.Cause
}
