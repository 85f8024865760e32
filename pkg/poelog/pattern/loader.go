package pattern

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/poelog/poelog-go/internal/safefile"
)

const (
	// MaxFileSize is the maximum size of a rule file (1MB).
	MaxFileSize = 1 * 1024 * 1024

	// MaxRegexLength limits a single regex to keep matching cost per line
	// bounded.
	MaxRegexLength = 512

	// MaxRuleCount is the maximum number of rules in one file.
	MaxRuleCount = 1000

	// SupportedVersion is the supported file format version.
	SupportedVersion = 1
)

// Load reads, parses and validates a rule file.
// Regexes are not compiled here; that happens when the rules are registered.
//
// Only regular files are accepted, so a FIFO or device cannot block or
// flood the loader.
func Load(path string) (*File, error) {
	data, err := safefile.ReadAll(path, MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", sanitizePathError(err))
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates a rule file held in memory.
func LoadBytes(data []byte) (*File, error) {
	if len(data) == 0 {
		return nil, errors.New("rule file is empty")
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("rule file too large: %d bytes (max %d)", len(data), MaxFileSize)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the version, the rule count, required fields, id
// uniqueness and regex length.
func (f *File) Validate() error {
	if f.Version != SupportedVersion {
		return &ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (only version %d is supported)", f.Version, SupportedVersion),
		}
	}
	if len(f.Rules) == 0 {
		return &ValidationError{Field: "rules", Message: "at least one rule is required"}
	}
	if len(f.Rules) > MaxRuleCount {
		return &ValidationError{
			Field:   "rules",
			Message: fmt.Sprintf("too many rules (%d), maximum allowed is %d", len(f.Rules), MaxRuleCount),
		}
	}

	seen := make(map[string]int, len(f.Rules))
	for i, r := range f.Rules {
		switch {
		case r.ID == "":
			return &RuleError{Index: i, Field: "id", Message: "id is required"}
		case r.EventType == "":
			return &RuleError{Index: i, ID: r.ID, Field: "event_type", Message: "event_type is required"}
		case r.Regex == "":
			return &RuleError{Index: i, ID: r.ID, Field: "regex", Message: "regex is required"}
		}

		if prev, ok := seen[r.ID]; ok {
			return &RuleError{
				Index:   i,
				ID:      r.ID,
				Field:   "id",
				Message: fmt.Sprintf("duplicate id (previously defined at rule[%d])", prev),
			}
		}
		seen[r.ID] = i

		if len(r.Regex) > MaxRegexLength {
			return &RuleError{
				Index:   i,
				ID:      r.ID,
				Field:   "regex",
				Message: fmt.Sprintf("regex too long: %d bytes (max %d)", len(r.Regex), MaxRegexLength),
			}
		}
	}
	return nil
}

// sanitizePathError drops the path from an *os.PathError so error messages
// do not expose file system layout.
func sanitizePathError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%s: %w", pathErr.Op, pathErr.Err)
	}
	return err
}
