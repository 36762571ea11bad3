package graph

import (
	"fmt"
	"strings"
)

// Character is one member of the scene roster.
type Character struct {
	Identifier      string `json:"identifier" yaml:"identifier"`
	StaticFeatures  string `json:"static_features" yaml:"static_features"`
	DynamicFeatures string `json:"dynamic_features" yaml:"dynamic_features"`
}

// String renders the roster line used in judgment prompts.
func (c Character) String() string {
	return fmt.Sprintf("%s: (static) %s; (dynamic) %s",
		c.Identifier,
		strings.TrimSpace(c.StaticFeatures),
		strings.TrimSpace(c.DynamicFeatures),
	)
}

// RosterLines renders each character on its own line, prefixed with its index.
func RosterLines(roster []Character) string {
	var b strings.Builder
	for i, c := range roster {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i, c.String())
	}
	return b.String()
}

// ValidateRoster rejects blank or duplicate identifiers.
func ValidateRoster(roster []Character) error {
	seen := make(map[string]int, len(roster))
	for i, c := range roster {
		id := strings.TrimSpace(c.Identifier)
		if id == "" {
			return fmt.Errorf("character %d: identifier is empty", i)
		}
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("character %d: identifier %q duplicates character %d", i, id, prev)
		}
		seen[id] = i
	}
	return nil
}
