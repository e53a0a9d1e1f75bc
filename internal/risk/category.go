// Package risk implements the per-medication risk classification cascade.
// Independent rule-module findings are combined into one final RED/YELLOW/
// GREEN category through a fixed, monotonic sequence of modifiers.
package risk

import (
	"encoding/json"
	"fmt"
)

// Category is the medication risk classification, totally ordered
// GREEN < YELLOW < RED. Escalation only ever moves upward.
type Category int

const (
	Green Category = iota
	Yellow
	Red
)

func (c Category) String() string {
	switch c {
	case Red:
		return "RED"
	case Yellow:
		return "YELLOW"
	default:
		return "GREEN"
	}
}

// MarshalJSON encodes the category as its clinical label.
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a clinical label into a category.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "GREEN":
		*c = Green
	case "YELLOW":
		*c = Yellow
	case "RED":
		*c = Red
	default:
		return fmt.Errorf("unknown risk category %q", s)
	}
	return nil
}

// Escalated returns the higher of the two categories. Modifiers use this so
// a later step can never downgrade an earlier result.
func (c Category) Escalated(to Category) Category {
	if to > c {
		return to
	}
	return c
}
