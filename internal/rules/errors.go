package rules

import (
	"errors"
	"fmt"
)

// ErrUnknownCategory is returned when a category is not in the table.
// Callers must not retry with the same category.
var ErrUnknownCategory = errors.New("unknown category")

// MalformedEntryError describes a rule entry that could not be used.
// The category falls back to its built-in default when one exists.
type MalformedEntryError struct {
	Category string
	Reason   string
	Fallback bool
}

func (e *MalformedEntryError) Error() string {
	action := "dropped"
	if e.Fallback {
		action = "using built-in default"
	}
	return fmt.Sprintf("malformed rule %q: %s (%s)", e.Category, e.Reason, action)
}
