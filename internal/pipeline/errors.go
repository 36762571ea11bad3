package pipeline

import (
	"fmt"
	"strings"

	"framewright/internal/services"
)

// ItemFailure is one failed fan-out item.
type ItemFailure struct {
	Index    int
	Attempts int
	Err      error
}

// StageError reports the items of a stage that failed after every sibling finished.
type StageError struct {
	Stage    Stage
	Item     string
	Failures []ItemFailure
}

func (e *StageError) Error() string {
	item := e.Item
	if item == "" {
		item = "item"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		cause := "unknown error"
		if inner := services.Innermost(f.Err); inner != nil {
			cause = inner.Error()
		}
		parts = append(parts, fmt.Sprintf("%s %d failed after %d attempt(s): %s", item, f.Index, f.Attempts, cause))
	}
	return fmt.Sprintf("%s: %s", e.Stage, strings.Join(parts, "; "))
}

// Unwrap exposes every item error to errors.Is and errors.As.
func (e *StageError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}

// Indices lists the failed item indices in report order.
func (e *StageError) Indices() []int {
	out := make([]int, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Index)
	}
	return out
}
