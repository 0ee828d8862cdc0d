package unit

import (
	"fmt"
	"strings"
)

// DataConsistencyError reports physical data violating a load-time
// invariant. Index and Time are -1 when not applicable.
type DataConsistencyError struct {
	Unit   string
	Field  string
	Index  int
	Time   int
	Reason string
}

func (e *DataConsistencyError) Error() string {
	var b strings.Builder
	if e.Unit != "" {
		fmt.Fprintf(&b, "%s: ", e.Unit)
	}
	b.WriteString(e.Field)
	if e.Index >= 0 {
		fmt.Fprintf(&b, "[%d]", e.Index)
	}
	if e.Time >= 0 {
		fmt.Fprintf(&b, " at t=%d", e.Time)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	return b.String()
}

// Inconsistent builds a DataConsistencyError for unit u.
func Inconsistent(u, field string, index, t int, format string, args ...interface{}) error {
	return &DataConsistencyError{Unit: u, Field: field, Index: index, Time: t, Reason: fmt.Sprintf(format, args...)}
}
