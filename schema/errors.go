package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchema is the sentinel matched by every SchemaError.
var ErrSchema = errors.New("schema error")

// SchemaError reports missing or malformed columns at a pipeline stage.
type SchemaError struct {
	Stage   string
	Columns []string
	Reason  string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	var sb strings.Builder
	if e.Stage != "" {
		sb.WriteString(e.Stage)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Reason)
	if len(e.Columns) > 0 {
		fmt.Fprintf(&sb, " [%s]", strings.Join(e.Columns, ", "))
	}
	return sb.String()
}

// Is lets errors.Is match ErrSchema.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// NewSchemaError is a shorthand for a missing-columns error.
func NewSchemaError(stage string, reason string, columns ...string) *SchemaError {
	return &SchemaError{Stage: stage, Columns: columns, Reason: reason}
}
