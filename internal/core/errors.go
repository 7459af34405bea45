package core

import (
	"errors"
	"fmt"
	"strings"
)

// Fatal errors. Each aborts a run before any row is processed.
var (
	ErrJobNotFound       = errors.New("import job not found")
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrInvalidRequest    = errors.New("invalid import request")
	ErrJobCompleted      = errors.New("import job already completed")

	// ErrRunInterrupted wraps failures that happen once rows have been
	// submitted. Running the job again would resubmit them.
	ErrRunInterrupted = errors.New("import interrupted after rows were submitted")
)

// FailureKind classifies why a row was not imported.
type FailureKind int

const (
	FailureValidation FailureKind = iota + 1
	FailureIntegrity
	FailureRuntime
)

func (k FailureKind) String() string {
	switch k {
	case FailureValidation:
		return "validation"
	case FailureIntegrity:
		return "integrity"
	case FailureRuntime:
		return "runtime"
	}
	return "unknown"
}

// CommandError is returned by a CommandExecutor. Code carries the
// executor's structured failure code (a SQLSTATE for the Postgres executor)
// so callers never have to inspect message text.
type CommandError struct {
	Kind       FailureKind
	Code       string
	Column     string
	Constraint string
	Err        error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failure", e.Kind)
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " on %s", e.Column)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *CommandError) Unwrap() error { return e.Err }

// IsIntegrityConflict reports whether err is a data integrity conflict
// raised by the command executor.
func IsIntegrityConflict(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce) && ce.Kind == FailureIntegrity
}

// FieldProblem is one failed validation rule on a record field.
type FieldProblem struct {
	Label string
	Rule  string
	Param string
}

func (p FieldProblem) String() string {
	if p.missing() {
		return p.Label + " is required"
	}
	switch p.Rule {
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", p.Label, p.Param)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", p.Label, p.Param)
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", p.Label, p.Param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", p.Label, strings.ReplaceAll(p.Param, " ", ", "))
	}
	return p.Label + " is invalid"
}

// missing covers required and its conditional forms (required_if, ...).
func (p FieldProblem) missing() bool { return strings.HasPrefix(p.Rule, "required") }

// ValidationError lists every field problem found on one row.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Missing reports whether every problem is a missing required value.
func (e *ValidationError) Missing() bool {
	for _, p := range e.Problems {
		if !p.missing() {
			return false
		}
	}
	return len(e.Problems) > 0
}

// Invalid builds a single-problem ValidationError for checks done while
// building commands.
func Invalid(label, rule, param string) error {
	return &ValidationError{Problems: []FieldProblem{{Label: label, Rule: rule, Param: param}}}
}

// LookupError reports a reference name that could not be resolved.
type LookupError struct {
	Kind LookupKind
	Name string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind.noun(), e.Name)
}
