// Error codes reference
//
// Every message written into a status cell or returned by the API carries a
// support code. Codes are grouped by category:
//
//	IMP001-IMP099  Import job and entity errors (fatal to a run)
//	IMP100-IMP199  Data integrity conflicts reported by the command executor,
//	               keyed by structured code (SQLSTATE)
//	VAL001-VAL099  Row validation and reference lookups
//	FILE001-099    Uploaded document problems
//	UPL001-099     Queueing, cancellation and timeouts
//	DB001-099      Infrastructure failures matched by message pattern
//	RATE001        Request throttling
//	ERR000         Fallback; check logs for the technical error
//
// Integrity conflicts are classified by code, never by message text. The
// pattern table is only the generic extractor for unclassified runtime
// failures and infrastructure errors.

package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// integrityMessage renders a message for one structured integrity code.
// %s is replaced with the column label, or "this value" when unknown.
type integrityMessage struct {
	format string
	action string
	code   string
}

var integrityMessages = map[string]integrityMessage{
	"23505": {"A record with %s already exists", "Remove the duplicate row or change the value", "IMP101"},
	"23503": {"Referenced record does not exist for %s", "Import the referenced records first", "IMP102"},
	"23502": {"Required value is missing for %s", "Fill in the value and upload again", "IMP103"},
	"23514": {"Value for %s breaks a data rule", "Check the allowed values for this column", "IMP104"},
	"22001": {"Value too long for %s", "Shorten the value and upload again", "IMP105"},
	"22003": {"Number out of range for %s", "Check the number's size and precision", "IMP106"},
}

var genericIntegrity = UserMessage{
	Message: "The row conflicts with existing data",
	Action:  "Review the row against existing records",
	Code:    "IMP100",
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user
// messages. The first matching pattern wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{"import job not found", UserMessage{"Import job not found", "Check the job ID or upload the file again", "IMP001"}},
	{"unknown entity type", UserMessage{"Unknown import type", "Choose one of the supported entity types", "IMP002"}},
	{"document not found", UserMessage{"The uploaded document is no longer available", "Upload the file again", "IMP003"}},
	{"already completed", UserMessage{"This import has already run", "Download the annotated workbook to see the results", "IMP005"}},
	{"invalid attributes", UserMessage{"Import attributes could not be read", "Send attributes as a JSON object of strings", "IMP004"}},

	{"invalid date", UserMessage{"Invalid date format detected", "Use the date format chosen for the import", "VAL001"}},
	{"invalid number", UserMessage{"Invalid number format detected", "Remove currency symbols and use the locale's decimal separator", "VAL002"}},
	{"unsupported date pattern", UserMessage{"The date format is not supported", "Use a pattern such as dd MMMM yyyy or yyyy-MM-dd", "VAL004"}},
	{"parse locale", UserMessage{"The locale is not recognised", "Use a language tag such as en, fr or pt-BR", "VAL005"}},

	{"file too large", UserMessage{"File exceeds maximum size limit", "Split the workbook into smaller files", "FILE001"}},
	{"invalid workbook", UserMessage{"File is not a valid Excel workbook", "Save the file as .xlsx and upload again", "FILE002"}},
	{"no file provided", UserMessage{"No file was selected", "Please select a workbook to upload", "FILE004"}},
	{"empty file", UserMessage{"The uploaded file is empty", "Please upload a workbook with data rows", "FILE005"}},
	{"sheet not found", UserMessage{"The workbook is missing the expected sheet", "Use the import template for this entity type", "FILE006"}},

	{"too many imports", UserMessage{"System is busy processing other imports", "Please wait a moment and try again", "UPL002"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "UPL004"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or try again later", "UPL005"}},

	{"connection refused", UserMessage{"Unable to connect to the database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Please try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Typed errors are mapped first; anything else falls through to the
// pattern table and finally to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		code, action := "VAL006", "Correct the value and upload again"
		if ve.Missing() {
			code, action = "VAL003", "Fill in the required columns and upload again"
		}
		parts := make([]string, len(ve.Problems))
		for i, p := range ve.Problems {
			parts[i] = p.String()
		}
		return UserMessage{Message: strings.Join(parts, "; "), Action: action, Code: code}
	}

	var le *LookupError
	if errors.As(err, &le) {
		return UserMessage{
			Message: fmt.Sprintf("%s %q not found", capitalize(le.Kind.noun()), le.Name),
			Action:  "Check the name against the lookup sheet",
			Code:    "VAL007",
		}
	}

	var ce *CommandError
	if errors.As(err, &ce) && ce.Kind == FailureIntegrity {
		return mapIntegrity(ce)
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func mapIntegrity(ce *CommandError) UserMessage {
	m, ok := integrityMessages[ce.Code]
	if !ok {
		return genericIntegrity
	}
	subject := "this value"
	if ce.Column != "" {
		subject = ce.Column
	}
	return UserMessage{Message: fmt.Sprintf(m.format, subject), Action: m.action, Code: m.code}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
