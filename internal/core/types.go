package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EntityType names the kind of record a workbook imports. The set is closed;
// every value has exactly one handler in the registry.
type EntityType string

const (
	EntityOffices             EntityType = "offices"
	EntityStaff               EntityType = "staff"
	EntityClients             EntityType = "clients"
	EntityLoans               EntityType = "loans"
	EntityLoanRepayments      EntityType = "loan_repayments"
	EntitySavings             EntityType = "savings"
	EntitySavingsTransactions EntityType = "savings_transactions"
)

var entityTypes = []EntityType{
	EntityOffices,
	EntityStaff,
	EntityClients,
	EntityLoans,
	EntityLoanRepayments,
	EntitySavings,
	EntitySavingsTransactions,
}

// EntityTypes returns every supported entity type in a stable order.
func EntityTypes() []EntityType {
	out := make([]EntityType, len(entityTypes))
	copy(out, entityTypes)
	return out
}

// Valid reports whether e is a member of the closed set.
func (e EntityType) Valid() bool {
	for _, t := range entityTypes {
		if t == e {
			return true
		}
	}
	return false
}

// ParseEntityType accepts the canonical name in any case, with dashes or
// underscores.
func ParseEntityType(s string) (EntityType, error) {
	e := EntityType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !e.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, s)
	}
	return e, nil
}

// ImportJob is the persistent record of one uploaded workbook.
// Counters and CompletedAt are written once, when a run completes.
type ImportJob struct {
	ID           string            `json:"id"`
	DocumentID   string            `json:"document_id"`
	FileName     string            `json:"file_name"`
	EntityType   EntityType        `json:"entity_type"`
	Locale       string            `json:"locale"`
	DateFormat   string            `json:"date_format"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	SuccessCount int               `json:"success_count"`
	ErrorCount   int               `json:"error_count"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// Completed reports whether the job has finished a run.
func (j *ImportJob) Completed() bool { return j.CompletedAt != nil }

// Status is "completed" once a run has finished, "pending" before.
func (j *ImportJob) Status() string {
	if j.Completed() {
		return "completed"
	}
	return "pending"
}

// Options are the per-job settings passed to a handler.
type Options struct {
	Locale     string
	DateFormat string
	Attributes map[string]string
}

// Attr returns an attribute value, or def when unset.
func (o Options) Attr(key, def string) string {
	if v, ok := o.Attributes[key]; ok && v != "" {
		return v
	}
	return def
}

// RowStatus is the result of one attempted row.
type RowStatus string

const (
	RowImported RowStatus = "imported"
	RowFailed   RowStatus = "failed"
)

// RowResult records what happened to one attempted row.
type RowResult struct {
	RowIndex   int         `json:"row"`
	Status     RowStatus   `json:"status"`
	Kind       FailureKind `json:"-"`
	Message    string      `json:"message,omitempty"`
	ResourceID int64       `json:"resource_id,omitempty"`
	Err        error       `json:"-"`
}

// Outcome summarizes one handler pass. The workbook itself is annotated
// in place.
type Outcome struct {
	SuccessCount int         `json:"success_count"`
	ErrorCount   int         `json:"error_count"`
	Rows         []RowResult `json:"rows,omitempty"`
}

// Failures returns the failed rows in row order.
func (o Outcome) Failures() []RowResult {
	var out []RowResult
	for _, r := range o.Rows {
		if r.Status == RowFailed {
			out = append(out, r)
		}
	}
	return out
}

// RowRecord is a parsed row. Every record remembers the sheet row it came
// from so results can be written back to the right place.
type RowRecord interface {
	Row() int
}

// RowRef is embedded in records to satisfy RowRecord. Parsers list the
// labels of non-blank cells they could not read in Unreadable.
type RowRef struct {
	RowIndex   int      `json:"-"`
	Unreadable []string `json:"-"`
}

func (r RowRef) Row() int { return r.RowIndex }

// UnreadableCells returns the labels of cells with content of the wrong type.
func (r RowRef) UnreadableCells() []string { return r.Unreadable }

// Action is the operation a command performs on its entity.
type Action string

const (
	ActionCreate   Action = "CREATE"
	ActionApprove  Action = "APPROVE"
	ActionDisburse Action = "DISBURSE"
	ActionActivate Action = "ACTIVATE"
	ActionRepay    Action = "REPAYMENT"
	ActionDeposit  Action = "DEPOSIT"
	ActionWithdraw Action = "WITHDRAWAL"
)

// TargetIDs identify the resources a command acts on.
type TargetIDs struct {
	OfficeID   int64  `json:"officeId,omitempty"`
	ClientID   int64  `json:"clientId,omitempty"`
	ResourceID int64  `json:"resourceId,omitempty"`
	AccountNo  string `json:"accountNo,omitempty"`
}

// Command is one write submitted to the core banking platform.
// A Chain command targets the resource created by the previous command
// built from the same row.
type Command struct {
	Entity     EntityType      `json:"entity"`
	Action     Action          `json:"action"`
	Targets    TargetIDs       `json:"targets"`
	ExternalID string          `json:"externalId,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	Chain      bool            `json:"-"`
}

// CommandResult is what the executor reports for a successful command.
type CommandResult struct {
	CommandID  string `json:"commandId"`
	ResourceID int64  `json:"resourceId"`
}

// CommandExecutor runs one command atomically.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd Command) (CommandResult, error)
}

// Document is an uploaded workbook.
type Document struct {
	ID          string
	FileName    string
	ContentType string
	Data        []byte
}

// DocumentMeta is stored alongside an annotated document.
type DocumentMeta struct {
	FileName     string
	ContentType  string
	EntityType   EntityType
	SuccessCount int
	ErrorCount   int
}

// DocumentStore persists uploaded workbooks.
type DocumentStore interface {
	Create(ctx context.Context, doc Document) (string, error)
	Load(ctx context.Context, id string) ([]byte, error)
	Update(ctx context.Context, id string, data []byte, meta DocumentMeta) error
}

// JobFilter narrows a job listing. Zero values match everything.
type JobFilter struct {
	EntityType EntityType
	Limit      int
}

// JobRepository persists ImportJobs.
type JobRepository interface {
	FindByID(ctx context.Context, id string) (*ImportJob, error)
	Create(ctx context.Context, job *ImportJob) error
	Save(ctx context.Context, job *ImportJob) error
	List(ctx context.Context, filter JobFilter) ([]ImportJob, error)
}
