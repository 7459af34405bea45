package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/ledgerimport/internal/sheet"
)

var enOpts = Options{Locale: "en", DateFormat: "dd MMMM yyyy"}

func TestProcess_ThreeRowsOneMissingField(t *testing.T) {
	exec := &fakeExecutor{}
	wb := peopleWorkbook(t,
		[2]any{"A1", "Ada"},
		[2]any{"A2", nil},
		[2]any{"A3", "Grace"},
	)

	out, err := newPeopleHandler(exec).Process(context.Background(), wb, enOpts)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if out.SuccessCount != 2 || out.ErrorCount != 1 {
		t.Errorf("Process() = (%d, %d), want (2, 1)", out.SuccessCount, out.ErrorCount)
	}
	if got := statusOf(t, wb, 1); got != StatusImported {
		t.Errorf("row 1 status = %q, want %q", got, StatusImported)
	}
	if got := statusOf(t, wb, 2); !strings.Contains(got, "Name is required") || !strings.Contains(got, "VAL003") {
		t.Errorf("row 2 status = %q, want required-field message", got)
	}
	if got := statusOf(t, wb, 3); got != StatusImported {
		t.Errorf("row 3 status = %q, want %q", got, StatusImported)
	}
	if got := statusOf(t, wb, 0); got != StatusHeader {
		t.Errorf("header = %q, want %q", got, StatusHeader)
	}
	if exec.count() != 2 {
		t.Errorf("executor saw %d commands, want 2", exec.count())
	}
}

func TestProcess_RerunIsIdempotent(t *testing.T) {
	exec := &fakeExecutor{}
	h := newPeopleHandler(exec)
	wb := peopleWorkbook(t,
		[2]any{"A1", "Ada"},
		[2]any{"A2", nil},
		[2]any{"A3", "Grace"},
	)

	if _, err := h.Process(context.Background(), wb, enOpts); err != nil {
		t.Fatalf("first Process() error = %v", err)
	}
	firstErr := statusOf(t, wb, 2)
	calls := exec.count()

	out, err := h.Process(context.Background(), wb, enOpts)
	if err != nil {
		t.Fatalf("second Process() error = %v", err)
	}
	if out.SuccessCount != 0 || out.ErrorCount != 0 {
		t.Errorf("second Process() = (%d, %d), want (0, 0)", out.SuccessCount, out.ErrorCount)
	}
	if exec.count() != calls {
		t.Errorf("second run submitted %d commands, want 0", exec.count()-calls)
	}
	if got := statusOf(t, wb, 2); got != firstErr {
		t.Errorf("row 2 status changed to %q, want %q", got, firstErr)
	}
}

func TestProcess_IntegrityConflictIsIsolated(t *testing.T) {
	exec := &fakeExecutor{failures: map[string]error{
		"A2": &CommandError{Kind: FailureIntegrity, Code: "22001", Column: "External ID"},
	}}
	wb := peopleWorkbook(t,
		[2]any{"A1", "Ada"},
		[2]any{"A2", "Barbara"},
		[2]any{"A3", "Grace"},
	)

	out, err := newPeopleHandler(exec).Process(context.Background(), wb, enOpts)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.SuccessCount != 2 || out.ErrorCount != 1 {
		t.Errorf("Process() = (%d, %d), want (2, 1)", out.SuccessCount, out.ErrorCount)
	}
	if got := statusOf(t, wb, 2); !strings.Contains(got, "Value too long for External ID") {
		t.Errorf("row 2 status = %q, want value-too-long message", got)
	}
	if got := statusOf(t, wb, 3); got != StatusImported {
		t.Errorf("row 3 status = %q, want %q", got, StatusImported)
	}

	fails := out.Failures()
	if len(fails) != 1 || fails[0].Kind != FailureIntegrity {
		t.Errorf("Failures() = %+v, want one integrity failure", fails)
	}
}

func TestProcess_RuntimeFailureIsIsolated(t *testing.T) {
	exec := &fakeExecutor{failures: map[string]error{"A1": errors.New("platform exploded")}}
	wb := peopleWorkbook(t, [2]any{"A1", "Ada"}, [2]any{"A2", "Grace"})

	out, err := newPeopleHandler(exec).Process(context.Background(), wb, enOpts)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.SuccessCount != 1 || out.ErrorCount != 1 {
		t.Errorf("Process() = (%d, %d), want (1, 1)", out.SuccessCount, out.ErrorCount)
	}
	if got := statusOf(t, wb, 1); !strings.Contains(got, "ERR000") {
		t.Errorf("row 1 status = %q, want generic ERR000 message", got)
	}
	if out.Rows[0].Kind != FailureRuntime {
		t.Errorf("row 1 kind = %v, want runtime", out.Rows[0].Kind)
	}
}

func TestProcess_RowIndexFidelity(t *testing.T) {
	exec := &fakeExecutor{}
	wb := peopleWorkbook(t,
		[2]any{"A1", "Ada"},
		[2]any{"A2", nil},
		[2]any{"A3", "Grace"},
		[2]any{"A4", "Hedy"},
	)
	s, _ := wb.Sheet("People")
	for _, row := range []int{1, 3} {
		if err := s.SetValue(row, peopleLayout.StatusCol, "done earlier"); err != nil {
			t.Fatal(err)
		}
	}

	out, err := newPeopleHandler(exec).Process(context.Background(), wb, enOpts)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(out.Rows) != 2 || out.Rows[0].RowIndex != 2 || out.Rows[1].RowIndex != 4 {
		t.Fatalf("attempted rows = %+v, want rows 2 and 4", out.Rows)
	}
	for _, row := range []int{1, 3} {
		if got := statusOf(t, wb, row); got != "done earlier" {
			t.Errorf("row %d status = %q, want untouched", row, got)
		}
	}
	if got := statusOf(t, wb, 2); !strings.Contains(got, "Name is required") {
		t.Errorf("row 2 status = %q, want its own failure", got)
	}
	if got := statusOf(t, wb, 4); got != StatusImported {
		t.Errorf("row 4 status = %q, want %q", got, StatusImported)
	}
}

func TestProcess_NumericCodeCoercion(t *testing.T) {
	exec := &fakeExecutor{}
	wb := peopleWorkbook(t, [2]any{6, "Ada"}, [2]any{"7.0", "Grace"})

	if _, err := newPeopleHandler(exec).Process(context.Background(), wb, enOpts); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if exec.commands[0].ExternalID != "6" {
		t.Errorf("ExternalID = %q, want %q", exec.commands[0].ExternalID, "6")
	}
	if exec.commands[1].ExternalID != "7" {
		t.Errorf("ExternalID = %q, want %q", exec.commands[1].ExternalID, "7")
	}
}

func TestProcess_StopsAtFirstBlankAnchor(t *testing.T) {
	exec := &fakeExecutor{}
	wb := peopleWorkbook(t,
		[2]any{"A1", "Ada"},
		[2]any{nil, "No key"},
		[2]any{"A3", "Grace"},
	)

	out, err := newPeopleHandler(exec).Process(context.Background(), wb, enOpts)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.SuccessCount != 1 || out.ErrorCount != 0 {
		t.Errorf("Process() = (%d, %d), want (1, 0)", out.SuccessCount, out.ErrorCount)
	}
}

func TestProcess_MissingSheet(t *testing.T) {
	wb := sheet.New()
	_, err := newPeopleHandler(&fakeExecutor{}).Process(context.Background(), wb, enOpts)
	if !errors.Is(err, sheet.ErrSheetNotFound) {
		t.Errorf("Process() error = %v, want ErrSheetNotFound", err)
	}
}

func TestProcess_BadDateFormat(t *testing.T) {
	wb := peopleWorkbook(t, [2]any{"A1", "Ada"})
	_, err := newPeopleHandler(&fakeExecutor{}).Process(context.Background(), wb, Options{Locale: "en", DateFormat: "QQQ"})
	if !errors.Is(err, sheet.ErrUnsupportedPattern) {
		t.Errorf("Process() error = %v, want ErrUnsupportedPattern", err)
	}
}

func TestDispatcher_ChainedCommands(t *testing.T) {
	exec := &fakeExecutor{}
	d := NewDispatcher(exec)
	rec := person{RowRef: RowRef{RowIndex: 5}, Key: "L1", Name: "Loan"}

	res := d.Submit(context.Background(), rec, func() ([]Command, error) {
		return []Command{
			{Entity: EntityLoans, Action: ActionCreate, ExternalID: "L1"},
			{Entity: EntityLoans, Action: ActionApprove, Chain: true},
			{Entity: EntityLoans, Action: ActionDisburse, Chain: true},
		}, nil
	})

	if res.Status != RowImported {
		t.Fatalf("Submit() status = %v (%v), want imported", res.Status, res.Err)
	}
	if res.RowIndex != 5 {
		t.Errorf("RowIndex = %d, want 5", res.RowIndex)
	}
	if res.ResourceID != 101 {
		t.Errorf("ResourceID = %d, want 101", res.ResourceID)
	}
	if got := exec.commands[1].Targets.ResourceID; got != 101 {
		t.Errorf("approve target = %d, want 101", got)
	}
	if got := exec.commands[2].Targets.ResourceID; got != 102 {
		t.Errorf("disburse target = %d, want 102", got)
	}
}

func TestDispatcher_BuildFailures(t *testing.T) {
	d := NewDispatcher(&fakeExecutor{})
	rec := person{Key: "K", Name: "N"}

	tests := []struct {
		name     string
		err      error
		wantKind FailureKind
	}{
		{"lookup miss", &LookupError{Kind: LookupOffice, Name: "Nowhere"}, FailureValidation},
		{"invalid value", Invalid("Principal", "gt", "0"), FailureValidation},
		{"other", errors.New("marshal failed"), FailureRuntime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Submit(context.Background(), rec, func() ([]Command, error) { return nil, tt.err })
			if res.Status != RowFailed || res.Kind != tt.wantKind {
				t.Errorf("Submit() = %v/%v, want failed/%v", res.Status, res.Kind, tt.wantKind)
			}
		})
	}
}

func TestDispatcher_ChainWithoutPredecessor(t *testing.T) {
	d := NewDispatcher(&fakeExecutor{})
	res := d.Submit(context.Background(), person{Key: "K", Name: "N"}, func() ([]Command, error) {
		return []Command{{Entity: EntityLoans, Action: ActionApprove, Chain: true}}, nil
	})
	if res.Status != RowFailed || res.Kind != FailureRuntime {
		t.Errorf("Submit() = %v/%v, want failed/runtime", res.Status, res.Kind)
	}
}

func TestDispatcher_UnreadableCells(t *testing.T) {
	d := NewDispatcher(&fakeExecutor{})
	rec := person{RowRef: RowRef{RowIndex: 3, Unreadable: []string{"Name"}}, Key: "K"}

	res := d.Submit(context.Background(), rec, func() ([]Command, error) {
		t.Fatal("build should not run for an invalid record")
		return nil, nil
	})
	if res.Status != RowFailed || res.Kind != FailureValidation {
		t.Fatalf("Submit() = %v/%v, want failed/validation", res.Status, res.Kind)
	}
	if !strings.Contains(res.Message, "Name is invalid") || strings.Contains(res.Message, "Name is required") {
		t.Errorf("Message = %q, want only the invalid-cell problem", res.Message)
	}
	if !strings.Contains(res.Message, "VAL006") {
		t.Errorf("Message = %q, want VAL006", res.Message)
	}
}

func TestBuildContext_PayloadDateFormat(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		locale, pattern string
		wantFormat      string
		wantDate        string
	}{
		{"en", "dd MMMM yyyy", "dd MMMM yyyy", "15 January 2024"},
		{"en-GB", "dd MMM yyyy", "dd MMM yyyy", "15 Jan 2024"},
		{"fr", "dd/MM/yyyy", "dd/MM/yyyy", "15/01/2024"},
		{"fr", "dd MMMM yyyy", "yyyy-MM-dd", "2024-01-15"},
		{"de", "EEE dd.MM.yyyy", "yyyy-MM-dd", "2024-01-15"},
	}
	for _, tt := range tests {
		loc, err := sheet.ParseLocale(tt.locale)
		if err != nil {
			t.Fatal(err)
		}
		layout, err := sheet.DateLayout(tt.pattern)
		if err != nil {
			t.Fatal(err)
		}
		bc := newBuildContext(Options{Locale: tt.locale, DateFormat: tt.pattern}, loc, layout, nil)
		if bc.DateFormat != tt.wantFormat {
			t.Errorf("%s %q: DateFormat = %q, want %q", tt.locale, tt.pattern, bc.DateFormat, tt.wantFormat)
		}
		if got := bc.FormatDate(&day); got != tt.wantDate {
			t.Errorf("%s %q: FormatDate() = %q, want %q", tt.locale, tt.pattern, got, tt.wantDate)
		}
	}
}

// slowExecutor takes delay per command and never finishes the command whose
// external ID is stuck, unless its context ends first.
type slowExecutor struct {
	fakeExecutor
	delay time.Duration
	stuck string
}

func (s *slowExecutor) Execute(ctx context.Context, cmd Command) (CommandResult, error) {
	wait := s.delay
	if cmd.ExternalID == s.stuck {
		wait = time.Hour
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
	return s.fakeExecutor.Execute(ctx, cmd)
}

func TestProcess_CommandTimeoutFailsOnlyItsRow(t *testing.T) {
	exec := &slowExecutor{delay: 10 * time.Millisecond, stuck: "A2"}
	h := NewSheetHandler[person](peopleLayout, parsePerson, buildPerson,
		NewDispatcher(exec, WithCommandTimeout(200*time.Millisecond)))
	wb := peopleWorkbook(t,
		[2]any{"A1", "Ada"},
		[2]any{"A2", "Grace"},
		[2]any{"A3", "Edsger"},
		[2]any{"A4", "Barbara"},
	)

	out, err := h.Process(context.Background(), wb, Options{Locale: "en", DateFormat: "dd MMMM yyyy"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.SuccessCount != 3 || out.ErrorCount != 1 {
		t.Errorf("Process() = (%d, %d), want (3, 1)", out.SuccessCount, out.ErrorCount)
	}
	if exec.count() != 3 {
		t.Errorf("executor completed %d commands, want 3", exec.count())
	}
	if got := statusOf(t, wb, 2); !strings.Contains(got, "timed out") {
		t.Errorf("row 2 status = %q, want a timeout message", got)
	}
	for _, row := range []int{1, 3, 4} {
		if got := statusOf(t, wb, row); got != StatusImported {
			t.Errorf("row %d status = %q, want %q", row, got, StatusImported)
		}
	}
}

// brokenStyler produces a style excelize rejects for failed rows.
type brokenStyler struct{}

func (brokenStyler) Style(st sheet.Status) *excelize.Style {
	if st == sheet.StatusFailed {
		return &excelize.Style{Font: &excelize.Font{Size: 500}}
	}
	return nil
}

func TestProcess_AnnotateFailureKeepsResults(t *testing.T) {
	exec := &fakeExecutor{}
	data, err := peopleWorkbook(t, [2]any{"A1", "Ada"}, [2]any{"A2", nil}).Bytes()
	if err != nil {
		t.Fatal(err)
	}
	wb, err := sheet.Open(data, sheet.WithStyler(brokenStyler{}))
	if err != nil {
		t.Fatal(err)
	}
	defer wb.Close()

	out, err := newPeopleHandler(exec).Process(context.Background(), wb, Options{Locale: "en", DateFormat: "dd MMMM yyyy"})
	if err == nil {
		t.Fatal("Process() error = nil, want the annotation failure")
	}
	if len(out.Rows) != 2 || out.SuccessCount != 1 || out.ErrorCount != 1 {
		t.Errorf("Process() outcome = %+v, want both attempted rows", out)
	}
}
