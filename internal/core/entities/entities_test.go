package entities

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/sheet"
)

// recorder accepts every command. CREATE gets a new resource ID; follow-up
// commands report the resource they targeted.
type recorder struct {
	mu       sync.Mutex
	commands []core.Command
	next     int64
}

func (r *recorder) Execute(_ context.Context, cmd core.Command) (core.CommandResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
	if cmd.Action != core.ActionCreate && cmd.Targets.ResourceID != 0 {
		return core.CommandResult{ResourceID: cmd.Targets.ResourceID}, nil
	}
	r.next++
	return core.CommandResult{ResourceID: 500 + r.next}, nil
}

var enOpts = core.Options{Locale: "en", DateFormat: "dd MMMM yyyy"}

// book returns a workbook holding every lookup sheet.
func book(t *testing.T) *sheet.Workbook {
	t.Helper()
	wb := sheet.New()
	lookups := map[core.LookupKind][][2]any{
		core.LookupOffice:         {{"Head Office", 1}, {"Nairobi Branch", 2}},
		core.LookupStaff:          {{"Jane Doe", 4}},
		core.LookupClient:         {{"John Smith", 21}},
		core.LookupLoanProduct:    {{"Starter Loan", 3}},
		core.LookupSavingsProduct: {{"Passbook", 5}},
		core.LookupPaymentType:    {{"Cash", 1}, {"Cheque", 2}},
	}
	for kind, rows := range lookups {
		s, err := wb.AddSheet(kind.SheetName())
		if err != nil {
			t.Fatal(err)
		}
		writeRow(t, s, 0, "Name", "ID")
		for i, r := range rows {
			writeRow(t, s, i+1, r[0], r[1])
		}
	}
	return wb
}

func addSheet(t *testing.T, wb *sheet.Workbook, layout core.Layout, rows ...[]any) *sheet.Sheet {
	t.Helper()
	s, err := wb.AddSheet(layout.Sheet)
	if err != nil {
		t.Fatal(err)
	}
	header := make([]any, len(layout.Columns)-1)
	for i, c := range layout.Columns[:len(layout.Columns)-1] {
		header[i] = c
	}
	writeRow(t, s, 0, header...)
	for i, r := range rows {
		writeRow(t, s, i+1, r...)
	}
	return s
}

func writeRow(t *testing.T, s *sheet.Sheet, row int, vals ...any) {
	t.Helper()
	for col, v := range vals {
		if v == nil {
			continue
		}
		if err := s.SetValue(row, col, v); err != nil {
			t.Fatal(err)
		}
	}
}

func run(t *testing.T, h core.Handler, wb *sheet.Workbook, opts core.Options) core.Outcome {
	t.Helper()
	out, err := h.Process(context.Background(), wb, opts)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	return out
}

func payloadOf(t *testing.T, cmd core.Command) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(cmd.Payload, &m); err != nil {
		t.Fatalf("payload %s: %v", cmd.Payload, err)
	}
	return m
}

func status(s *sheet.Sheet, layout core.Layout, row int) string {
	return s.Cell(row, layout.StatusCol).Text()
}

func TestNewRegistry_Layouts(t *testing.T) {
	r := NewRegistry(core.NewDispatcher(&recorder{}))

	layouts := r.Layouts()
	if len(layouts) != len(core.EntityTypes()) {
		t.Fatalf("Layouts() = %d entries, want %d", len(layouts), len(core.EntityTypes()))
	}
	sheets := make(map[string]bool)
	for _, l := range layouts {
		if l.StatusCol != len(l.Columns)-1 || l.Columns[l.StatusCol] != "Status" {
			t.Errorf("%s: status column %d does not close the layout", l.Entity, l.StatusCol)
		}
		if l.AnchorCol >= l.StatusCol {
			t.Errorf("%s: anchor column %d after status column", l.Entity, l.AnchorCol)
		}
		if sheets[l.Sheet] {
			t.Errorf("sheet %q used twice", l.Sheet)
		}
		sheets[l.Sheet] = true
	}
}

func TestOffices(t *testing.T) {
	exec := &recorder{}
	wb := book(t)
	s := addSheet(t, wb, officeLayout,
		[]any{"Mombasa Branch", "Head Office", nil, "2024-01-15", 1001},
		[]any{"Kisumu Branch", nil, 2, "2024-02-01"},
		[]any{"Atlantis Branch", "Atlantis", nil, "2024-02-01"},
		[]any{"Eldoret Branch", "Head Office"},
	)

	out := run(t, Offices(core.NewDispatcher(exec)), wb, enOpts)
	if out.SuccessCount != 2 || out.ErrorCount != 2 {
		t.Fatalf("Process() = (%d, %d), want (2, 2)", out.SuccessCount, out.ErrorCount)
	}

	p := payloadOf(t, exec.commands[0])
	if p["parentId"] != float64(1) || p["openingDate"] != "15 January 2024" || p["externalId"] != "1001" {
		t.Errorf("office payload = %v", p)
	}
	if p["locale"] != "en" || p["dateFormat"] != "dd MMMM yyyy" {
		t.Errorf("payload missing locale/dateFormat: %v", p)
	}
	if exec.commands[1].Targets.OfficeID != 2 {
		t.Errorf("explicit parent ID = %d, want 2", exec.commands[1].Targets.OfficeID)
	}
	if got := status(s, officeLayout, 3); !strings.Contains(got, `Office "Atlantis" not found`) {
		t.Errorf("row 3 status = %q", got)
	}
	if got := status(s, officeLayout, 4); !strings.Contains(got, "Opened On is required") {
		t.Errorf("row 4 status = %q", got)
	}
}

func TestStaff(t *testing.T) {
	exec := &recorder{}
	wb := book(t)
	s := addSheet(t, wb, staffLayout,
		[]any{"Nairobi Branch", "Jane", "Doe", "yes", 254700000001, "2023-06-01", "E-1", true, "jane@example.com"},
		[]any{"Nairobi Branch", "Bad", "Email", "no", nil, "2023-06-01", nil, true, "not-an-email"},
	)

	out := run(t, Staff(core.NewDispatcher(exec)), wb, enOpts)
	if out.SuccessCount != 1 || out.ErrorCount != 1 {
		t.Fatalf("Process() = (%d, %d), want (1, 1)", out.SuccessCount, out.ErrorCount)
	}
	p := payloadOf(t, exec.commands[0])
	if p["officeId"] != float64(2) || p["isLoanOfficer"] != true || p["mobileNo"] != "254700000001" {
		t.Errorf("staff payload = %v", p)
	}
	if got := status(s, staffLayout, 2); !strings.Contains(got, "Email is invalid") {
		t.Errorf("row 2 status = %q", got)
	}
}

func TestClients(t *testing.T) {
	t.Run("person", func(t *testing.T) {
		exec := &recorder{}
		wb := book(t)
		s := addSheet(t, wb, clientLayout,
			[]any{"John", "Smith", nil, "Head Office", "Jane Doe", 6, "2024-01-10", "yes", "2024-01-11"},
			[]any{nil, "Nomad", nil, "Head Office"},
			[]any{"Early", "Bird", nil, "Head Office", nil, nil, nil, true},
		)

		out := run(t, Clients(core.NewDispatcher(exec)), wb, enOpts)
		if out.SuccessCount != 1 || out.ErrorCount != 2 {
			t.Fatalf("Process() = (%d, %d), want (1, 2)", out.SuccessCount, out.ErrorCount)
		}
		cmd := exec.commands[0]
		if cmd.ExternalID != "6" {
			t.Errorf("ExternalID = %q, want %q", cmd.ExternalID, "6")
		}
		p := payloadOf(t, cmd)
		if p["firstname"] != "John" || p["staffId"] != float64(4) || p["legalFormId"] != float64(1) {
			t.Errorf("client payload = %v", p)
		}
		if p["activationDate"] != "11 January 2024" {
			t.Errorf("activationDate = %v", p["activationDate"])
		}
		if got := status(s, clientLayout, 2); !strings.Contains(got, "First Name is required") {
			t.Errorf("row 2 status = %q", got)
		}
		if got := status(s, clientLayout, 3); !strings.Contains(got, "Activation Date is required") {
			t.Errorf("row 3 status = %q", got)
		}
	})

	t.Run("entity", func(t *testing.T) {
		exec := &recorder{}
		wb := book(t)
		addSheet(t, wb, clientLayout, []any{nil, "Acme Traders Ltd", nil, "Head Office"})

		opts := enOpts
		opts.Attributes = map[string]string{"legalForm": "entity"}
		out := run(t, Clients(core.NewDispatcher(exec)), wb, opts)
		if out.SuccessCount != 1 {
			t.Fatalf("Process() = (%d, %d), want (1, 0)", out.SuccessCount, out.ErrorCount)
		}
		p := payloadOf(t, exec.commands[0])
		if p["fullname"] != "Acme Traders Ltd" || p["legalFormId"] != float64(2) {
			t.Errorf("entity payload = %v", p)
		}
		if _, ok := p["firstname"]; ok {
			t.Error("entity payload should not carry firstname")
		}
	})
}

func TestLoans(t *testing.T) {
	exec := &recorder{}
	wb := book(t)
	s := addSheet(t, wb, loanLayout,
		[]any{"Head Office", "John Smith", "Starter Loan", "Jane Doe", "2024-03-01", "2024-03-02", "2024-03-05",
			"1 500,50", 12, 1, "Months", nil, "2,5", "L-77", "Cash"},
		[]any{"Head Office", "John Smith", "Starter Loan", nil, "2024-03-01", nil, "2024-03-05",
			1000, 12, 1, "months", nil, 2},
		[]any{"Head Office", "John Smith", "Starter Loan", nil, "2024-03-01", nil, nil,
			"lots", 12, 1, "months", nil, 2},
	)

	opts := core.Options{Locale: "fr", DateFormat: "dd/MM/yyyy"}
	out := run(t, Loans(core.NewDispatcher(exec)), wb, opts)
	if out.SuccessCount != 1 || out.ErrorCount != 2 {
		t.Fatalf("Process() = (%d, %d), want (1, 2)", out.SuccessCount, out.ErrorCount)
	}

	if len(exec.commands) != 3 {
		t.Fatalf("commands = %d, want create, approve, disburse", len(exec.commands))
	}
	create, approve, disburse := exec.commands[0], exec.commands[1], exec.commands[2]
	if create.Action != core.ActionCreate || approve.Action != core.ActionApprove || disburse.Action != core.ActionDisburse {
		t.Errorf("actions = %s, %s, %s", create.Action, approve.Action, disburse.Action)
	}
	if approve.Targets.ResourceID != 501 || disburse.Targets.ResourceID != 501 {
		t.Errorf("chain targets = %d, %d, want 501", approve.Targets.ResourceID, disburse.Targets.ResourceID)
	}

	p := payloadOf(t, create)
	if p["principal"] != 1500.5 || p["interestRatePerPeriod"] != 2.5 {
		t.Errorf("amounts = %v, %v", p["principal"], p["interestRatePerPeriod"])
	}
	if p["loanType"] != "individual" || p["loanTermFrequency"] != float64(12) || p["repaymentFrequencyType"] != float64(2) {
		t.Errorf("loan terms = %v", p)
	}
	if p["submittedOnDate"] != "01/03/2024" || p["expectedDisbursementDate"] != "05/03/2024" {
		t.Errorf("dates = %v, %v", p["submittedOnDate"], p["expectedDisbursementDate"])
	}
	if d := payloadOf(t, disburse); d["paymentTypeId"] != float64(1) || d["actualDisbursementDate"] != "05/03/2024" {
		t.Errorf("disburse payload = %v", d)
	}

	if got := status(s, loanLayout, 2); !strings.Contains(got, "Approved On is required") {
		t.Errorf("row 2 status = %q", got)
	}
	if got := status(s, loanLayout, 3); !strings.Contains(got, "Principal is invalid") {
		t.Errorf("row 3 status = %q", got)
	}
}

func TestLoanRepayments(t *testing.T) {
	exec := &recorder{}
	wb := book(t)
	s := addSheet(t, wb, repaymentLayout,
		[]any{"Head Office", "John Smith", 1234, 250.75, "2024-04-01", "Cheque", nil, 99881},
		[]any{"Head Office", "John Smith", 1234, "abc", "2024-04-01", "Cash"},
		[]any{"Head Office", "John Smith", 1234, 10, "2024-04-01", "Barter"},
	)

	out := run(t, LoanRepayments(core.NewDispatcher(exec)), wb, enOpts)
	if out.SuccessCount != 1 || out.ErrorCount != 2 {
		t.Fatalf("Process() = (%d, %d), want (1, 2)", out.SuccessCount, out.ErrorCount)
	}
	cmd := exec.commands[0]
	if cmd.Action != core.ActionRepay || cmd.Targets.AccountNo != "1234" || cmd.Targets.ClientID != 21 {
		t.Errorf("repayment command = %+v", cmd)
	}
	p := payloadOf(t, cmd)
	if p["transactionAmount"] != 250.75 || p["paymentTypeId"] != float64(2) || p["checkNumber"] != "99881" {
		t.Errorf("repayment payload = %v", p)
	}
	if got := status(s, repaymentLayout, 2); !strings.Contains(got, "Amount is invalid") {
		t.Errorf("row 2 status = %q", got)
	}
	if got := status(s, repaymentLayout, 3); !strings.Contains(got, `Payment type "Barter" not found`) {
		t.Errorf("row 3 status = %q", got)
	}
}

func TestSavings(t *testing.T) {
	exec := &recorder{}
	wb := book(t)
	addSheet(t, wb, savingsLayout,
		[]any{"Head Office", "John Smith", "Passbook", "Jane Doe", "2024-05-01", "2024-05-02", "2024-05-03", 4, 100, 6, "S-1"},
		[]any{"Head Office", "John Smith", "Passbook", nil, "2024-05-01"},
	)

	out := run(t, Savings(core.NewDispatcher(exec)), wb, enOpts)
	if out.SuccessCount != 2 || out.ErrorCount != 0 {
		t.Fatalf("Process() = (%d, %d), want (2, 0)", out.SuccessCount, out.ErrorCount)
	}
	if len(exec.commands) != 4 {
		t.Fatalf("commands = %d, want 4", len(exec.commands))
	}
	if exec.commands[1].Action != core.ActionApprove || exec.commands[2].Action != core.ActionActivate {
		t.Errorf("actions = %s, %s", exec.commands[1].Action, exec.commands[2].Action)
	}
	if exec.commands[2].Targets.ResourceID != 501 {
		t.Errorf("activate target = %d, want 501", exec.commands[2].Targets.ResourceID)
	}
	p := payloadOf(t, exec.commands[0])
	if p["productId"] != float64(5) || p["fieldOfficerId"] != float64(4) || p["lockinPeriodFrequency"] != float64(6) {
		t.Errorf("savings payload = %v", p)
	}
	if exec.commands[3].Action != core.ActionCreate {
		t.Errorf("second row should only be created, got %s", exec.commands[3].Action)
	}
}

func TestSavingsTransactions(t *testing.T) {
	exec := &recorder{}
	wb := book(t)
	s := addSheet(t, wb, savingsTxnLayout,
		[]any{"Head Office", "John Smith", "000000042", "Withdrawal", 20, "2024-06-01", "Cash"},
		[]any{"Head Office", "John Smith", "000000042", "Transfer", 20, "2024-06-01", "Cash"},
	)

	out := run(t, SavingsTransactions(core.NewDispatcher(exec)), wb, enOpts)
	if out.SuccessCount != 1 || out.ErrorCount != 1 {
		t.Fatalf("Process() = (%d, %d), want (1, 1)", out.SuccessCount, out.ErrorCount)
	}
	cmd := exec.commands[0]
	if cmd.Action != core.ActionWithdraw || cmd.Entity != core.EntitySavings || cmd.Targets.AccountNo != "000000042" {
		t.Errorf("transaction command = %+v", cmd)
	}
	if got := status(s, savingsTxnLayout, 2); !strings.Contains(got, "Transaction Type must be one of: deposit, withdrawal") {
		t.Errorf("row 2 status = %q", got)
	}
}
