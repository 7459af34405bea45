package entities

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/sheet"
)

const (
	loanColOffice = iota
	loanColClient
	loanColProduct
	loanColOfficer
	loanColSubmittedOn
	loanColApprovedOn
	loanColDisbursedOn
	loanColPrincipal
	loanColRepayments
	loanColRepaidEvery
	loanColFrequency
	loanColTerm
	loanColInterestRate
	loanColExternalID
	loanColPaymentType
	loanColStatus
)

var loanLayout = core.Layout{
	Entity:    core.EntityLoans,
	Sheet:     "Loans",
	AnchorCol: loanColClient,
	StatusCol: loanColStatus,
	Columns: []string{
		"Office Name", "Client Name", "Product", "Loan Officer", "Submitted On", "Approved On",
		"Disbursed On", "Principal", "Number of Repayments", "Repaid Every", "Repayment Frequency",
		"Loan Term", "Nominal Interest Rate", "External ID", "Disbursement Payment Type", "Status",
	},
}

// frequencies maps the Repayment Frequency column to platform period codes.
var frequencies = map[string]int{"days": 0, "weeks": 1, "months": 2, "years": 3}

type loanRecord struct {
	core.RowRef
	LoanType     string           `label:"Loan Type" validate:"oneof=individual group jlg"`
	Office       string           `label:"Office Name"`
	Client       string           `label:"Client Name" validate:"required"`
	Product      string           `label:"Product" validate:"required"`
	Officer      string           `label:"Loan Officer"`
	SubmittedOn  *time.Time       `label:"Submitted On" validate:"required"`
	ApprovedOn   *time.Time       `label:"Approved On" validate:"required_with=DisbursedOn"`
	DisbursedOn  *time.Time       `label:"Disbursed On"`
	Principal    *decimal.Decimal `label:"Principal" validate:"required,gt=0"`
	Repayments   *int64           `label:"Number of Repayments" validate:"required,gt=0"`
	RepaidEvery  *int64           `label:"Repaid Every" validate:"required,gt=0"`
	Frequency    string           `label:"Repayment Frequency" validate:"required,oneof=days weeks months years"`
	Term         *int64           `label:"Loan Term" validate:"omitempty,gt=0"`
	InterestRate *decimal.Decimal `label:"Nominal Interest Rate" validate:"required,gte=0"`
	ExternalID   string           `label:"External ID" validate:"max=100"`
	PaymentType  string           `label:"Disbursement Payment Type"`
}

func parseLoan(row sheet.Row, opts core.Options) loanRecord {
	c := newCells(row, loanLayout)
	rec := loanRecord{
		LoanType:     strings.ToLower(opts.Attr("loanType", "individual")),
		Office:       c.str(loanColOffice),
		Client:       c.str(loanColClient),
		Product:      c.str(loanColProduct),
		Officer:      c.str(loanColOfficer),
		SubmittedOn:  c.date(loanColSubmittedOn),
		ApprovedOn:   c.date(loanColApprovedOn),
		DisbursedOn:  c.date(loanColDisbursedOn),
		Principal:    c.decimal(loanColPrincipal),
		Repayments:   c.int(loanColRepayments),
		RepaidEvery:  c.int(loanColRepaidEvery),
		Frequency:    strings.ToLower(c.str(loanColFrequency)),
		Term:         c.int(loanColTerm),
		InterestRate: c.decimal(loanColInterestRate),
		ExternalID:   c.code(loanColExternalID),
		PaymentType:  c.str(loanColPaymentType),
	}
	rec.RowRef = c.ref
	return rec
}

// buildLoan submits the application, then approves and disburses it when
// the row carries those dates.
func buildLoan(rec loanRecord, bc *core.BuildContext) ([]core.Command, error) {
	clientID, err := bc.Lookups.Require(core.LookupClient, "Client Name", rec.Client)
	if err != nil {
		return nil, err
	}
	productID, err := bc.Lookups.Require(core.LookupLoanProduct, "Product", rec.Product)
	if err != nil {
		return nil, err
	}
	officerID, err := bc.Lookups.Resolve(core.LookupStaff, rec.Officer)
	if err != nil {
		return nil, err
	}
	officeID, err := bc.Lookups.Resolve(core.LookupOffice, rec.Office)
	if err != nil {
		return nil, err
	}
	paymentTypeID, err := bc.Lookups.Resolve(core.LookupPaymentType, rec.PaymentType)
	if err != nil {
		return nil, err
	}

	// Term defaults to the full repayment schedule.
	term := *rec.Repayments * *rec.RepaidEvery
	if rec.Term != nil {
		term = *rec.Term
	}

	f := fields{
		"clientId":                      clientID,
		"productId":                     productID,
		"loanType":                      rec.LoanType,
		"principal":                     number(*rec.Principal),
		"numberOfRepayments":            *rec.Repayments,
		"repaymentEvery":                *rec.RepaidEvery,
		"repaymentFrequencyType":        frequencies[rec.Frequency],
		"loanTermFrequency":             term,
		"loanTermFrequencyType":         frequencies[rec.Frequency],
		"interestRatePerPeriod":         number(*rec.InterestRate),
		"expectedDisbursementDate":      bc.FormatDate(firstDate(rec.DisbursedOn, rec.ApprovedOn, rec.SubmittedOn)),
		"transactionProcessingStrategy": "mifos-standard-strategy",
	}
	f.id("loanOfficerId", officerID)
	f.date(bc, "submittedOnDate", rec.SubmittedOn)
	f.text("externalId", rec.ExternalID)
	create, err := f.encode(bc)
	if err != nil {
		return nil, err
	}

	cmds := []core.Command{{
		Entity:     core.EntityLoans,
		Action:     core.ActionCreate,
		Targets:    core.TargetIDs{OfficeID: officeID, ClientID: clientID},
		ExternalID: rec.ExternalID,
		Payload:    create,
	}}

	if rec.ApprovedOn != nil {
		approve := fields{}
		approve.date(bc, "approvedOnDate", rec.ApprovedOn)
		body, err := approve.encode(bc)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, core.Command{
			Entity:  core.EntityLoans,
			Action:  core.ActionApprove,
			Targets: core.TargetIDs{ClientID: clientID},
			Payload: body,
			Chain:   true,
		})
	}

	if rec.DisbursedOn != nil {
		disburse := fields{}
		disburse.date(bc, "actualDisbursementDate", rec.DisbursedOn)
		disburse.id("paymentTypeId", paymentTypeID)
		body, err := disburse.encode(bc)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, core.Command{
			Entity:  core.EntityLoans,
			Action:  core.ActionDisburse,
			Targets: core.TargetIDs{ClientID: clientID},
			Payload: body,
			Chain:   true,
		})
	}
	return cmds, nil
}

func firstDate(dates ...*time.Time) *time.Time {
	for _, d := range dates {
		if d != nil {
			return d
		}
	}
	return nil
}

// Loans returns the loans handler.
func Loans(d *core.Dispatcher) core.Handler {
	return core.NewSheetHandler[loanRecord](loanLayout, parseLoan, buildLoan, d)
}
