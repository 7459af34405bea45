package entities

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/sheet"
)

const (
	repayColOffice = iota
	repayColClient
	repayColAccountNo
	repayColAmount
	repayColRepaidOn
	repayColPaymentType
	repayColPayerAccount
	repayColChequeNo
	repayColRoutingCode
	repayColReceiptNo
	repayColBankNo
	repayColStatus
)

var repaymentLayout = core.Layout{
	Entity:    core.EntityLoanRepayments,
	Sheet:     "LoanRepayment",
	AnchorCol: repayColAccountNo,
	StatusCol: repayColStatus,
	Columns: []string{
		"Office Name", "Client Name", "Loan Account No", "Amount", "Repaid On", "Payment Type",
		"Account No", "Cheque No", "Routing Code", "Receipt No", "Bank No", "Status",
	},
}

// paymentDetail is the optional payment detail block shared by loan
// repayments and savings transactions.
type paymentDetail struct {
	PaymentType  string `label:"Payment Type" validate:"required"`
	PayerAccount string `label:"Account No" validate:"max=50"`
	ChequeNo     string `label:"Cheque No" validate:"max=50"`
	RoutingCode  string `label:"Routing Code" validate:"max=50"`
	ReceiptNo    string `label:"Receipt No" validate:"max=50"`
	BankNo       string `label:"Bank No" validate:"max=50"`
}

func (p paymentDetail) apply(f fields, bc *core.BuildContext) error {
	id, err := bc.Lookups.Require(core.LookupPaymentType, "Payment Type", p.PaymentType)
	if err != nil {
		return err
	}
	f["paymentTypeId"] = id
	f.text("accountNumber", p.PayerAccount)
	f.text("checkNumber", p.ChequeNo)
	f.text("routingCode", p.RoutingCode)
	f.text("receiptNumber", p.ReceiptNo)
	f.text("bankNumber", p.BankNo)
	return nil
}

type repaymentRecord struct {
	core.RowRef
	Office    string           `label:"Office Name"`
	Client    string           `label:"Client Name"`
	AccountNo string           `label:"Loan Account No" validate:"required"`
	Amount    *decimal.Decimal `label:"Amount" validate:"required,gt=0"`
	RepaidOn  *time.Time       `label:"Repaid On" validate:"required"`
	Payment   paymentDetail
}

func parseRepayment(row sheet.Row, _ core.Options) repaymentRecord {
	c := newCells(row, repaymentLayout)
	rec := repaymentRecord{
		Office:    c.str(repayColOffice),
		Client:    c.str(repayColClient),
		AccountNo: c.code(repayColAccountNo),
		Amount:    c.decimal(repayColAmount),
		RepaidOn:  c.date(repayColRepaidOn),
		Payment: paymentDetail{
			PaymentType:  c.str(repayColPaymentType),
			PayerAccount: c.code(repayColPayerAccount),
			ChequeNo:     c.code(repayColChequeNo),
			RoutingCode:  c.code(repayColRoutingCode),
			ReceiptNo:    c.code(repayColReceiptNo),
			BankNo:       c.code(repayColBankNo),
		},
	}
	rec.RowRef = c.ref
	return rec
}

func buildRepayment(rec repaymentRecord, bc *core.BuildContext) ([]core.Command, error) {
	clientID, err := bc.Lookups.Resolve(core.LookupClient, rec.Client)
	if err != nil {
		return nil, err
	}
	officeID, err := bc.Lookups.Resolve(core.LookupOffice, rec.Office)
	if err != nil {
		return nil, err
	}

	f := fields{"transactionAmount": number(*rec.Amount)}
	f.date(bc, "transactionDate", rec.RepaidOn)
	if err := rec.Payment.apply(f, bc); err != nil {
		return nil, err
	}
	body, err := f.encode(bc)
	if err != nil {
		return nil, err
	}

	return []core.Command{{
		Entity:  core.EntityLoans,
		Action:  core.ActionRepay,
		Targets: core.TargetIDs{OfficeID: officeID, ClientID: clientID, AccountNo: rec.AccountNo},
		Payload: body,
	}}, nil
}

// LoanRepayments returns the loan repayments handler.
func LoanRepayments(d *core.Dispatcher) core.Handler {
	return core.NewSheetHandler[repaymentRecord](repaymentLayout, parseRepayment, buildRepayment, d)
}
