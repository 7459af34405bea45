package entities

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/sheet"
)

const (
	txnColOffice = iota
	txnColClient
	txnColAccountNo
	txnColType
	txnColAmount
	txnColDate
	txnColPaymentType
	txnColPayerAccount
	txnColChequeNo
	txnColReceiptNo
	txnColStatus
)

var savingsTxnLayout = core.Layout{
	Entity:    core.EntitySavingsTransactions,
	Sheet:     "SavingsTransaction",
	AnchorCol: txnColAccountNo,
	StatusCol: txnColStatus,
	Columns: []string{
		"Office Name", "Client Name", "Savings Account No", "Transaction Type", "Amount",
		"Transaction Date", "Payment Type", "Account No", "Cheque No", "Receipt No", "Status",
	},
}

var txnActions = map[string]core.Action{
	"deposit":    core.ActionDeposit,
	"withdrawal": core.ActionWithdraw,
}

type savingsTxnRecord struct {
	core.RowRef
	Office    string           `label:"Office Name"`
	Client    string           `label:"Client Name"`
	AccountNo string           `label:"Savings Account No" validate:"required"`
	Type      string           `label:"Transaction Type" validate:"required,oneof=deposit withdrawal"`
	Amount    *decimal.Decimal `label:"Amount" validate:"required,gt=0"`
	Date      *time.Time       `label:"Transaction Date" validate:"required"`
	Payment   paymentDetail
}

func parseSavingsTxn(row sheet.Row, _ core.Options) savingsTxnRecord {
	c := newCells(row, savingsTxnLayout)
	rec := savingsTxnRecord{
		Office:    c.str(txnColOffice),
		Client:    c.str(txnColClient),
		AccountNo: c.code(txnColAccountNo),
		Type:      strings.ToLower(c.str(txnColType)),
		Amount:    c.decimal(txnColAmount),
		Date:      c.date(txnColDate),
		Payment: paymentDetail{
			PaymentType:  c.str(txnColPaymentType),
			PayerAccount: c.code(txnColPayerAccount),
			ChequeNo:     c.code(txnColChequeNo),
			ReceiptNo:    c.code(txnColReceiptNo),
		},
	}
	rec.RowRef = c.ref
	return rec
}

func buildSavingsTxn(rec savingsTxnRecord, bc *core.BuildContext) ([]core.Command, error) {
	clientID, err := bc.Lookups.Resolve(core.LookupClient, rec.Client)
	if err != nil {
		return nil, err
	}
	officeID, err := bc.Lookups.Resolve(core.LookupOffice, rec.Office)
	if err != nil {
		return nil, err
	}

	f := fields{"transactionAmount": number(*rec.Amount)}
	f.date(bc, "transactionDate", rec.Date)
	if err := rec.Payment.apply(f, bc); err != nil {
		return nil, err
	}
	body, err := f.encode(bc)
	if err != nil {
		return nil, err
	}

	return []core.Command{{
		Entity:  core.EntitySavings,
		Action:  txnActions[rec.Type],
		Targets: core.TargetIDs{OfficeID: officeID, ClientID: clientID, AccountNo: rec.AccountNo},
		Payload: body,
	}}, nil
}

// SavingsTransactions returns the savings transactions handler.
func SavingsTransactions(d *core.Dispatcher) core.Handler {
	return core.NewSheetHandler[savingsTxnRecord](savingsTxnLayout, parseSavingsTxn, buildSavingsTxn, d)
}
