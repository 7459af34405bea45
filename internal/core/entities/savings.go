package entities

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/sheet"
)

const (
	savingsColOffice = iota
	savingsColClient
	savingsColProduct
	savingsColOfficer
	savingsColSubmittedOn
	savingsColApprovedOn
	savingsColActivatedOn
	savingsColInterestRate
	savingsColMinOpening
	savingsColLockIn
	savingsColExternalID
	savingsColStatus
)

var savingsLayout = core.Layout{
	Entity:    core.EntitySavings,
	Sheet:     "Savings",
	AnchorCol: savingsColClient,
	StatusCol: savingsColStatus,
	Columns: []string{
		"Office Name", "Client Name", "Product", "Field Officer", "Submitted On", "Approved On",
		"Activation Date", "Nominal Annual Interest Rate", "Minimum Opening Balance",
		"Lock-in Period (months)", "External ID", "Status",
	},
}

type savingsRecord struct {
	core.RowRef
	Office       string           `label:"Office Name"`
	Client       string           `label:"Client Name" validate:"required"`
	Product      string           `label:"Product" validate:"required"`
	Officer      string           `label:"Field Officer"`
	SubmittedOn  *time.Time       `label:"Submitted On" validate:"required"`
	ApprovedOn   *time.Time       `label:"Approved On" validate:"required_with=ActivatedOn"`
	ActivatedOn  *time.Time       `label:"Activation Date"`
	InterestRate *decimal.Decimal `label:"Nominal Annual Interest Rate" validate:"omitempty,gte=0"`
	MinOpening   *decimal.Decimal `label:"Minimum Opening Balance" validate:"omitempty,gte=0"`
	LockIn       *int64           `label:"Lock-in Period (months)" validate:"omitempty,gte=0"`
	ExternalID   string           `label:"External ID" validate:"max=100"`
}

func parseSavings(row sheet.Row, _ core.Options) savingsRecord {
	c := newCells(row, savingsLayout)
	rec := savingsRecord{
		Office:       c.str(savingsColOffice),
		Client:       c.str(savingsColClient),
		Product:      c.str(savingsColProduct),
		Officer:      c.str(savingsColOfficer),
		SubmittedOn:  c.date(savingsColSubmittedOn),
		ApprovedOn:   c.date(savingsColApprovedOn),
		ActivatedOn:  c.date(savingsColActivatedOn),
		InterestRate: c.decimal(savingsColInterestRate),
		MinOpening:   c.decimal(savingsColMinOpening),
		LockIn:       c.int(savingsColLockIn),
		ExternalID:   c.code(savingsColExternalID),
	}
	rec.RowRef = c.ref
	return rec
}

// buildSavings opens the account, then approves and activates it when the
// row carries those dates.
func buildSavings(rec savingsRecord, bc *core.BuildContext) ([]core.Command, error) {
	clientID, err := bc.Lookups.Require(core.LookupClient, "Client Name", rec.Client)
	if err != nil {
		return nil, err
	}
	productID, err := bc.Lookups.Require(core.LookupSavingsProduct, "Product", rec.Product)
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

	f := fields{"clientId": clientID, "productId": productID}
	f.id("fieldOfficerId", officerID)
	f.date(bc, "submittedOnDate", rec.SubmittedOn)
	f.amount("nominalAnnualInterestRate", rec.InterestRate)
	f.amount("minRequiredOpeningBalance", rec.MinOpening)
	if rec.LockIn != nil {
		f.number("lockinPeriodFrequency", rec.LockIn)
		f["lockinPeriodFrequencyType"] = frequencies["months"]
	}
	f.text("externalId", rec.ExternalID)
	create, err := f.encode(bc)
	if err != nil {
		return nil, err
	}

	cmds := []core.Command{{
		Entity:     core.EntitySavings,
		Action:     core.ActionCreate,
		Targets:    core.TargetIDs{OfficeID: officeID, ClientID: clientID},
		ExternalID: rec.ExternalID,
		Payload:    create,
	}}

	for _, step := range []struct {
		action core.Action
		key    string
		on     *time.Time
	}{
		{core.ActionApprove, "approvedOnDate", rec.ApprovedOn},
		{core.ActionActivate, "activatedOnDate", rec.ActivatedOn},
	} {
		if step.on == nil {
			continue
		}
		sf := fields{}
		sf.date(bc, step.key, step.on)
		body, err := sf.encode(bc)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, core.Command{
			Entity:  core.EntitySavings,
			Action:  step.action,
			Targets: core.TargetIDs{ClientID: clientID},
			Payload: body,
			Chain:   true,
		})
	}
	return cmds, nil
}

// Savings returns the savings accounts handler.
func Savings(d *core.Dispatcher) core.Handler {
	return core.NewSheetHandler[savingsRecord](savingsLayout, parseSavings, buildSavings, d)
}
