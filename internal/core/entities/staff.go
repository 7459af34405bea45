package entities

import (
	"time"

	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/sheet"
)

const (
	staffColOffice = iota
	staffColFirstName
	staffColLastName
	staffColLoanOfficer
	staffColMobile
	staffColJoinedOn
	staffColExternalID
	staffColActive
	staffColEmail
	staffColStatus
)

var staffLayout = core.Layout{
	Entity:    core.EntityStaff,
	Sheet:     "Employees",
	AnchorCol: staffColLastName,
	StatusCol: staffColStatus,
	Columns: []string{
		"Office Name", "First Name", "Last Name", "Is Loan Officer", "Mobile No",
		"Joined On", "External ID", "Is Active", "Email", "Status",
	},
}

type staffRecord struct {
	core.RowRef
	Office      string     `label:"Office Name" validate:"required"`
	FirstName   string     `label:"First Name" validate:"required,max=50"`
	LastName    string     `label:"Last Name" validate:"required,max=50"`
	LoanOfficer bool       `label:"Is Loan Officer"`
	Mobile      string     `label:"Mobile No" validate:"max=50"`
	JoinedOn    *time.Time `label:"Joined On" validate:"required"`
	ExternalID  string     `label:"External ID" validate:"max=100"`
	Active      bool       `label:"Is Active"`
	Email       string     `label:"Email" validate:"omitempty,email"`
}

func parseStaff(row sheet.Row, _ core.Options) staffRecord {
	c := newCells(row, staffLayout)
	rec := staffRecord{
		Office:      c.str(staffColOffice),
		FirstName:   c.str(staffColFirstName),
		LastName:    c.str(staffColLastName),
		LoanOfficer: c.flag(staffColLoanOfficer),
		Mobile:      c.code(staffColMobile),
		JoinedOn:    c.date(staffColJoinedOn),
		ExternalID:  c.code(staffColExternalID),
		Active:      c.flag(staffColActive),
		Email:       c.str(staffColEmail),
	}
	rec.RowRef = c.ref
	return rec
}

func buildStaff(rec staffRecord, bc *core.BuildContext) ([]core.Command, error) {
	officeID, err := bc.Lookups.Require(core.LookupOffice, "Office Name", rec.Office)
	if err != nil {
		return nil, err
	}

	f := fields{
		"officeId":      officeID,
		"firstname":     rec.FirstName,
		"lastname":      rec.LastName,
		"isLoanOfficer": rec.LoanOfficer,
		"isActive":      rec.Active,
	}
	f.text("mobileNo", rec.Mobile)
	f.date(bc, "joiningDate", rec.JoinedOn)
	f.text("externalId", rec.ExternalID)
	f.text("emailAddress", rec.Email)
	body, err := f.encode(bc)
	if err != nil {
		return nil, err
	}

	return []core.Command{{
		Entity:     core.EntityStaff,
		Action:     core.ActionCreate,
		Targets:    core.TargetIDs{OfficeID: officeID},
		ExternalID: rec.ExternalID,
		Payload:    body,
	}}, nil
}

// Staff returns the staff handler.
func Staff(d *core.Dispatcher) core.Handler {
	return core.NewSheetHandler[staffRecord](staffLayout, parseStaff, buildStaff, d)
}
