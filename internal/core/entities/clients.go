package entities

import (
	"strings"
	"time"

	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/sheet"
)

const (
	clientColFirstName = iota
	clientColLastName
	clientColMiddleName
	clientColOffice
	clientColStaff
	clientColExternalID
	clientColSubmittedOn
	clientColActive
	clientColActivatedOn
	clientColMobile
	clientColBirthDate
	clientColStatus
)

var clientLayout = core.Layout{
	Entity:    core.EntityClients,
	Sheet:     "Clients",
	AnchorCol: clientColLastName,
	StatusCol: clientColStatus,
	Columns: []string{
		"First Name", "Last Name", "Middle Name", "Office Name", "Staff Name", "External ID",
		"Submitted On", "Active", "Activation Date", "Mobile No", "Date of Birth", "Status",
	},
}

// Legal forms selected with the legalForm job attribute. An ENTITY client
// keeps its full name in the Last Name column.
const (
	LegalFormPerson = "PERSON"
	LegalFormEntity = "ENTITY"
)

var legalFormIDs = map[string]int{LegalFormPerson: 1, LegalFormEntity: 2}

type clientRecord struct {
	core.RowRef
	LegalForm   string     `label:"Legal Form" validate:"oneof=PERSON ENTITY"`
	FirstName   string     `label:"First Name" validate:"required_if=LegalForm PERSON,max=50"`
	LastName    string     `label:"Last Name" validate:"required,max=100"`
	MiddleName  string     `label:"Middle Name" validate:"max=50"`
	Office      string     `label:"Office Name" validate:"required"`
	Staff       string     `label:"Staff Name"`
	ExternalID  string     `label:"External ID" validate:"max=100"`
	SubmittedOn *time.Time `label:"Submitted On"`
	Active      bool       `label:"Active"`
	ActivatedOn *time.Time `label:"Activation Date" validate:"required_if=Active true"`
	Mobile      string     `label:"Mobile No" validate:"max=50"`
	BirthDate   *time.Time `label:"Date of Birth"`
}

func parseClient(row sheet.Row, opts core.Options) clientRecord {
	c := newCells(row, clientLayout)
	rec := clientRecord{
		LegalForm:   strings.ToUpper(opts.Attr("legalForm", LegalFormPerson)),
		FirstName:   c.str(clientColFirstName),
		LastName:    c.str(clientColLastName),
		MiddleName:  c.str(clientColMiddleName),
		Office:      c.str(clientColOffice),
		Staff:       c.str(clientColStaff),
		ExternalID:  c.code(clientColExternalID),
		SubmittedOn: c.date(clientColSubmittedOn),
		Active:      c.flag(clientColActive),
		ActivatedOn: c.date(clientColActivatedOn),
		Mobile:      c.code(clientColMobile),
		BirthDate:   c.date(clientColBirthDate),
	}
	rec.RowRef = c.ref
	return rec
}

// Clients returns the clients handler.
func Clients(d *core.Dispatcher) core.Handler {
	return core.NewSheetHandler[clientRecord](clientLayout, parseClient, buildClient, d)
}

func buildClient(rec clientRecord, bc *core.BuildContext) ([]core.Command, error) {
	officeID, err := bc.Lookups.Require(core.LookupOffice, "Office Name", rec.Office)
	if err != nil {
		return nil, err
	}
	staffID, err := bc.Lookups.Resolve(core.LookupStaff, rec.Staff)
	if err != nil {
		return nil, err
	}

	f := fields{
		"officeId":    officeID,
		"legalFormId": legalFormIDs[rec.LegalForm],
		"active":      rec.Active,
	}
	if rec.LegalForm == LegalFormEntity {
		f["fullname"] = rec.LastName
	} else {
		f["firstname"] = rec.FirstName
		f["lastname"] = rec.LastName
		f.text("middlename", rec.MiddleName)
	}
	f.id("staffId", staffID)
	f.text("externalId", rec.ExternalID)
	f.text("mobileNo", rec.Mobile)
	f.date(bc, "submittedOnDate", rec.SubmittedOn)
	f.date(bc, "dateOfBirth", rec.BirthDate)
	if rec.Active {
		f.date(bc, "activationDate", rec.ActivatedOn)
	}
	body, err := f.encode(bc)
	if err != nil {
		return nil, err
	}

	return []core.Command{{
		Entity:     core.EntityClients,
		Action:     core.ActionCreate,
		Targets:    core.TargetIDs{OfficeID: officeID},
		ExternalID: rec.ExternalID,
		Payload:    body,
	}}, nil
}
