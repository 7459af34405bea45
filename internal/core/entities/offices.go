package entities

import (
	"time"

	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/sheet"
)

const (
	officeColName = iota
	officeColParent
	officeColParentID
	officeColOpenedOn
	officeColExternalID
	officeColStatus
)

var officeLayout = core.Layout{
	Entity:    core.EntityOffices,
	Sheet:     "Offices",
	AnchorCol: officeColName,
	StatusCol: officeColStatus,
	Columns:   []string{"Office Name", "Parent Office", "Parent Office ID", "Opened On", "External ID", "Status"},
}

type officeRecord struct {
	core.RowRef
	Name       string     `label:"Office Name" validate:"required,max=100"`
	Parent     string     `label:"Parent Office"`
	ParentID   *int64     `label:"Parent Office ID" validate:"omitempty,gt=0"`
	OpenedOn   *time.Time `label:"Opened On" validate:"required"`
	ExternalID string     `label:"External ID" validate:"max=100"`
}

func parseOffice(row sheet.Row, _ core.Options) officeRecord {
	c := newCells(row, officeLayout)
	rec := officeRecord{
		Name:       c.str(officeColName),
		Parent:     c.str(officeColParent),
		ParentID:   c.int(officeColParentID),
		OpenedOn:   c.date(officeColOpenedOn),
		ExternalID: c.code(officeColExternalID),
	}
	rec.RowRef = c.ref
	return rec
}

// buildOffice creates the office under its parent. An explicit parent ID
// wins over the parent name.
func buildOffice(rec officeRecord, bc *core.BuildContext) ([]core.Command, error) {
	var parentID int64
	if rec.ParentID != nil {
		parentID = *rec.ParentID
	} else {
		id, err := bc.Lookups.Require(core.LookupOffice, "Parent Office", rec.Parent)
		if err != nil {
			return nil, err
		}
		parentID = id
	}

	f := fields{"name": rec.Name, "parentId": parentID}
	f.date(bc, "openingDate", rec.OpenedOn)
	f.text("externalId", rec.ExternalID)
	body, err := f.encode(bc)
	if err != nil {
		return nil, err
	}

	return []core.Command{{
		Entity:     core.EntityOffices,
		Action:     core.ActionCreate,
		Targets:    core.TargetIDs{OfficeID: parentID},
		ExternalID: rec.ExternalID,
		Payload:    body,
	}}, nil
}

// Offices returns the offices handler.
func Offices(d *core.Dispatcher) core.Handler {
	return core.NewSheetHandler[officeRecord](officeLayout, parseOffice, buildOffice, d)
}
