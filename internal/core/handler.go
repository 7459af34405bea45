package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/ledgerimport/internal/sheet"
)

// StatusImported is written into the status cell of every imported row.
const StatusImported = "IMPORTED"

// StatusHeader labels the status column.
const StatusHeader = "Status"

// Layout describes an entity's sheet.
type Layout struct {
	Entity    EntityType `json:"entity"`
	Sheet     string     `json:"sheet"`
	AnchorCol int        `json:"anchor_column"`
	StatusCol int        `json:"status_column"`
	Columns   []string   `json:"columns"`
}

// BuildContext carries per-run state shared by every row's command builder.
type BuildContext struct {
	Options    Options
	Locale     sheet.Locale
	DateLayout string
	Lookups    *Lookups

	// DateFormat is the pattern payload dates are written in. It is the
	// job's format unless that format spells out month or weekday names
	// in a language other than English.
	DateFormat string
}

func newBuildContext(opts Options, loc sheet.Locale, layout string, lookups *Lookups) *BuildContext {
	bc := &BuildContext{Options: opts, Locale: loc, DateLayout: layout, Lookups: lookups, DateFormat: opts.DateFormat}
	base, _ := loc.Tag.Base()
	if base.String() != "en" && (strings.Contains(layout, "Jan") || strings.Contains(layout, "Mon")) {
		bc.DateLayout = isoLayout
		bc.DateFormat = isoFormat
	}
	return bc
}

const (
	isoFormat = "yyyy-MM-dd"
	isoLayout = "2006-01-02"
)

// FormatDate renders t in the payload date format.
func (bc *BuildContext) FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(bc.DateLayout)
}

// ParseFunc reads one row into a record. It must not fail or touch the sheet;
// problems surface when the record is validated. opts carries the job's
// attributes for entities whose records depend on them.
type ParseFunc[R RowRecord] func(row sheet.Row, opts Options) R

// CommandFunc builds the commands for one record.
type CommandFunc[R RowRecord] func(rec R, bc *BuildContext) ([]Command, error)

// SheetHandler is the generic Handler: one sheet, one record type.
type SheetHandler[R RowRecord] struct {
	layout     Layout
	parse      ParseFunc[R]
	build      CommandFunc[R]
	dispatcher *Dispatcher
}

// NewSheetHandler assembles a Handler from an entity's layout, parser and
// command builder.
func NewSheetHandler[R RowRecord](layout Layout, parse ParseFunc[R], build CommandFunc[R], d *Dispatcher) *SheetHandler[R] {
	return &SheetHandler[R]{layout: layout, parse: parse, build: build, dispatcher: d}
}

func (h *SheetHandler[R]) Entity() EntityType { return h.layout.Entity }
func (h *SheetHandler[R]) Layout() Layout { return h.layout }

// Process imports every unprocessed row of the handler's sheet. Rows whose
// status cell is already filled are skipped. Each attempted row gets exactly
// one status: IMPORTED or the failure message. Only problems with the
// workbook itself are returned as errors.
func (h *SheetHandler[R]) Process(ctx context.Context, wb *sheet.Workbook, opts Options) (Outcome, error) {
	s, err := wb.Sheet(h.layout.Sheet)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", h.layout.Entity, err)
	}
	loc, err := sheet.ParseLocale(opts.Locale)
	if err != nil {
		return Outcome{}, err
	}
	layout, err := sheet.DateLayout(opts.DateFormat)
	if err != nil {
		return Outcome{}, err
	}

	bc := newBuildContext(opts, loc, layout, LoadLookups(wb))
	reader := sheet.NewReader(s, loc, layout)
	results := &collector{}

	rowCount := s.CountRows(h.layout.AnchorCol)
	for i := 1; i <= rowCount; i++ {
		if !s.IsBlank(i, h.layout.StatusCol) {
			continue
		}

		rec := h.parse(reader.Row(i), opts)
		res := h.dispatcher.Submit(ctx, rec, func() ([]Command, error) { return h.build(rec, bc) })
		res.RowIndex = i
		results.add(res)

		if err := h.annotate(s, res); err != nil {
			return results.outcome(), err
		}
	}

	if err := s.Annotate(0, h.layout.StatusCol, sheet.StatusHeader, StatusHeader); err != nil {
		return results.outcome(), err
	}
	return results.outcome(), nil
}

func (h *SheetHandler[R]) annotate(s *sheet.Sheet, res RowResult) error {
	if res.Status == RowImported {
		return s.Annotate(res.RowIndex, h.layout.StatusCol, sheet.StatusImported, StatusImported)
	}
	msg := res.Message
	if msg == "" {
		msg = "Not imported"
	}
	return s.Annotate(res.RowIndex, h.layout.StatusCol, sheet.StatusFailed, msg)
}

// collector accumulates row results in row order.
type collector struct {
	rows []RowResult
	ok   int
	bad  int
}

func (c *collector) add(r RowResult) {
	c.rows = append(c.rows, r)
	if r.Status == RowImported {
		c.ok++
	} else {
		c.bad++
	}
}

func (c *collector) outcome() Outcome {
	return Outcome{SuccessCount: c.ok, ErrorCount: c.bad, Rows: c.rows}
}
