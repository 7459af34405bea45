package entities

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/sheet"
)

// cells reads typed values from one row. A non-blank cell that does not
// parse as the wanted type is recorded as unreadable under its column label
// and read as absent.
type cells struct {
	row    sheet.Row
	labels []string
	ref    core.RowRef
}

func newCells(row sheet.Row, layout core.Layout) *cells {
	return &cells{row: row, labels: layout.Columns, ref: core.RowRef{RowIndex: row.Index}}
}

func (c *cells) label(col int) string {
	if col < len(c.labels) {
		return c.labels[col]
	}
	return "column " + sheet.ColumnName(col)
}

func (c *cells) bad(col int) {
	c.ref.Unreadable = append(c.ref.Unreadable, c.label(col))
}

func (c *cells) blank(col int) bool { return c.row.Value(col).IsAbsent() }

func (c *cells) str(col int) string { return c.row.Str(col) }

func (c *cells) code(col int) string {
	s, ok := c.row.Code(col)
	if !ok {
		c.bad(col)
	}
	return s
}

func (c *cells) decimal(col int) *decimal.Decimal {
	if c.blank(col) {
		return nil
	}
	d, ok := c.row.Decimal(col)
	if !ok {
		c.bad(col)
		return nil
	}
	return &d
}

func (c *cells) date(col int) *time.Time {
	if c.blank(col) {
		return nil
	}
	t, ok := c.row.Date(col)
	if !ok {
		c.bad(col)
		return nil
	}
	return &t
}

func (c *cells) int(col int) *int64 {
	if c.blank(col) {
		return nil
	}
	n, ok := c.row.Int(col)
	if !ok {
		c.bad(col)
		return nil
	}
	return &n
}

// flag reads a yes/no cell; blank is false.
func (c *cells) flag(col int) bool {
	if c.blank(col) {
		return false
	}
	b, ok := c.row.Bool(col)
	if !ok {
		c.bad(col)
	}
	return b
}
