package sheet

import "github.com/xuri/excelize/v2"

// Status is the kind of annotation written into a row's status cell.
type Status uint8

const (
	StatusHeader Status = iota
	StatusImported
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusImported:
		return "imported"
	case StatusFailed:
		return "failed"
	default:
		return "header"
	}
}

// Styler supplies the cell style for each status. Returning nil leaves the
// cell unstyled.
type Styler interface {
	Style(Status) *excelize.Style
}

// DefaultStyler renders imported rows green and failed rows red.
type DefaultStyler struct{}

func (DefaultStyler) Style(st Status) *excelize.Style {
	switch st {
	case StatusImported:
		return &excelize.Style{
			Font: &excelize.Font{Color: "006100"},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"C6EFCE"}},
		}
	case StatusFailed:
		return &excelize.Style{
			Font:      &excelize.Font{Color: "9C0006"},
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFC7CE"}},
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		}
	default:
		return &excelize.Style{Font: &excelize.Font{Bold: true}}
	}
}

// PlainStyler writes status text without styling.
type PlainStyler struct{}

func (PlainStyler) Style(Status) *excelize.Style { return nil }
