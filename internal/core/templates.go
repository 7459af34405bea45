package core

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/ledgerimport/internal/sheet"
)

// Template builds an empty workbook for layout: one sheet with the column
// headers in bold and the header row frozen.
func Template(layout Layout) ([]byte, error) {
	wb := sheet.New()
	defer wb.Close()

	s, err := wb.AddSheet(layout.Sheet)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", layout.Entity, err)
	}
	for col, name := range layout.Columns {
		if err := s.SetValue(0, col, name); err != nil {
			return nil, fmt.Errorf("template %s: %w", layout.Entity, err)
		}
	}

	f := wb.File()
	if layout.Sheet != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	last := sheet.ColumnName(len(layout.Columns) - 1)
	if err := f.SetCellStyle(layout.Sheet, "A1", last+"1", bold); err != nil {
		return nil, err
	}
	if err := f.SetPanes(layout.Sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}

	return wb.Bytes()
}
