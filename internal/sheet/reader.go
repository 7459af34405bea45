package sheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet is one named sheet of a Workbook.
type Sheet struct {
	wb   *Workbook
	name string
}

func (s *Sheet) Name() string { return s.name }

func axis(row, col int) (string, error) {
	return excelize.CoordinatesToCellName(col+1, row+1)
}

// ColumnName returns the letter name of a zero-based column: 0 is "A".
func ColumnName(col int) string {
	name, err := excelize.ColumnNumberToName(col + 1)
	if err != nil {
		return "?"
	}
	return name
}

// Cell reads one cell. It never fails: unreadable cells, formula errors and
// blanks all come back absent. Strings are trimmed.
func (s *Sheet) Cell(row, col int) Value {
	ref, err := axis(row, col)
	if err != nil {
		return Absent()
	}
	f := s.wb.f

	if formula, err := f.GetCellFormula(s.name, ref); err == nil && formula != "" {
		res, err := f.CalcCellValue(s.name, ref, excelize.Options{RawCellValue: true})
		if err != nil {
			return Absent()
		}
		return classify(res)
	}

	typ, err := f.GetCellType(s.name, ref)
	if err != nil {
		return Absent()
	}
	raw, err := f.GetCellValue(s.name, ref, excelize.Options{RawCellValue: true})
	if err != nil {
		return Absent()
	}

	switch typ {
	case excelize.CellTypeError:
		return Absent()
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		if t := strings.TrimSpace(raw); t != "" {
			return String(t)
		}
		return Absent()
	case excelize.CellTypeBool:
		switch strings.ToUpper(strings.TrimSpace(raw)) {
		case "1", "TRUE":
			return Bool(true)
		case "0", "FALSE":
			return Bool(false)
		}
		return Absent()
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return Date(t)
		}
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			return Date(t)
		}
		return classify(raw)
	}

	// Numeric or untyped.
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Absent()
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return String(raw)
	}
	if styleID, err := f.GetCellStyle(s.name, ref); err == nil && s.wb.isDateStyle(styleID) {
		if t, err := excelize.ExcelDateToTime(n, s.wb.date1904); err == nil {
			return Date(t)
		}
	}
	return number(n)
}

// IsBlank reports whether a cell holds no usable value.
func (s *Sheet) IsBlank(row, col int) bool {
	return s.Cell(row, col).IsAbsent()
}

// CountRows counts populated data rows by scanning the anchor column from
// row 1 until the first blank cell.
func (s *Sheet) CountRows(anchorCol int) int {
	n := 0
	for !s.IsBlank(n+1, anchorCol) {
		n++
	}
	return n
}

// SetValue writes a raw value; used to build documents and fixtures.
func (s *Sheet) SetValue(row, col int, v any) error {
	ref, err := axis(row, col)
	if err != nil {
		return err
	}
	return s.wb.f.SetCellValue(s.name, ref, v)
}

// Annotate writes status text into a cell and applies the status style.
func (s *Sheet) Annotate(row, col int, st Status, text string) error {
	ref, err := axis(row, col)
	if err != nil {
		return err
	}
	if err := s.wb.f.SetCellStr(s.name, ref, text); err != nil {
		return fmt.Errorf("write %s!%s: %w", s.name, ref, err)
	}
	styleID, err := s.wb.style(st)
	if err != nil || styleID == 0 {
		return err
	}
	return s.wb.f.SetCellStyle(s.name, ref, ref, styleID)
}

// Reader reads cells with locale and date-format aware coercion.
type Reader struct {
	sheet  *Sheet
	locale Locale
	layout string
}

// NewReader returns a Reader. layout is a Go time layout, see DateLayout.
func NewReader(s *Sheet, locale Locale, layout string) *Reader {
	return &Reader{sheet: s, locale: locale, layout: layout}
}

func (r *Reader) Sheet() *Sheet { return r.sheet }

// Row returns a view of one row.
func (r *Reader) Row(index int) Row { return Row{r: r, Index: index} }

// Row is a read-only view of one sheet row.
type Row struct {
	r     *Reader
	Index int
}

func (w Row) Value(col int) Value { return w.r.sheet.Cell(w.Index, col) }

// Str returns the cell as display text, or "" when absent.
func (w Row) Str(col int) string {
	v := w.Value(col)
	switch v.Kind() {
	case KindString:
		return v.Text()
	case KindInt:
		return strconv.FormatInt(v.Integer(), 10)
	case KindFloat:
		return strconv.FormatFloat(v.Number(), 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Truth())
	case KindDate:
		return v.Time().Format(w.r.layout)
	}
	return ""
}

// Code returns the cell as an identifier. Numeric cells become integer text
// with the fraction truncated, so 6 reads as "6"; numeric-as-text such as
// "6.0" loses its trailing zero fraction. ok is false for numbers outside
// the int64 range.
func (w Row) Code(col int) (code string, ok bool) {
	v := w.Value(col)
	switch v.Kind() {
	case KindInt:
		return strconv.FormatInt(v.Integer(), 10), true
	case KindFloat:
		n, ok := truncate(v.Number())
		if !ok {
			return "", false
		}
		return strconv.FormatInt(n, 10), true
	case KindString:
		return trimZeroFraction(v.Text()), true
	}
	return w.Str(col), true
}

// truncate drops the fraction of f, failing when the result does not fit
// in an int64.
func truncate(f float64) (int64, bool) {
	if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func trimZeroFraction(s string) string {
	dot := strings.IndexByte(s, '.')
	if dot <= 0 || dot == len(s)-1 {
		return s
	}
	for _, c := range s[:dot] {
		if (c < '0' || c > '9') && c != '-' {
			return s
		}
	}
	if strings.Trim(s[dot+1:], "0") != "" {
		return s
	}
	return s[:dot]
}

// Int returns the cell as an integer.
func (w Row) Int(col int) (int64, bool) {
	v := w.Value(col)
	switch v.Kind() {
	case KindInt:
		return v.Integer(), true
	case KindFloat:
		return truncate(v.Number())
	case KindString:
		d, ok := w.r.parseDecimal(v.Text())
		if !ok || !d.Truncate(0).BigInt().IsInt64() {
			return 0, false
		}
		return d.IntPart(), true
	}
	return 0, false
}

// Decimal returns the cell as an exact decimal, honoring the locale's
// decimal separator for text cells.
func (w Row) Decimal(col int) (decimal.Decimal, bool) {
	v := w.Value(col)
	switch v.Kind() {
	case KindInt:
		return decimal.NewFromInt(v.Integer()), true
	case KindFloat:
		return decimal.NewFromFloat(v.Number()), true
	case KindString:
		return w.r.parseDecimal(v.Text())
	}
	return decimal.Decimal{}, false
}

func (r *Reader) parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "'", "").Replace(s)
	if r.locale.Decimal == ',' {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// Date returns the cell as a date. Numbers are Excel serial dates; text is
// parsed with the reader's layout, then ISO 8601.
func (w Row) Date(col int) (time.Time, bool) {
	v := w.Value(col)
	switch v.Kind() {
	case KindDate:
		return v.Time(), true
	case KindInt, KindFloat:
		n, _ := v.Numeric()
		t, err := excelize.ExcelDateToTime(n, w.r.sheet.wb.date1904)
		return t, err == nil
	case KindString:
		if w.r.layout != "" {
			if t, err := time.Parse(w.r.layout, v.Text()); err == nil {
				return t, true
			}
		}
		if t, err := time.Parse("2006-01-02", v.Text()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Bool returns the cell as a boolean. Text accepts true/false, yes/no, y/n, 1/0.
func (w Row) Bool(col int) (bool, bool) {
	v := w.Value(col)
	switch v.Kind() {
	case KindBool:
		return v.Truth(), true
	case KindInt:
		return v.Integer() != 0, true
	case KindString:
		switch strings.ToLower(v.Text()) {
		case "true", "yes", "y", "1":
			return true, true
		case "false", "no", "n", "0":
			return false, true
		}
	}
	return false, false
}
