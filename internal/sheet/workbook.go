// Package sheet wraps excelize workbooks for row-oriented imports.
//
// A Workbook is owned by one import run at a time and is not safe for
// concurrent use. Row and column indexes are zero-based; row 0 is the
// header row.
package sheet

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of serialized workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	ErrSheetNotFound   = errors.New("sheet not found")
	ErrInvalidWorkbook = errors.New("invalid workbook")
)

// Workbook is an in-memory spreadsheet document.
type Workbook struct {
	f        *excelize.File
	styler   Styler
	styles   map[Status]int
	dateFmt  map[int]bool
	date1904 bool
}

// Option configures a Workbook.
type Option func(*Workbook)

// WithStyler replaces the default status styling.
func WithStyler(s Styler) Option {
	return func(w *Workbook) { w.styler = s }
}

// Open decodes an xlsx document.
func Open(data []byte, opts ...Option) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	return wrap(f, opts...), nil
}

// New returns an empty workbook with a single default sheet.
func New(opts ...Option) *Workbook {
	return wrap(excelize.NewFile(), opts...)
}

func wrap(f *excelize.File, opts ...Option) *Workbook {
	w := &Workbook{
		f:       f,
		styler:  DefaultStyler{},
		styles:  make(map[Status]int),
		dateFmt: make(map[int]bool),
	}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		w.date1904 = *props.Date1904
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// File exposes the underlying excelize file.
func (w *Workbook) File() *excelize.File { return w.f }

// SheetNames lists sheets in workbook order.
func (w *Workbook) SheetNames() []string { return w.f.GetSheetList() }

// Sheet returns the named sheet or ErrSheetNotFound.
func (w *Workbook) Sheet(name string) (*Sheet, error) {
	idx, err := w.f.GetSheetIndex(name)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	return &Sheet{wb: w, name: name}, nil
}

// AddSheet creates a sheet, or returns the existing one with that name.
func (w *Workbook) AddSheet(name string) (*Sheet, error) {
	if s, err := w.Sheet(name); err == nil {
		return s, nil
	}
	if _, err := w.f.NewSheet(name); err != nil {
		return nil, fmt.Errorf("add sheet %q: %w", name, err)
	}
	return &Sheet{wb: w, name: name}, nil
}

// Bytes serializes the workbook, including any annotations.
func (w *Workbook) Bytes() ([]byte, error) {
	buf, err := w.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Close releases temporary files held by excelize.
func (w *Workbook) Close() error { return w.f.Close() }

func (w *Workbook) style(st Status) (int, error) {
	if id, ok := w.styles[st]; ok {
		return id, nil
	}
	def := w.styler.Style(st)
	if def == nil {
		return 0, nil
	}
	id, err := w.f.NewStyle(def)
	if err != nil {
		return 0, fmt.Errorf("create %s style: %w", st, err)
	}
	w.styles[st] = id
	return id, nil
}

// isDateStyle reports whether a cell style renders numbers as dates.
func (w *Workbook) isDateStyle(styleID int) bool {
	if styleID == 0 {
		return false
	}
	if v, ok := w.dateFmt[styleID]; ok {
		return v
	}
	st, err := w.f.GetStyle(styleID)
	v := err == nil && st != nil && isDateFormat(st.NumFmt, st.CustomNumFmt)
	w.dateFmt[styleID] = v
	return v
}

func isDateFormat(numFmt int, custom *string) bool {
	if custom != nil && *custom != "" {
		return customIsDate(*custom)
	}
	switch {
	case numFmt >= 14 && numFmt <= 22,
		numFmt >= 27 && numFmt <= 36,
		numFmt >= 45 && numFmt <= 47,
		numFmt >= 50 && numFmt <= 58:
		return true
	}
	return false
}

// customIsDate looks for date tokens outside quoted text and [] sections.
func customIsDate(code string) bool {
	inQuote, inBracket := false, false
	for _, c := range code {
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '[':
			inBracket = true
		case c == ']':
			inBracket = false
		case inBracket:
		case c == 'y', c == 'Y', c == 'd', c == 'D':
			return true
		}
	}
	return false
}
