package core

import (
	"strconv"
	"strings"

	"github.com/JonMunkholm/ledgerimport/internal/sheet"
)

// LookupKind names a reference sheet that maps display names to IDs.
type LookupKind int

const (
	LookupOffice LookupKind = iota + 1
	LookupStaff
	LookupClient
	LookupLoanProduct
	LookupSavingsProduct
	LookupPaymentType
)

var lookupKinds = []LookupKind{
	LookupOffice, LookupStaff, LookupClient,
	LookupLoanProduct, LookupSavingsProduct, LookupPaymentType,
}

// SheetName is the reference sheet for k. Column A holds names, column B IDs.
func (k LookupKind) SheetName() string {
	switch k {
	case LookupOffice:
		return "OfficeLookup"
	case LookupStaff:
		return "StaffLookup"
	case LookupClient:
		return "ClientLookup"
	case LookupLoanProduct:
		return "LoanProductLookup"
	case LookupSavingsProduct:
		return "SavingsProductLookup"
	case LookupPaymentType:
		return "PaymentTypeLookup"
	}
	return ""
}

func (k LookupKind) noun() string {
	switch k {
	case LookupOffice:
		return "office"
	case LookupStaff:
		return "staff member"
	case LookupClient:
		return "client"
	case LookupLoanProduct:
		return "loan product"
	case LookupSavingsProduct:
		return "savings product"
	case LookupPaymentType:
		return "payment type"
	}
	return "reference"
}

// Lookups resolves names found in entity sheets to platform IDs.
type Lookups struct {
	ids map[LookupKind]map[string]int64
}

// LoadLookups reads every reference sheet present in wb. Missing sheets are
// fine; names that need them simply fail to resolve.
func LoadLookups(wb *sheet.Workbook) *Lookups {
	l := &Lookups{ids: make(map[LookupKind]map[string]int64)}
	loc, _ := sheet.ParseLocale("en")

	for _, kind := range lookupKinds {
		s, err := wb.Sheet(kind.SheetName())
		if err != nil {
			continue
		}
		r := sheet.NewReader(s, loc, "")
		names := make(map[string]int64)
		for i := 1; i <= s.CountRows(0); i++ {
			row := r.Row(i)
			id, ok := row.Int(1)
			if !ok {
				continue
			}
			names[normalizeName(row.Str(0))] = id
		}
		l.ids[kind] = names
	}
	return l
}

// Add registers a name; used when building lookups without a workbook.
func (l *Lookups) Add(kind LookupKind, name string, id int64) {
	if l.ids == nil {
		l.ids = make(map[LookupKind]map[string]int64)
	}
	if l.ids[kind] == nil {
		l.ids[kind] = make(map[string]int64)
	}
	l.ids[kind][normalizeName(name)] = id
}

// Resolve turns a reference cell into an ID. Blank references resolve to 0,
// numeric references are IDs already, names go through the lookup sheet.
func (l *Lookups) Resolve(kind LookupKind, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, nil
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	if id, ok := l.ids[kind][normalizeName(ref)]; ok {
		return id, nil
	}
	return 0, &LookupError{Kind: kind, Name: ref}
}

// Require is Resolve for mandatory references.
func (l *Lookups) Require(kind LookupKind, label, ref string) (int64, error) {
	if strings.TrimSpace(ref) == "" {
		return 0, Invalid(label, "required", "")
	}
	return l.Resolve(kind, ref)
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
