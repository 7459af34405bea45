// Package entities holds the sheet layout, row parser and command builder
// of every importable entity type, and wires them into a core.Registry.
package entities

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// NewRegistry returns the registry with one handler per entity type.
func NewRegistry(d *core.Dispatcher) *core.Registry {
	return core.MustRegistry(map[core.EntityType]core.Handler{
		core.EntityOffices:             Offices(d),
		core.EntityStaff:               Staff(d),
		core.EntityClients:             Clients(d),
		core.EntityLoans:               Loans(d),
		core.EntityLoanRepayments:      LoanRepayments(d),
		core.EntitySavings:             Savings(d),
		core.EntitySavingsTransactions: SavingsTransactions(d),
	})
}

// fields is a command payload under construction. Unset optional values
// are left out.
type fields map[string]any

func (f fields) text(key, v string) {
	if v != "" {
		f[key] = v
	}
}

func (f fields) id(key string, id int64) {
	if id > 0 {
		f[key] = id
	}
}

func (f fields) amount(key string, d *decimal.Decimal) {
	if d != nil {
		f[key] = number(*d)
	}
}

// number writes d as a JSON number, so the platform never reads it with
// the job's decimal separator.
func number(d decimal.Decimal) json.Number { return json.Number(d.String()) }

func (f fields) number(key string, n *int64) {
	if n != nil {
		f[key] = *n
	}
}

func (f fields) date(bc *core.BuildContext, key string, t *time.Time) {
	if t != nil {
		f[key] = bc.FormatDate(t)
	}
}

// encode adds the locale and date format the platform needs to read the
// dates in the payload.
func (f fields) encode(bc *core.BuildContext) (json.RawMessage, error) {
	f["locale"] = bc.Options.Locale
	f["dateFormat"] = bc.DateFormat
	return json.Marshal(f)
}
