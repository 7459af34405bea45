package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// BuildFunc turns a validated record into the commands that import it.
type BuildFunc func() ([]Command, error)

// Dispatcher validates records and submits their commands, one row at a
// time. A failure is reported in the RowResult and never returned as an
// error, so one bad row cannot stop a run.
type Dispatcher struct {
	executor CommandExecutor
	validate *validator.Validate
	timeout  time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithCommandTimeout bounds each Execute call. A command that runs out of
// time fails its own row only.
func WithCommandTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) { disp.timeout = d }
}

// NewDispatcher returns a Dispatcher over exec. Record fields are validated
// from their `validate` tags and reported by their `label` tags.
func NewDispatcher(exec CommandExecutor, opts ...DispatcherOption) *Dispatcher {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if label := f.Tag.Get("label"); label != "" {
			return label
		}
		return f.Name
	})
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	d := &Dispatcher{executor: exec, validate: v}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// decimalValue lets numeric rules such as gt=0 apply to decimal fields.
func decimalValue(v reflect.Value) any {
	d, ok := v.Interface().(decimal.Decimal)
	if !ok {
		return nil
	}
	f, _ := d.Float64()
	return f
}

// Submit validates rec, builds its commands and executes them in order.
// Chained commands receive the resource ID produced by the previous one.
func (d *Dispatcher) Submit(ctx context.Context, rec RowRecord, build BuildFunc) RowResult {
	res := RowResult{RowIndex: rec.Row()}

	if err := d.check(rec); err != nil {
		return failed(res, FailureValidation, err)
	}

	cmds, err := build()
	if err != nil {
		return failed(res, buildFailureKind(err), err)
	}
	if len(cmds) == 0 {
		return failed(res, FailureRuntime, errors.New("row produced no commands"))
	}

	var prev CommandResult
	for i, cmd := range cmds {
		if cmd.Chain {
			if i == 0 {
				return failed(res, FailureRuntime, fmt.Errorf("%s %s: chained command has no predecessor", cmd.Action, cmd.Entity))
			}
			cmd.Targets.ResourceID = prev.ResourceID
		}

		out, err := d.execute(ctx, cmd)
		if err != nil {
			kind := FailureRuntime
			var ce *CommandError
			if errors.As(err, &ce) && ce.Kind != 0 {
				kind = ce.Kind
			}
			return failed(res, kind, fmt.Errorf("%s %s: %w", cmd.Action, cmd.Entity, err))
		}
		if i == 0 {
			res.ResourceID = out.ResourceID
		}
		prev = out
	}

	res.Status = RowImported
	return res
}

func (d *Dispatcher) execute(ctx context.Context, cmd Command) (CommandResult, error) {
	if d.timeout <= 0 {
		return d.executor.Execute(ctx, cmd)
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.executor.Execute(ctx, cmd)
}

// unreadable is implemented by records that embed RowRef.
type unreadable interface {
	UnreadableCells() []string
}

// check reports unreadable cells first, then failed validate rules on the
// remaining fields.
func (d *Dispatcher) check(rec RowRecord) error {
	ve := &ValidationError{}
	seen := make(map[string]bool)
	if u, ok := rec.(unreadable); ok {
		for _, label := range u.UnreadableCells() {
			seen[label] = true
			ve.Problems = append(ve.Problems, FieldProblem{Label: label, Rule: "invalid"})
		}
	}

	err := d.validate.Struct(rec)
	var verrs validator.ValidationErrors
	switch {
	case err == nil:
	case errors.As(err, &verrs):
		for _, fe := range verrs {
			if seen[fe.Field()] {
				continue
			}
			ve.Problems = append(ve.Problems, FieldProblem{Label: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
		}
	default:
		return err
	}

	if len(ve.Problems) == 0 {
		return nil
	}
	return ve
}

func buildFailureKind(err error) FailureKind {
	var ve *ValidationError
	var le *LookupError
	if errors.As(err, &ve) || errors.As(err, &le) {
		return FailureValidation
	}
	return FailureRuntime
}

func failed(res RowResult, kind FailureKind, err error) RowResult {
	res.Status = RowFailed
	res.Kind = kind
	res.Err = err
	res.Message = FormatUserError(err)
	return res
}
