// Package commands holds the core.CommandExecutor implementations.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// ErrNoTarget is returned for follow-up commands that name no resource.
var ErrNoTarget = errors.New("command has no target resource")

// PostgresExecutor journals each command in its own transaction. The
// journal's constraints stand in for the platform's integrity rules, and
// their violations come back as structured core.CommandErrors.
type PostgresExecutor struct {
	pool *pgxpool.Pool
}

func NewPostgresExecutor(pool *pgxpool.Pool) *PostgresExecutor {
	return &PostgresExecutor{pool: pool}
}

// createsResource reports whether an action produces a new resource rather
// than acting on an existing one.
func createsResource(a core.Action) bool {
	switch a {
	case core.ActionCreate, core.ActionRepay, core.ActionDeposit, core.ActionWithdraw:
		return true
	}
	return false
}

func (e *PostgresExecutor) Execute(ctx context.Context, cmd core.Command) (core.CommandResult, error) {
	var res core.CommandResult
	err := pgx.BeginFunc(ctx, e.pool, func(tx pgx.Tx) error {
		resourceID := cmd.Targets.ResourceID
		if createsResource(cmd.Action) {
			if err := tx.QueryRow(ctx, `SELECT nextval('resource_id_seq')`).Scan(&resourceID); err != nil {
				return err
			}
		} else if resourceID == 0 {
			return fmt.Errorf("%s %s: %w", cmd.Action, cmd.Entity, ErrNoTarget)
		}

		commandID := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO command_journal
				(command_id, entity_type, action, resource_id, office_id, client_id, account_no, external_id, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			commandID, string(cmd.Entity), string(cmd.Action), resourceID,
			nullID(cmd.Targets.OfficeID), nullID(cmd.Targets.ClientID),
			nullText(cmd.Targets.AccountNo), nullText(cmd.ExternalID), payloadOrEmpty(cmd.Payload),
		)
		if err != nil {
			return err
		}
		res = core.CommandResult{CommandID: commandID.String(), ResourceID: resourceID}
		return nil
	})
	if err != nil {
		return core.CommandResult{}, classify(err)
	}
	return res, nil
}

// Integrity SQLSTATEs outside class 23.
const (
	codeStringTooLong   = "22001"
	codeNumericOverflow = "22003"
)

// classify turns a driver error into a core.CommandError keyed by SQLSTATE.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return &core.CommandError{Kind: core.FailureRuntime, Err: err}
	}

	kind := core.FailureRuntime
	if strings.HasPrefix(pgErr.Code, "23") || pgErr.Code == codeStringTooLong || pgErr.Code == codeNumericOverflow {
		kind = core.FailureIntegrity
	}
	return &core.CommandError{
		Kind:       kind,
		Code:       pgErr.Code,
		Column:     columnLabel(pgErr),
		Constraint: pgErr.ConstraintName,
		Err:        err,
	}
}

// constraintLabels and columnLabels name journal constraints and columns
// the way the sheets do.
var constraintLabels = map[string]string{
	"command_journal_external_id_key": "External ID",
	"command_journal_resource_check":  "Resource",
}

var columnLabels = map[string]string{
	"external_id": "External ID",
	"account_no":  "Account No",
	"office_id":   "Office",
	"client_id":   "Client",
}

func columnLabel(pgErr *pgconn.PgError) string {
	if l, ok := constraintLabels[pgErr.ConstraintName]; ok {
		return l
	}
	if l, ok := columnLabels[pgErr.ColumnName]; ok {
		return l
	}
	return ""
}

func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func nullText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func payloadOrEmpty(p []byte) []byte {
	if len(p) == 0 {
		return []byte("{}")
	}
	return p
}
