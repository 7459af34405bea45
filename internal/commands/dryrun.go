package commands

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// DryRunExecutor accepts every command without writing anything. Resource
// IDs are assigned from a counter so chained commands behave as they would
// against a real platform.
type DryRunExecutor struct {
	logger *slog.Logger
	nextID atomic.Int64
	count  atomic.Int64
}

func NewDryRunExecutor(logger *slog.Logger) *DryRunExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunExecutor{logger: logger}
}

func (e *DryRunExecutor) Execute(ctx context.Context, cmd core.Command) (core.CommandResult, error) {
	if err := ctx.Err(); err != nil {
		return core.CommandResult{}, &core.CommandError{Kind: core.FailureRuntime, Err: err}
	}
	e.count.Add(1)
	id := cmd.Targets.ResourceID
	if createsResource(cmd.Action) {
		id = e.nextID.Add(1)
	} else if id == 0 {
		return core.CommandResult{}, &core.CommandError{Kind: core.FailureRuntime, Err: ErrNoTarget}
	}

	e.logger.DebugContext(ctx, "dry run command",
		"entity", cmd.Entity,
		"action", cmd.Action,
		"resource_id", id,
		"external_id", cmd.ExternalID,
	)
	return core.CommandResult{CommandID: uuid.NewString(), ResourceID: id}, nil
}

// Count returns how many commands were submitted.
func (e *DryRunExecutor) Count() int64 { return e.count.Load() }
