package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
)

// ValidateAndSaveState is the single commit point of a turn. A cancelled
// turn is dropped without writing.
func ValidateAndSaveState(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil || in.Working == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	if err := in.Working.Validate(); err != nil {
		return nil, fmt.Errorf("state validation failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.Save(ctx, in.Working); err != nil {
		return nil, err
	}
	return in, nil
}
