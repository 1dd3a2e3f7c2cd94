package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
)

// ApplyTurn records the exchange on the working record. maxHistory <= 0 keeps
// the whole history.
func ApplyTurn(in *GraphState, maxHistory int) (*GraphState, error) {
	if in == nil || in.Working == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}

	agent := string(in.Decision.Specialist)
	rec := in.Working
	if err := rec.AppendHistory(statex.Message{Role: statex.RoleUser, Content: in.Text, At: in.Now}, maxHistory); err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}
	if err := rec.AppendHistory(statex.Message{Role: statex.RoleAssistant, Content: in.Message, Agent: agent, At: in.Now}, maxHistory); err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}

	rec.LastAgent = agent
	rec.LastConflicts = append([]statex.Conflict(nil), in.Conflicts...)
	rec.Version++
	rec.Touch(in.Now)
	return in, nil
}
