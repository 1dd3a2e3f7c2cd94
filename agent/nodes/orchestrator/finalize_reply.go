package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Working == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Message)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: specialist returned empty message", contractx.ErrValidation)
	}
	return GraphOutput{
		Reply:      reply,
		LastAgent:  in.Decision.Specialist,
		Conflicts:  in.Conflicts,
		Snapshot:   in.Working.Snapshot(),
		Verdict:    in.Verdict,
		Persisted:  true,
		HistoryLen: in.Working.HistoryLength,
	}, nil
}
