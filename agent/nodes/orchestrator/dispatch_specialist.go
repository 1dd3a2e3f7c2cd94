package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	"github.com/tanpawarit/Chative-Trip-Planner/agent/merge"
	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
)

// FallbackReply is used when a specialist only updated the context and never
// produced text of its own.
const FallbackReply = "Got it, I've updated your trip."

type DispatchDeps struct {
	Registry  contractx.Registry
	Tools     contractx.ToolGateway
	Engine    *merge.Engine
	MaxRounds int
}

// DispatchSpecialist runs the routed specialist. Context updates are merged
// into Working as they arrive so later rounds see them; action tools are run
// through the gateway and their results fed back in observe mode.
func DispatchSpecialist(ctx context.Context, in *GraphState, deps DispatchDeps) (*GraphState, error) {
	if in == nil || in.Working == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}
	if deps.Registry == nil || deps.Tools == nil || deps.Engine == nil {
		return nil, fmt.Errorf("%w: dispatch dependencies are incomplete", contractx.ErrValidation)
	}

	agentType := in.Decision.Specialist
	spec, ok := deps.Registry.Specialist(agentType)
	if !ok || spec == nil {
		return nil, fmt.Errorf("%w: no specialist for agent=%s", contractx.ErrValidation, agentType)
	}

	maxRounds := deps.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 1
	}

	req := contractx.SpecialistRequest{
		UserMessage:   in.Text,
		Specialist:    agentType,
		History:       append([]statex.Message(nil), in.Working.History...),
		Missing:       in.Decision.Missing,
		Guidance:      in.Decision.Guidance,
		LastConflicts: append([]statex.Conflict(nil), in.Working.LastConflicts...),
		Today:         in.Today,
	}

	var message string
	for round := 0; round < maxRounds; round++ {
		req.Summary = in.Working.Summary.Clone()
		req.Itinerary = in.Working.Itinerary.Clone()

		resp, err := spec.Run(ctx, req)
		if err != nil {
			return nil, err
		}
		message = resp.Message

		results := make([]contractx.ToolResult, 0, len(resp.Updates)+len(resp.ToolRequests))
		for _, upd := range resp.Updates {
			results = append(results, applyUpdate(in, deps.Engine, upd))
		}
		if len(resp.ToolRequests) > 0 {
			out, err := deps.Tools.Execute(ctx, agentType, resp.ToolRequests)
			if err != nil {
				return nil, err
			}
			results = append(results, out...)
		}

		observe := len(resp.ToolRequests) > 0 || (message == "" && len(resp.Updates) > 0)
		if !observe {
			break
		}
		req.ToolResults = results
	}

	if message == "" {
		if in.Applied == 0 {
			return nil, fmt.Errorf("%w: specialist=%s gave no reply within %d rounds", contractx.ErrSchemaViolation, agentType, maxRounds)
		}
		message = FallbackReply
	}

	in.Message = message
	if len(in.Conflicts) > 0 {
		log.Info().
			Str("session_id", in.SessionID).
			Str("agent", string(agentType)).
			Int("conflicts", len(in.Conflicts)).
			Msg("merge_conflicts_reported")
	}
	return in, nil
}

type updateResult struct {
	Applied   bool              `json:"applied"`
	Conflicts []statex.Conflict `json:"conflicts"`
}

// applyUpdate merges one state tool call into Working. A malformed patch is
// not fatal to the turn: it is reported as a conflict and shown to the model.
func applyUpdate(in *GraphState, engine *merge.Engine, upd contractx.ToolRequest) contractx.ToolResult {
	patch, err := merge.DecodeToolCall(upd.Tool, upd.Args)
	if err == nil {
		var res merge.Result
		res, err = engine.Merge(in.Working, patch, in.Today)
		if err == nil {
			in.Working = res.Record
			in.Conflicts = append(in.Conflicts, res.Conflicts...)
			if patch.Kind() != merge.KindNoOp {
				in.Applied++
			}
			return contractx.ToolResult{
				Tool:   upd.Tool,
				Result: updateResult{Applied: true, Conflicts: nonNil(res.Conflicts)},
			}
		}
	}

	conflict := statex.Conflict{
		Field:   upd.Tool,
		Code:    merge.CodeInvalidPatch,
		Message: err.Error(),
	}
	in.Conflicts = append(in.Conflicts, conflict)
	return contractx.ToolResult{
		Tool:   upd.Tool,
		Result: updateResult{Applied: false, Conflicts: []statex.Conflict{conflict}},
		Error:  err.Error(),
	}
}

func nonNil(c []statex.Conflict) []statex.Conflict {
	if c == nil {
		return []statex.Conflict{}
	}
	return c
}
