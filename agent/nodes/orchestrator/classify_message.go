package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	guardrailx "github.com/tanpawarit/Chative-Trip-Planner/agent/guardrail"
	"github.com/tanpawarit/Chative-Trip-Planner/agent/router"
)

const (
	NodeBlockedReply       = "blocked_reply"
	NodeDispatchSpecialist = "dispatch_specialist"
)

// ClassifyMessage runs the guardrail on the raw text and routes the turn.
// Blocked messages never reach the intent classifier.
func ClassifyMessage(
	ctx context.Context,
	in *GraphState,
	pipeline *guardrailx.Pipeline,
	intents contractx.IntentClassifier,
) (*GraphState, error) {
	if in == nil || in.Working == nil {
		return nil, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}
	if pipeline == nil {
		return nil, fmt.Errorf("%w: guardrail pipeline is nil", contractx.ErrValidation)
	}

	in.Verdict = pipeline.Evaluate(ctx, in.SessionID, in.Text)
	if !in.Verdict.Blocked() {
		in.Intent = classifyIntent(ctx, in, intents)
	}
	in.Decision = router.Route(in.Verdict, in.Intent, in.Working)

	log.Debug().
		Str("session_id", in.SessionID).
		Str("decision", string(in.Verdict.Decision)).
		Str("category", string(in.Verdict.Category)).
		Str("intent_source", in.Intent.Source).
		Str("agent", string(in.Decision.Specialist)).
		Str("reason", in.Decision.Reason).
		Msg("turn_routed")
	return in, nil
}

// classifyIntent asks the model for the topic of the message and falls back
// to keyword detection when the model is missing or fails.
func classifyIntent(ctx context.Context, in *GraphState, intents contractx.IntentClassifier) router.Intent {
	if intents == nil {
		return router.DetectIntent(in.Text)
	}

	resp, err := intents.ClassifyIntent(ctx, contractx.IntentRequest{
		UserMessage: in.Text,
		LastAgent:   contractx.AgentType(in.Working.LastAgent),
		Summary:     in.Working.Summary,
		History:     in.Working.History,
	})
	if err != nil {
		log.Warn().
			Err(err).
			Str("session_id", in.SessionID).
			Msg("intent_fallback")
		return router.DetectIntent(in.Text)
	}
	return router.FromModel(resp)
}

// NextAfterClassify is the branch condition after classify_message.
func NextAfterClassify(_ context.Context, in *GraphState) (string, error) {
	if in == nil {
		return "", fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Decision.ShortCircuit {
		return NodeBlockedReply, nil
	}
	return NodeDispatchSpecialist, nil
}

// BlockedReply answers a blocked turn from the verdict alone. Nothing is
// persisted and the returned context is the stored one.
func BlockedReply(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Record == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}
	return GraphOutput{
		Reply:      in.Decision.Reply,
		Blocked:    true,
		LastAgent:  contractx.AgentTypeGuardrail,
		Snapshot:   in.Record.Snapshot(),
		Verdict:    in.Verdict,
		HistoryLen: in.Record.HistoryLength,
	}, nil
}
