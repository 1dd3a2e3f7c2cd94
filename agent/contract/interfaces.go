package contract

import (
	"context"

	guardrailx "github.com/tanpawarit/Chative-Trip-Planner/agent/guardrail"
)

type Specialist interface {
	Run(ctx context.Context, req SpecialistRequest) (SpecialistResponse, error)
}

type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, req IntentRequest) (IntentResponse, error)
}

// Registry hands out the model-backed collaborators of a turn.
type Registry interface {
	Classifier() guardrailx.Classifier
	Intent() IntentClassifier
	Specialist(agentType AgentType) (Specialist, bool)
}

type ToolGateway interface {
	Execute(ctx context.Context, agentType AgentType, reqs []ToolRequest) ([]ToolResult, error)
}
