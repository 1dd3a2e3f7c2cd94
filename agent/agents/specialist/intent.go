package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/samber/lo"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
)

// intentHistoryWindow is shorter than the specialist window; routing only
// needs the last exchange or two.
const intentHistoryWindow = 4

type intentClassifierImpl struct {
	runner compose.Runnable[map[string]any, intentLLMOutput]
}

type intentLLMOutput struct {
	Specialist string  `json:"specialist"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

var _ contractx.IntentClassifier = (*intentClassifierImpl)(nil)

func newIntentClassifier(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*intentClassifierImpl, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: prompt for agent=%s", contractx.ErrPromptMissing, contractx.AgentTypeIntent)
	}
	if chatModel == nil {
		return nil, fmt.Errorf("%w: intent model is nil", contractx.ErrValidation)
	}
	runner, err := compileIntentGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile intent graph: %v", contractx.ErrModelInvoke, err)
	}
	return &intentClassifierImpl{runner: runner}, nil
}

func (c *intentClassifierImpl) ClassifyIntent(ctx context.Context, req contractx.IntentRequest) (contractx.IntentResponse, error) {
	if strings.TrimSpace(req.UserMessage) == "" {
		return contractx.IntentResponse{}, fmt.Errorf("%w: user message is required", contractx.ErrValidation)
	}

	history := req.History
	if len(history) > intentHistoryWindow {
		history = history[len(history)-intentHistoryWindow:]
	}
	payload := map[string]any{
		"user_message": req.UserMessage,
		"last_agent":   string(req.LastAgent),
		"summary":      req.Summary,
		"history": lo.Map(history, func(m statex.Message, _ int) map[string]string {
			return map[string]string{"role": string(m.Role), "content": m.Content}
		}),
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return contractx.IntentResponse{}, fmt.Errorf("%w: marshal intent payload: %v", contractx.ErrValidation, err)
	}

	out, err := c.runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return contractx.IntentResponse{}, fmt.Errorf("%w: intent invoke: %v", contractx.ErrModelInvoke, err)
	}

	resp := contractx.IntentResponse{
		Specialist: contractx.AgentType(strings.ToLower(strings.TrimSpace(out.Specialist))),
		Confidence: out.Confidence,
		Reason:     strings.TrimSpace(out.Reason),
	}
	if err := validateIntentResponse(resp); err != nil {
		return contractx.IntentResponse{}, err
	}
	return resp, nil
}

func validateIntentResponse(resp contractx.IntentResponse) error {
	if resp.Specialist != "" && !resp.Specialist.IsSpecialist() {
		return fmt.Errorf("%w: unsupported specialist=%q", contractx.ErrSchemaViolation, resp.Specialist)
	}
	if math.IsNaN(resp.Confidence) || resp.Confidence < 0 || resp.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be within [0,1], got %v", contractx.ErrSchemaViolation, resp.Confidence)
	}
	return nil
}
