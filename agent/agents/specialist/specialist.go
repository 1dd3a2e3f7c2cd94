package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/samber/lo"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
	statex "github.com/tanpawarit/Chative-Trip-Planner/agent/state"
	toolx "github.com/tanpawarit/Chative-Trip-Planner/agent/tool"
)

// historyWindow bounds how many past messages are shown to the model.
const historyWindow = 12

type specialistImpl struct {
	agentType     contractx.AgentType
	toolRunner    compose.Runnable[map[string]any, *schema.Message]
	runtimeRunner compose.Runnable[contractx.SpecialistRequest, contractx.SpecialistResponse]
	allowedTools  map[string]struct{}
}

var _ contractx.Specialist = (*specialistImpl)(nil)

func newSpecialist(
	ctx context.Context,
	agentType contractx.AgentType,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
) (*specialistImpl, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: prompt for agent=%s", contractx.ErrPromptMissing, agentType)
	}

	tools := toolx.InfosFor(agentType)
	toolModel, err := chatModel.WithTools(tools)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools for specialist=%s: %v", contractx.ErrModelInvoke, agentType, err)
	}
	toolRunner, err := compileToolCallingGraph(ctx, toolModel, systemPrompt, "specialist."+string(agentType)+".model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile tool calling graph: %v", contractx.ErrModelInvoke, err)
	}

	allowedTools := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t == nil || strings.TrimSpace(t.Name) == "" {
			continue
		}
		allowedTools[t.Name] = struct{}{}
	}

	spec := &specialistImpl{
		agentType:    agentType,
		toolRunner:   toolRunner,
		allowedTools: allowedTools,
	}

	runtimeRunner, err := compileSpecialistRuntimeGraph(ctx, agentType, spec.runModel)
	if err != nil {
		return nil, fmt.Errorf("%w: compile specialist runtime graph: %v", contractx.ErrModelInvoke, err)
	}
	spec.runtimeRunner = runtimeRunner

	return spec, nil
}

func (s *specialistImpl) Run(ctx context.Context, req contractx.SpecialistRequest) (contractx.SpecialistResponse, error) {
	out, err := s.runtimeRunner.Invoke(ctx, req)
	if err != nil {
		return contractx.SpecialistResponse{}, err
	}
	return out, nil
}

func (s *specialistImpl) runModel(ctx context.Context, req contractx.SpecialistRequest, mode string) (contractx.SpecialistResponse, error) {
	input, err := json.Marshal(buildPayload(req, mode))
	if err != nil {
		return contractx.SpecialistResponse{}, fmt.Errorf("%w: marshal specialist payload: %v", contractx.ErrValidation, err)
	}

	msg, err := s.toolRunner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return contractx.SpecialistResponse{}, fmt.Errorf("%w: specialist=%s invoke: %v", contractx.ErrModelInvoke, s.agentType, err)
	}
	if msg == nil {
		return contractx.SpecialistResponse{}, fmt.Errorf("%w: empty specialist response", contractx.ErrSchemaViolation)
	}

	calls, err := toToolRequests(msg.ToolCalls)
	if err != nil {
		return contractx.SpecialistResponse{}, err
	}
	for _, tr := range calls {
		if _, ok := s.allowedTools[tr.Tool]; !ok {
			return contractx.SpecialistResponse{}, fmt.Errorf("%w: tool=%s is not allowed for agent=%s", contractx.ErrSchemaViolation, tr.Tool, s.agentType)
		}
	}

	resp := contractx.SpecialistResponse{Message: strings.TrimSpace(msg.Content)}
	for _, tr := range calls {
		if toolx.IsStateTool(tr.Tool) {
			resp.Updates = append(resp.Updates, tr)
		} else {
			resp.ToolRequests = append(resp.ToolRequests, tr)
		}
	}

	if resp.Message == "" && len(calls) == 0 {
		return contractx.SpecialistResponse{}, fmt.Errorf("%w: specialist=%s returned neither a message nor a tool call", contractx.ErrSchemaViolation, s.agentType)
	}
	return resp, nil
}

func buildPayload(req contractx.SpecialistRequest, mode string) map[string]any {
	history := req.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	payload := map[string]any{
		"mode":         mode,
		"today":        req.Today.String(),
		"user_message": req.UserMessage,
		"summary":      req.Summary,
		"itinerary":    req.Itinerary,
		"history": lo.Map(history, func(m statex.Message, _ int) map[string]string {
			return map[string]string{"role": string(m.Role), "content": m.Content}
		}),
		"missing":        lo.Ternary(req.Missing == nil, []string{}, req.Missing),
		"last_conflicts": lo.Ternary(req.LastConflicts == nil, []statex.Conflict{}, req.LastConflicts),
	}
	if req.Guidance != "" {
		payload["guidance"] = req.Guidance
	}
	if len(req.ToolResults) > 0 {
		payload["tool_results"] = req.ToolResults
	}
	return payload
}

func toToolRequests(calls []schema.ToolCall) ([]contractx.ToolRequest, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	reqs := make([]contractx.ToolRequest, 0, len(calls))
	for _, call := range calls {
		tool := strings.TrimSpace(call.Function.Name)
		if tool == "" {
			return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}

		args := map[string]any{}
		rawArgs := strings.TrimSpace(call.Function.Arguments)
		if rawArgs != "" {
			if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
				return nil, fmt.Errorf("%w: invalid tool args for tool=%s: %v", contractx.ErrSchemaViolation, tool, err)
			}
		}

		reqs = append(reqs, contractx.ToolRequest{
			Tool: tool,
			Args: args,
		})
	}
	return reqs, nil
}
