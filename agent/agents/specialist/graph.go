package specialist

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Trip-Planner/agent/contract"
)

const (
	modeAct     = "act"
	modeObserve = "observe"
)

func compileToolCallingGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add tool calling prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add tool calling model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add tool calling edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add tool calling edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add tool calling edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile tool calling graph: %w", err)
	}
	return runner, nil
}

type specialistGraphState struct {
	Req  contractx.SpecialistRequest
	Mode string
}

// compileSpecialistRuntimeGraph routes a request to the act path on the first
// round of a turn and to the observe path once tool results are available.
func compileSpecialistRuntimeGraph(
	ctx context.Context,
	agentType contractx.AgentType,
	flow func(context.Context, contractx.SpecialistRequest, string) (contractx.SpecialistResponse, error),
) (compose.Runnable[contractx.SpecialistRequest, contractx.SpecialistResponse], error) {
	graph := compose.NewGraph[contractx.SpecialistRequest, contractx.SpecialistResponse]()

	if err := graph.AddLambdaNode("validate_and_prepare",
		compose.InvokableLambda(func(ctx context.Context, req contractx.SpecialistRequest) (*specialistGraphState, error) {
			if strings.TrimSpace(req.UserMessage) == "" {
				return nil, fmt.Errorf("%w: user message is required", contractx.ErrValidation)
			}
			if req.Specialist != "" && req.Specialist != agentType {
				return nil, fmt.Errorf("%w: request for %s sent to %s", contractx.ErrValidation, req.Specialist, agentType)
			}

			mode := modeAct
			if len(req.ToolResults) > 0 {
				mode = modeObserve
			}
			return &specialistGraphState{Req: req, Mode: mode}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add specialist runtime validate node: %w", err)
	}

	for _, mode := range []string{modeAct, modeObserve} {
		mode := mode
		if err := graph.AddLambdaNode(mode+"_path",
			compose.InvokableLambda(func(ctx context.Context, in *specialistGraphState) (contractx.SpecialistResponse, error) {
				if in == nil {
					return contractx.SpecialistResponse{}, fmt.Errorf("%w: specialist graph state is nil", contractx.ErrValidation)
				}
				return flow(ctx, in.Req, mode)
			}),
		); err != nil {
			return nil, fmt.Errorf("add specialist runtime %s node: %w", mode, err)
		}
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *specialistGraphState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: specialist graph state is nil", contractx.ErrValidation)
			}
			return in.Mode + "_path", nil
		},
		map[string]bool{
			modeAct + "_path":     true,
			modeObserve + "_path": true,
		},
	)

	if err := graph.AddBranch("validate_and_prepare", branch); err != nil {
		return nil, fmt.Errorf("add specialist runtime branch: %w", err)
	}
	if err := graph.AddEdge(compose.START, "validate_and_prepare"); err != nil {
		return nil, fmt.Errorf("add specialist runtime edge start->validate: %w", err)
	}
	if err := graph.AddEdge(modeAct+"_path", compose.END); err != nil {
		return nil, fmt.Errorf("add specialist runtime edge act->end: %w", err)
	}
	if err := graph.AddEdge(modeObserve+"_path", compose.END); err != nil {
		return nil, fmt.Errorf("add specialist runtime edge observe->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("specialist."+string(agentType)+".runtime_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile specialist runtime graph: %w", err)
	}
	return runner, nil
}

func compileIntentGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, intentLLMOutput], error) {
	runner, err := compileStructuredLLMGraph[intentLLMOutput](ctx, chatModel, systemPrompt, "intent.model_graph")
	if err != nil {
		return nil, fmt.Errorf("compile intent graph: %w", err)
	}
	return runner, nil
}

// compileStructuredLLMGraph chains prompt, model and a JSON parser over the
// reply content.
func compileStructuredLLMGraph[T any](
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, T], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	parser := schema.NewMessageJSONParser[T](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, T]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add structured prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add structured model node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("add structured parser node: %w", err)
	}

	edges := [][2]string{
		{compose.START, "prompt"},
		{"prompt", "model"},
		{"model", "parse_json"},
		{"parse_json", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add structured edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile structured graph: %w", err)
	}
	return runner, nil
}
