package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/tanpawarit/Chative-Trip-Planner/agent/nodes/orchestrator"
)

func (o *Orchestrator) compileHandleMessageGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now, o.location)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_or_create_state",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadOrCreateState(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_or_create_state: %w", err)
	}

	if err := graph.AddLambdaNode("classify_message",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ClassifyMessage(ctx, in, o.guardrail, o.models.Intent())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node classify_message: %w", err)
	}

	if err := graph.AddLambdaNode(nodex.NodeBlockedReply,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.BlockedReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node blocked_reply: %w", err)
	}

	if err := graph.AddLambdaNode(nodex.NodeDispatchSpecialist,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DispatchSpecialist(ctx, in, nodex.DispatchDeps{
				Registry:  o.models,
				Tools:     o.tools,
				Engine:    o.engine,
				MaxRounds: o.maxToolRounds,
			})
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch_specialist: %w", err)
	}

	if err := graph.AddLambdaNode("apply_turn",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ApplyTurn(in, o.maxHistory)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node apply_turn: %w", err)
	}

	if err := graph.AddLambdaNode("validate_and_save_state",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ValidateAndSaveState(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_and_save_state: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	branch := compose.NewGraphBranch(nodex.NextAfterClassify, map[string]bool{
		nodex.NodeBlockedReply:       true,
		nodex.NodeDispatchSpecialist: true,
	})
	if err := graph.AddBranch("classify_message", branch); err != nil {
		return nil, fmt.Errorf("add branch classify_message: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_or_create_state"},
		{"load_or_create_state", "classify_message"},
		{nodex.NodeBlockedReply, compose.END},
		{nodex.NodeDispatchSpecialist, "apply_turn"},
		{"apply_turn", "validate_and_save_state"},
		{"validate_and_save_state", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_message"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
