package assistant

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/tanpawarit/quote-assistant/agent/nodes"
)

func (a *Assistant) compileHandleMessageGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, a.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_or_create_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadOrCreateSession(ctx, in, a.store, a.taxRate, a.sessionOpts...)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_or_create_session: %w", err)
	}

	if err := graph.AddLambdaNode("propose_commands",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ProposeCommands(ctx, in, a.proposer, a.exec)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node propose_commands: %w", err)
	}

	if err := graph.AddLambdaNode("apply_commands",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ApplyCommands(ctx, in, a.exec)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node apply_commands: %w", err)
	}

	if err := graph.AddLambdaNode("save_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.SaveSession(ctx, in, a.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node save_session: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_or_create_session"},
		{"load_or_create_session", "propose_commands"},
		{"propose_commands", "apply_commands"},
		{"save_session", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	followUp := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			if nodex.NeedsFollowUp(in, a.maxRounds) {
				return "propose_commands", nil
			}
			return "save_session", nil
		},
		map[string]bool{"propose_commands": true, "save_session": true},
	)
	if err := graph.AddBranch("apply_commands", followUp); err != nil {
		return nil, fmt.Errorf("add branch apply_commands: %w", err)
	}

	runner, err := graph.Compile(ctx,
		compose.WithGraphName("assistant.handle_message"),
		compose.WithMaxRunSteps(6+2*a.maxRounds),
	)
	if err != nil {
		return nil, fmt.Errorf("compile assistant graph: %w", err)
	}
	return runner, nil
}
