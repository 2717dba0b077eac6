package proposer

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
	llmx "github.com/tanpawarit/quote-assistant/agent/llm"
	promptx "github.com/tanpawarit/quote-assistant/agent/prompt"
	"github.com/tanpawarit/quote-assistant/agent/tool"
)

// Build wires the configured chat model, the embedded prompt with the catalog
// briefing, and the protocol's command schemas into a Proposer.
func Build(ctx context.Context, cfg llmx.Config, protocol *tool.Protocol, briefing string) (*Proposer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if protocol == nil {
		return nil, fmt.Errorf("%w: command protocol is required", contractx.ErrValidation)
	}

	modelCfg := cfg.OpenRouter()
	chatModel, err := modelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create proposer model: %v", contractx.ErrModelInvoke, err)
	}

	prompts := promptx.LoadPromptSet()
	return New(ctx, chatModel, prompts.ProposerWith(briefing), protocol.Infos())
}
