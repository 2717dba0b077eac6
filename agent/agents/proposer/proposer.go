package proposer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
)

// Proposer asks a tool-bound chat model for command invocations. The model
// only sees the command schemas; it never computes prices.
type Proposer struct {
	runner       compose.Runnable[map[string]any, *schema.Message]
	systemPrompt string
	allowed      map[string]struct{}
	newCallID    func() string
}

var _ contractx.StreamingProposer = (*Proposer)(nil)

func New(
	ctx context.Context,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	tools []*schema.ToolInfo,
) (*Proposer, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, contractx.ErrPromptMissing
	}

	toolModel, err := chatModel.WithTools(tools)
	if err != nil {
		return nil, fmt.Errorf("%w: bind command tools: %v", contractx.ErrModelInvoke, err)
	}
	runner, err := compileProposalGraph(ctx, toolModel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}

	allowed := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t == nil || strings.TrimSpace(t.Name) == "" {
			continue
		}
		allowed[t.Name] = struct{}{}
	}

	return &Proposer{
		runner:       runner,
		systemPrompt: systemPrompt,
		allowed:      allowed,
		newCallID:    func() string { return "call_" + uuid.NewString() },
	}, nil
}

func (p *Proposer) Propose(ctx context.Context, req contractx.ProposerRequest) (contractx.ProposerResponse, error) {
	input, err := p.input(req)
	if err != nil {
		return contractx.ProposerResponse{}, err
	}

	msg, err := p.runner.Invoke(ctx, input)
	if err != nil {
		return contractx.ProposerResponse{}, fmt.Errorf("%w: proposer invoke: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil {
		return contractx.ProposerResponse{}, fmt.Errorf("%w: empty proposer response", contractx.ErrSchemaViolation)
	}
	return p.response(msg)
}

// Stream reads the model response chunk by chunk. After every chunk the
// chunks so far are merged and observe receives every invocation whose
// arguments are already complete, so the same invocation is seen many times.
func (p *Proposer) Stream(
	ctx context.Context,
	req contractx.ProposerRequest,
	observe func([]contractx.CommandInvocation),
) (contractx.ProposerResponse, error) {
	input, err := p.input(req)
	if err != nil {
		return contractx.ProposerResponse{}, err
	}

	reader, err := p.runner.Stream(ctx, input)
	if err != nil {
		return contractx.ProposerResponse{}, fmt.Errorf("%w: proposer stream: %v", contractx.ErrModelInvoke, err)
	}
	defer reader.Close()

	ids := make(map[int]string, 4)
	var chunks []*schema.Message
	for {
		if err := ctx.Err(); err != nil {
			return contractx.ProposerResponse{}, err
		}
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return contractx.ProposerResponse{}, fmt.Errorf("%w: proposer stream recv: %v", contractx.ErrModelInvoke, err)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)

		merged, err := schema.ConcatMessages(chunks)
		if err != nil {
			return contractx.ProposerResponse{}, fmt.Errorf("%w: merge stream chunks: %v", contractx.ErrSchemaViolation, err)
		}
		if observe != nil {
			if ready := p.completeInvocations(merged.ToolCalls, ids); len(ready) > 0 {
				observe(ready)
			}
		}
	}

	if len(chunks) == 0 {
		return contractx.ProposerResponse{}, fmt.Errorf("%w: empty proposer stream", contractx.ErrSchemaViolation)
	}
	merged, err := schema.ConcatMessages(chunks)
	if err != nil {
		return contractx.ProposerResponse{}, fmt.Errorf("%w: merge stream chunks: %v", contractx.ErrSchemaViolation, err)
	}
	assignIDs(merged.ToolCalls, ids, p.newCallID)
	return p.response(merged)
}

func (p *Proposer) input(req contractx.ProposerRequest) (map[string]any, error) {
	if strings.TrimSpace(req.OperatorMessage) == "" && len(req.PriorResults) == 0 {
		return nil, fmt.Errorf("%w: operator message is required", contractx.ErrValidation)
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal proposer payload: %v", contractx.ErrValidation, err)
	}
	return map[string]any{
		"system": p.systemPrompt,
		"input":  string(raw),
	}, nil
}

func (p *Proposer) response(msg *schema.Message) (contractx.ProposerResponse, error) {
	calls := msg.ToolCalls
	for i := range calls {
		if strings.TrimSpace(calls[i].ID) == "" {
			calls[i].ID = p.newCallID()
		}
	}
	invs, err := toInvocations(calls)
	if err != nil {
		return contractx.ProposerResponse{}, err
	}
	for _, inv := range invs {
		if _, ok := p.allowed[inv.Command]; !ok {
			return contractx.ProposerResponse{}, fmt.Errorf("%w: command=%s is not in the vocabulary", contractx.ErrSchemaViolation, inv.Command)
		}
	}

	message := strings.TrimSpace(msg.Content)
	if message == "" && len(invs) == 0 {
		return contractx.ProposerResponse{}, fmt.Errorf("%w: response has neither message nor commands", contractx.ErrSchemaViolation)
	}
	log.Debug().Int("invocations", len(invs)).Msg("proposal received")
	return contractx.ProposerResponse{
		Message:     message,
		Invocations: invs,
	}, nil
}

// completeInvocations is lenient: calls whose arguments are still partial or
// whose name is outside the vocabulary are skipped here and reported by the
// final strict pass instead.
func (p *Proposer) completeInvocations(calls []schema.ToolCall, ids map[int]string) []contractx.CommandInvocation {
	var out []contractx.CommandInvocation
	for i, call := range calls {
		name := strings.TrimSpace(call.Function.Name)
		if _, ok := p.allowed[name]; !ok {
			continue
		}
		args := map[string]any{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(call.Function.Arguments)), &args); err != nil {
			continue
		}
		out = append(out, contractx.CommandInvocation{
			ID:      pinID(call, i, ids, p.newCallID),
			Command: name,
			Args:    args,
		})
	}
	return out
}

// Streaming providers do not always send call ids. Once a call has been
// observed its id is pinned by position, so re-observations keep it.
func pinID(call schema.ToolCall, i int, ids map[int]string, newID func() string) string {
	pos := i
	if call.Index != nil {
		pos = *call.Index
	}
	if id, ok := ids[pos]; ok {
		return id
	}
	id := strings.TrimSpace(call.ID)
	if id == "" {
		id = newID()
	}
	ids[pos] = id
	return id
}

func assignIDs(calls []schema.ToolCall, ids map[int]string, newID func() string) {
	for i := range calls {
		calls[i].ID = pinID(calls[i], i, ids, newID)
	}
}

func toInvocations(calls []schema.ToolCall) ([]contractx.CommandInvocation, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	invs := make([]contractx.CommandInvocation, 0, len(calls))
	for _, call := range calls {
		name := strings.TrimSpace(call.Function.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}

		args := map[string]any{}
		rawArgs := strings.TrimSpace(call.Function.Arguments)
		if rawArgs != "" {
			if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
				return nil, fmt.Errorf("%w: invalid arguments for command=%s: %v", contractx.ErrSchemaViolation, name, err)
			}
		}

		invs = append(invs, contractx.CommandInvocation{
			ID:      call.ID,
			Command: name,
			Args:    args,
		})
	}
	return invs, nil
}
