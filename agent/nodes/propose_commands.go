package assistantnode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
)

// ProposeCommands runs one proposer round. A streaming proposer has its
// complete invocations executed and applied while the response is still
// arriving; the session's applied-id set keeps re-observations harmless.
func ProposeCommands(
	ctx context.Context,
	in *GraphState,
	proposer contractx.Proposer,
	exec contractx.CommandExecutor,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	ctx = in.TurnContext(ctx)

	req := contractx.ProposerRequest{
		OperatorMessage: in.Text,
		Snapshot:        in.Session.Snapshot(),
		PriorResults:    in.RoundResults,
	}
	in.Round++
	in.RoundResults = nil
	in.Proposal = contractx.ProposerResponse{}

	var (
		resp contractx.ProposerResponse
		err  error
	)
	if sp, ok := proposer.(contractx.StreamingProposer); ok {
		resp, err = sp.Stream(ctx, req, func(invs []contractx.CommandInvocation) {
			in.RoundResults = append(in.RoundResults, in.Session.Observe(ctx, invs, exec)...)
		})
	} else {
		resp, err = proposer.Propose(ctx, req)
	}

	if ctx.Err() != nil {
		log.Info().Str("session_id", in.SessionID).Int("round", in.Round).Msg("turn cancelled by operator")
		in.Cancelled = true
		return in, nil
	}
	if err != nil {
		return nil, err
	}

	in.Proposal = resp
	return in, nil
}
