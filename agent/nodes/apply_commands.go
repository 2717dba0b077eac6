package assistantnode

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
)

// ApplyCommands executes and applies the round's invocations in order.
// Invocations already applied while streaming are skipped by id.
func ApplyCommands(
	ctx context.Context,
	in *GraphState,
	exec contractx.CommandExecutor,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	ctx = in.TurnContext(ctx)
	if !in.Cancelled {
		in.RoundResults = append(in.RoundResults, in.Session.Observe(ctx, in.Proposal.Invocations, exec)...)
		if ctx.Err() != nil {
			in.Cancelled = true
		}
	}

	in.Results = append(in.Results, in.RoundResults...)
	if msg := strings.TrimSpace(in.Proposal.Message); msg != "" {
		in.Messages = append(in.Messages, msg)
	}

	log.Debug().
		Str("session_id", in.SessionID).
		Int("round", in.Round).
		Int("invocations", len(in.Proposal.Invocations)).
		Int("results", len(in.RoundResults)).
		Msg("round applied")
	return in, nil
}

// NeedsFollowUp reports whether the proposer should see this round's results
// before the turn ends: errors to correct, or advisory output to act on.
func NeedsFollowUp(in *GraphState, maxRounds int) bool {
	if in == nil || in.Cancelled || in.Round >= maxRounds {
		return false
	}
	for _, res := range in.RoundResults {
		switch res.Action {
		case contractx.ActionError, contractx.ActionAreaCalculated, contractx.ActionSuggestions:
			return true
		}
	}
	return false
}
