package assistantnode

import (
	"context"
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
	quotex "github.com/tanpawarit/quote-assistant/agent/quote"
	statex "github.com/tanpawarit/quote-assistant/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = statex.ErrInvalidSession
)

type GraphInput struct {
	SessionID string
	Text      string
	// Turn carries the operator's cancellation. The graph itself runs on a
	// detached context so the session is saved and a reply built after a cancel.
	Turn      context.Context
}

type GraphOutput struct {
	Reply     string
	Results   []contractx.CommandResult
	Totals    quotex.Totals
	Cancelled bool
	Rounds    int
}

// GraphState is threaded through every node of one operator turn.
type GraphState struct {
	SessionID string
	Text      string
	Now       time.Time

	Session *statex.Session

	Round        int
	Proposal     contractx.ProposerResponse
	RoundResults []contractx.CommandResult
	Results      []contractx.CommandResult
	Messages     []string
	Cancelled    bool

	turn context.Context
}

// TurnContext returns the operator's context when one was given, else ctx.
// Proposing and applying commands run under it; loading and saving do not.
func (s *GraphState) TurnContext(ctx context.Context) context.Context {
	if s.turn != nil {
		return s.turn
	}
	return ctx
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		SessionID: sessionID,
		Text:      text,
		Now:       nowFn().UTC(),
		turn:      in.Turn,
	}, nil
}
