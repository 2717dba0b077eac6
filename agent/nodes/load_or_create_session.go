package assistantnode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
	statex "github.com/tanpawarit/quote-assistant/agent/state"
)

func LoadOrCreateSession(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
	taxRate float64,
	opts ...statex.SessionOption,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	sess, err := store.Load(ctx, in.SessionID)
	switch {
	case err == nil:
	case errors.Is(err, statex.ErrSessionNotFound):
		sess = statex.NewSession(in.SessionID, taxRate, in.Now, opts...)
	default:
		return nil, err
	}
	in.Session = sess
	return in, nil
}
