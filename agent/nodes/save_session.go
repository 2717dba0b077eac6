package assistantnode

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
	statex "github.com/tanpawarit/quote-assistant/agent/state"
)

const cancelledSaveTimeout = 5 * time.Second

// SaveSession persists the session. After a cancelled turn the save still
// runs, detached from the cancelled context, so every command applied before
// the cancel is kept.
func SaveSession(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	saveCtx := ctx
	if in.Cancelled || ctx.Err() != nil {
		var cancel context.CancelFunc
		saveCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), cancelledSaveTimeout)
		defer cancel()
	}

	in.Session.Touch(in.Now)
	if err := store.Save(saveCtx, in.Session); err != nil {
		return nil, err
	}
	return in, nil
}
