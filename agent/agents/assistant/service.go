package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
	"github.com/tanpawarit/quote-assistant/agent/metrics"
	nodex "github.com/tanpawarit/quote-assistant/agent/nodes"
	quotex "github.com/tanpawarit/quote-assistant/agent/quote"
	statex "github.com/tanpawarit/quote-assistant/agent/state"
)

const DefaultMaxRounds = 2

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

type Config struct {
	TaxRate   float64
	MaxRounds int
}

// Reply is what the operator sees after one turn.
type Reply struct {
	Message   string
	Results   []contractx.CommandResult
	Totals    quotex.Totals
	Cancelled bool
}

// Assistant runs operator turns against persisted quote sessions.
type Assistant struct {
	store    statex.Store
	proposer contractx.Proposer
	exec     contractx.CommandExecutor

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	taxRate   float64
	maxRounds int

	now         func() time.Time
	sessionOpts []statex.SessionOption
	metrics     *metrics.Metrics

	locks sessionLocks
}

type Option func(*Assistant)

func WithClock(now func() time.Time) Option {
	return func(a *Assistant) {
		if now != nil {
			a.now = now
		}
	}
}

func WithSessionOptions(opts ...statex.SessionOption) Option {
	return func(a *Assistant) {
		a.sessionOpts = append(a.sessionOpts, opts...)
	}
}

// WithMetrics records turn and command metrics. Without it nothing is recorded.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assistant) {
		a.metrics = m
	}
}

func New(
	store statex.Store,
	proposer contractx.Proposer,
	exec contractx.CommandExecutor,
	cfg Config,
	opts ...Option,
) (*Assistant, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if proposer == nil {
		return nil, errors.New("proposer is required")
	}
	if exec == nil {
		return nil, errors.New("command executor is required")
	}

	taxRate := cfg.TaxRate
	if taxRate <= 0 {
		taxRate = quotex.DefaultTaxRate
	}
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	a := &Assistant{
		store:     store,
		proposer:  proposer,
		exec:      exec,
		taxRate:   taxRate,
		maxRounds: maxRounds,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	graphRunner, err := a.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	a.graphRunner = graphRunner

	return a, nil
}

// HandleMessage runs one operator turn. A cancelled turn is not an error: the
// reply reports Cancelled and the session keeps every command applied before
// the cancel. Turns, seeds and resets on one session id are serialized.
func (a *Assistant) HandleMessage(ctx context.Context, sessionID string, text string) (Reply, error) {
	unlock := a.locks.lock(sessionID)
	defer unlock()

	start := time.Now()
	out, err := a.graphRunner.Invoke(context.WithoutCancel(ctx), nodex.GraphInput{
		SessionID: sessionID,
		Text:      text,
		Turn:      ctx,
	})
	if err != nil {
		a.metrics.ObserveTurn(metrics.OutcomeError, time.Since(start), 0)
		log.Error().Err(err).Str("session_id", sessionID).Msg("turn failed")
		return Reply{}, err
	}

	outcome := metrics.OutcomeOK
	if out.Cancelled {
		outcome = metrics.OutcomeCancelled
	}
	a.metrics.ObserveTurn(outcome, time.Since(start), out.Rounds)
	a.metrics.ObserveResults(out.Results)

	return Reply{
		Message:   out.Reply,
		Results:   out.Results,
		Totals:    out.Totals,
		Cancelled: out.Cancelled,
	}, nil
}

// Session loads the session, or returns a fresh unsaved one.
func (a *Assistant) Session(ctx context.Context, sessionID string) (*statex.Session, error) {
	st, err := nodex.ValidateRequest(nodex.GraphInput{SessionID: sessionID, Text: "-"}, a.now)
	if err != nil {
		return nil, err
	}
	st, err = nodex.LoadOrCreateSession(ctx, st, a.store, a.taxRate, a.sessionOpts...)
	if err != nil {
		return nil, err
	}
	return st.Session, nil
}

// LoadSession returns the stored session and statex.ErrSessionNotFound for an
// unknown id; unlike Session it never creates one.
func (a *Assistant) LoadSession(ctx context.Context, sessionID string) (*statex.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	return a.store.Load(ctx, sessionID)
}

// StartFromLead replaces the session's quote with one seeded from an intake lead.
func (a *Assistant) StartFromLead(ctx context.Context, sessionID string, lead statex.Lead) (*statex.Session, error) {
	return a.Seed(ctx, sessionID, statex.FromLead(lead))
}

// Seed replaces the session's quote, e.g. with one reloaded from the
// repository. Applied invocation ids are kept.
func (a *Assistant) Seed(ctx context.Context, sessionID string, q statex.QuoteState) (*statex.Session, error) {
	unlock := a.locks.lock(sessionID)
	defer unlock()

	sess, err := a.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.Reset(a.now())
	sess.Quote = q
	if err := a.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Reset clears the quote but keeps the session's applied invocation ids.
func (a *Assistant) Reset(ctx context.Context, sessionID string) error {
	unlock := a.locks.lock(sessionID)
	defer unlock()

	sess, err := a.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Reset(a.now())
	return a.store.Save(ctx, sess)
}
