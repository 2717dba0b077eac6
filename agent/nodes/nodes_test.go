package assistantnode

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tanpawarit/quote-assistant/agent/catalog"
	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
	"github.com/tanpawarit/quote-assistant/agent/pricing"
	statex "github.com/tanpawarit/quote-assistant/agent/state"
	"github.com/tanpawarit/quote-assistant/agent/tool"
)

type cancellingProposer struct {
	cancel func()
	first  contractx.CommandInvocation
	second contractx.CommandInvocation
}

func (c *cancellingProposer) Propose(ctx context.Context, req contractx.ProposerRequest) (contractx.ProposerResponse, error) {
	return contractx.ProposerResponse{}, errors.New("not used")
}

func (c *cancellingProposer) Stream(
	ctx context.Context,
	req contractx.ProposerRequest,
	observe func([]contractx.CommandInvocation),
) (contractx.ProposerResponse, error) {
	observe([]contractx.CommandInvocation{c.first})
	c.cancel()
	observe([]contractx.CommandInvocation{c.first, c.second})
	return contractx.ProposerResponse{}, ctx.Err()
}

func newProtocol(t *testing.T) *tool.Protocol {
	t.Helper()

	cat, err := catalog.LoadDefault()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	cfg, err := pricing.LoadDefaultConfig()
	if err != nil {
		t.Fatalf("load pricing: %v", err)
	}
	engine, err := pricing.NewEngine(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	p, err := tool.New(cat, engine)
	if err != nil {
		t.Fatalf("new protocol: %v", err)
	}
	return p
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	now := func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.FixedZone("CET", 3600)) }

	st, err := ValidateRequest(GraphInput{SessionID: " s1 ", Text: " kelder "}, now)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	if st.SessionID != "s1" || st.Text != "kelder" || st.Now.Location() != time.UTC {
		t.Fatalf("unexpected state: %+v", st)
	}

	if _, err := ValidateRequest(GraphInput{SessionID: "", Text: "x"}, now); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if _, err := ValidateRequest(GraphInput{SessionID: "s1", Text: "\n"}, now); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestCancelledTurnKeepsAppliedCommands(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newProtocol(t)
	store := statex.NewMemoryStore()
	in := &GraphState{SessionID: "s1", Text: "kelder en notitie", Now: time.Now().UTC()}
	in, err := LoadOrCreateSession(ctx, in, store, p.TaxRate())
	if err != nil {
		t.Fatalf("LoadOrCreateSession() error = %v", err)
	}

	proposer := &cancellingProposer{
		cancel: cancel,
		first: contractx.CommandInvocation{
			ID: "call_1", Command: tool.CommandAddTreatment,
			Args: map[string]any{"treatment_code": "kelderafdichting", "quantity": 12.0},
		},
		second: contractx.CommandInvocation{
			ID: "call_2", Command: tool.CommandAddNote,
			Args: map[string]any{"text": "te laat"},
		},
	}

	in, err = ProposeCommands(ctx, in, proposer, p)
	if err != nil {
		t.Fatalf("ProposeCommands() error = %v", err)
	}
	if !in.Cancelled {
		t.Fatal("expected turn marked cancelled")
	}
	if in, err = ApplyCommands(ctx, in, p); err != nil {
		t.Fatalf("ApplyCommands() error = %v", err)
	}
	if NeedsFollowUp(in, 5) {
		t.Fatal("cancelled turn must not start another round")
	}
	if in, err = SaveSession(ctx, in, store); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	out, err := FinalizeReply(in)
	if err != nil {
		t.Fatalf("FinalizeReply() error = %v", err)
	}
	if !out.Cancelled || out.Totals.Total != 2316 || len(out.Results) != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}

	saved, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(saved.Quote.Lines) != 4 || saved.Quote.Notes != "" || saved.Applied("call_2") {
		t.Fatalf("unexpected saved quote: %+v", saved.Quote)
	}
}

func TestNeedsFollowUp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		state  GraphState
		expect bool
	}{
		{"error result", GraphState{Round: 1, RoundResults: []contractx.CommandResult{{Action: contractx.ActionError}}}, true},
		{"area result", GraphState{Round: 1, RoundResults: []contractx.CommandResult{{Action: contractx.ActionAreaCalculated}}}, true},
		{"suggestions", GraphState{Round: 1, RoundResults: []contractx.CommandResult{{Action: contractx.ActionSuggestions}}}, true},
		{"mutation only", GraphState{Round: 1, RoundResults: []contractx.CommandResult{{Action: contractx.ActionAddLines}}}, false},
		{"no results", GraphState{Round: 1}, false},
		{"last round", GraphState{Round: 2, RoundResults: []contractx.CommandResult{{Action: contractx.ActionError}}}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NeedsFollowUp(&tc.state, 2); got != tc.expect {
				t.Fatalf("NeedsFollowUp() = %v, want %v", got, tc.expect)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	floor := 20.0
	got := Summarize([]contractx.CommandResult{
		{Action: contractx.ActionRemoveLine, Index: 0},
		{Action: contractx.ActionAreaCalculated, Area: &contractx.AreaResult{Perimeter: 18, FloorArea: &floor}},
		{Action: contractx.ActionSuggestions},
		{Action: contractx.ActionError, Command: tool.CommandAddTreatment, Message: "unknown treatment code"},
	})

	want := []string{
		"Regel 1 verwijderd",
		"Oppervlakte: omtrek 18 m, vloer 20 m2",
		"Geen passende behandeling gevonden",
		"Fout bij add_treatment: unknown treatment code",
	}
	if got != strings.Join(want, "\n") {
		t.Fatalf("unexpected summary:\n%s", got)
	}
}

func TestFinalizeReplyRejectsEmptyTurn(t *testing.T) {
	t.Parallel()

	in := &GraphState{Session: statex.NewSession("s1", 0.21, time.Now())}
	if _, err := FinalizeReply(in); !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestTurnContextGovernsProposeAndApply(t *testing.T) {
	t.Parallel()

	turn, cancel := context.WithCancel(context.Background())
	defer cancel()
	graphCtx := context.Background()

	p := newProtocol(t)
	in, err := ValidateRequest(GraphInput{SessionID: "s2", Text: "kelder", Turn: turn}, time.Now)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	if in, err = LoadOrCreateSession(graphCtx, in, statex.NewMemoryStore(), p.TaxRate()); err != nil {
		t.Fatalf("LoadOrCreateSession() error = %v", err)
	}

	proposer := &cancellingProposer{
		cancel: cancel,
		first: contractx.CommandInvocation{
			ID: "call_1", Command: tool.CommandAddTreatment,
			Args: map[string]any{"treatment_code": "kelderafdichting", "quantity": 12.0},
		},
		second: contractx.CommandInvocation{
			ID: "call_2", Command: tool.CommandAddNote,
			Args: map[string]any{"text": "te laat"},
		},
	}

	if in, err = ProposeCommands(graphCtx, in, proposer, p); err != nil {
		t.Fatalf("ProposeCommands() error = %v", err)
	}
	if !in.Cancelled {
		t.Fatal("operator cancel must mark the turn cancelled while the graph context is live")
	}
	if in.TurnContext(graphCtx) != turn {
		t.Fatal("expected the operator context")
	}
	if in.Session.Applied("call_2") || len(in.Session.Quote.Lines) != 4 {
		t.Fatalf("unexpected session after cancel: %+v", in.Session.Quote)
	}
}
