package state

import (
	"context"
	"reflect"
	"testing"
	"time"

	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
	quotex "github.com/tanpawarit/quote-assistant/agent/quote"
)

type countingExecutor struct {
	calls map[string]int
}

func (e *countingExecutor) Execute(_ context.Context, inv contractx.CommandInvocation) contractx.CommandResult {
	if e.calls == nil {
		e.calls = map[string]int{}
	}
	e.calls[inv.ID]++
	switch inv.Command {
	case "add":
		return contractx.CommandResult{
			InvocationID: inv.ID,
			Action:       contractx.ActionAddLines,
			Lines:        []quotex.LineItem{line(inv.ID, 10, 1)},
		}
	case "note":
		return contractx.CommandResult{InvocationID: inv.ID, Action: contractx.ActionAddNote, Note: inv.ID}
	default:
		return contractx.ErrorResult(inv.Command, "unknown")
	}
}

func newTestSession() *Session {
	return NewSession("s-1", quotex.DefaultTaxRate, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), WithLineIDs(seqIDs()))
}

func TestApplyInvocationExactlyOnce(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	res := addLines(line("A", 10, 1))

	if !s.ApplyInvocation("call_1", res) {
		t.Fatal("first application must succeed")
	}
	once := s.Quote.clone()
	if s.ApplyInvocation("call_1", res) {
		t.Fatal("duplicate application must be rejected")
	}
	if !reflect.DeepEqual(s.Quote, once) {
		t.Fatalf("duplicate changed state: %+v", s.Quote)
	}
	if len(s.Quote.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(s.Quote.Lines))
	}

	// Without an id there is nothing to deduplicate on.
	s.ApplyInvocation("", res)
	s.ApplyInvocation("", res)
	if len(s.Quote.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(s.Quote.Lines))
	}
}

func TestObserveReobservedStream(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	exec := &countingExecutor{}
	ctx := context.Background()

	// A stream polled three times, growing each time.
	polls := [][]contractx.CommandInvocation{
		{{ID: "a", Command: "add"}},
		{{ID: "a", Command: "add"}, {ID: "b", Command: "note"}},
		{{ID: "a", Command: "add"}, {ID: "b", Command: "note"}, {ID: "c", Command: "add"}},
		{{ID: "a", Command: "add"}, {ID: "b", Command: "note"}, {ID: "c", Command: "add"}},
	}
	var results []contractx.CommandResult
	for _, invs := range polls {
		results = append(results, s.Observe(ctx, invs, exec)...)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 new results, got %d", len(results))
	}
	for id, n := range exec.calls {
		if n != 1 {
			t.Fatalf("invocation %s executed %d times", id, n)
		}
	}
	if len(s.Quote.Lines) != 2 || s.Quote.Notes != "b" {
		t.Fatalf("unexpected quote: %+v", s.Quote)
	}
}

func TestObserveStopsOnCancel(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	exec := &countingExecutor{}
	ctx, cancel := context.WithCancel(context.Background())

	s.Observe(ctx, []contractx.CommandInvocation{{ID: "a", Command: "add"}}, exec)
	cancel()
	s.Observe(ctx, []contractx.CommandInvocation{{ID: "a", Command: "add"}, {ID: "b", Command: "add"}}, exec)

	if len(s.Quote.Lines) != 1 {
		t.Fatalf("expected state after last applied command (1 line), got %d", len(s.Quote.Lines))
	}
	if exec.calls["b"] != 0 {
		t.Fatal("invocation after cancel must not be executed")
	}
	if s.Applied("b") {
		t.Fatal("invocation after cancel must not be marked applied")
	}
}

func TestSnapshotHidesLineIDs(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	s.ApplyInvocation("1", addLines(line("A", 10, 2), line("B", 5, 4)))
	name, city := "Bakker", "Deventer"
	s.ApplyInvocation("2", contractx.CommandResult{
		Action:   contractx.ActionSetCustomer,
		Customer: &quotex.CustomerPatch{Name: &name, City: &city},
	})
	s.ApplyInvocation("3", contractx.CommandResult{
		Action:  contractx.ActionSetQuoteDetails,
		Details: &quotex.DetailsPatch{DiagnosisTags: []string{"opstijgend vocht", "zoutuitslag"}},
	})

	snap := s.Snapshot()
	if len(snap.Lines) != 2 || snap.Lines[0].Position != 1 || snap.Lines[1].Position != 2 {
		t.Fatalf("unexpected snapshot lines: %+v", snap.Lines)
	}
	if snap.Subtotal != 40 || snap.Total != 40 {
		t.Fatalf("unexpected snapshot totals: %v / %v", snap.Subtotal, snap.Total)
	}
	if snap.CustomerName != name || snap.CustomerCity != city {
		t.Fatalf("unexpected customer: %q %q", snap.CustomerName, snap.CustomerCity)
	}
	if snap.Diagnosis != "opstijgend vocht, zoutuitslag" {
		t.Fatalf("unexpected diagnosis: %q", snap.Diagnosis)
	}
	if snap.Discount != nil {
		t.Fatalf("no discount set, got %+v", snap.Discount)
	}
}

func TestRecordRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	s.ApplyInvocation("call_1", addLines(line("A", 10, 2)))
	s.ApplyInvocation("call_2", contractx.CommandResult{Action: contractx.ActionAddNote, Note: "n"})

	rec := s.Record()
	if !reflect.DeepEqual(rec.AppliedIDs, []string{"call_1", "call_2"}) {
		t.Fatalf("unexpected applied ids: %v", rec.AppliedIDs)
	}

	restored, err := RestoreSession(rec, WithLineIDs(seqIDs()))
	if err != nil {
		t.Fatalf("RestoreSession() error = %v", err)
	}
	if !reflect.DeepEqual(restored.Quote, s.Quote) {
		t.Fatalf("quote differs after restore:\n got %+v\nwant %+v", restored.Quote, s.Quote)
	}
	if restored.ApplyInvocation("call_1", addLines(line("A", 10, 2))) {
		t.Fatal("applied ids must survive a restore")
	}

	if _, err := RestoreSession(SessionRecord{}); err == nil {
		t.Fatal("expected error for empty session id")
	}
}
