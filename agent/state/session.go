package state

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
	quotex "github.com/tanpawarit/quote-assistant/agent/quote"
)

var ErrInvalidSession = errors.New("session id is empty")

// Session owns one quote and the set of invocation ids already folded into it.
// It is single-writer: only the turn that owns the session calls into it.
type Session struct {
	ID        string
	Quote     QuoteState
	TaxRate   float64
	UpdatedAt time.Time

	applied map[string]struct{}
	newID   func() string
}

type SessionOption func(*Session)

// WithLineIDs replaces the line id source, mainly for deterministic tests.
func WithLineIDs(newID func() string) SessionOption {
	return func(s *Session) {
		if newID != nil {
			s.newID = newID
		}
	}
}

func WithQuote(q QuoteState) SessionOption {
	return func(s *Session) {
		s.Quote = q.clone()
	}
}

func NewSession(id string, taxRate float64, now time.Time, opts ...SessionOption) *Session {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	s := &Session{
		ID:        id,
		Quote:     NewQuoteState(),
		TaxRate:   taxRate,
		UpdatedAt: now.UTC(),
		applied:   make(map[string]struct{}, 16),
		newID:     NewLineID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

func (s *Session) Applied(invocationID string) bool {
	_, ok := s.applied[invocationID]
	return ok
}

// ApplyInvocation folds res into the quote exactly once per invocation id and
// reports whether it was applied. An empty id cannot be deduplicated and is
// always applied.
func (s *Session) ApplyInvocation(invocationID string, res contractx.CommandResult) bool {
	if invocationID != "" {
		if _, seen := s.applied[invocationID]; seen {
			return false
		}
		s.applied[invocationID] = struct{}{}
	}
	s.Quote = Apply(s.Quote, res, s.newID)
	return true
}

// Observe consumes a possibly repeated, cumulative list of invocations from a
// streaming proposer. Invocations already applied are skipped without being
// executed again; new ones are executed and applied in order. It stops at the
// first invocation seen after ctx is cancelled, leaving the quote as it was
// after the last fully applied command.
func (s *Session) Observe(ctx context.Context, invs []contractx.CommandInvocation, exec contractx.CommandExecutor) []contractx.CommandResult {
	var out []contractx.CommandResult
	for _, inv := range invs {
		if inv.ID != "" && s.Applied(inv.ID) {
			continue
		}
		if ctx.Err() != nil {
			return out
		}
		res := exec.Execute(ctx, inv)
		s.ApplyInvocation(inv.ID, res)
		out = append(out, res)
	}
	return out
}

func (s *Session) Totals() quotex.Totals {
	return s.Quote.Totals(s.TaxRate)
}

func (s *Session) Snapshot() contractx.Snapshot {
	return s.Quote.Snapshot(s.TaxRate)
}

// Reset discards the quote but keeps the session id and applied ids, so late
// re-observations of an earlier stream cannot resurrect old commands.
func (s *Session) Reset(now time.Time) {
	s.Quote = NewQuoteState()
	s.Touch(now)
}

// Snapshot is the proposer's read-only view: 1-based positions, no line ids.
func (q QuoteState) Snapshot(taxRate float64) contractx.Snapshot {
	totals := q.Totals(taxRate)
	snap := contractx.Snapshot{
		Lines:         make([]contractx.SnapshotLine, 0, len(q.Lines)),
		CustomerName:  q.Customer.Name,
		CustomerCity:  q.Customer.City,
		Notes:         q.Notes,
		TreatmentTags: append([]string(nil), q.Details.TreatmentTags...),
		Diagnosis:     strings.Join(q.Details.DiagnosisTags, ", "),
		AreaM2:        q.Details.AreaM2,
		Duration:      q.Details.Duration,
		WarrantyYears: q.Details.WarrantyYears,
		Subtotal:      totals.SubtotalInclTax,
		Total:         totals.Total,
	}
	for i, l := range q.Lines {
		snap.Lines = append(snap.Lines, contractx.SnapshotLine{
			Position:       i + 1,
			Description:    l.Description,
			Unit:           l.Unit,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			LineTotal:      l.LineTotal,
			TierLabel:      l.TierLabel,
			MinimumApplied: l.MinimumApplied,
		})
	}
	if !q.Discount.IsZero() {
		d := q.Discount
		snap.Discount = &d
	}
	return snap
}

// SessionRecord is the persisted form of a Session.
type SessionRecord struct {
	SessionID  string    `json:"session_id"`
	TaxRate    float64   `json:"tax_rate"`
	Quote      Payload   `json:"quote"`
	AppliedIDs []string  `json:"applied_ids,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (s *Session) Record() SessionRecord {
	ids := make([]string, 0, len(s.applied))
	for id := range s.applied {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return SessionRecord{
		SessionID:  s.ID,
		TaxRate:    s.TaxRate,
		Quote:      s.Quote.ToPayload(s.TaxRate),
		AppliedIDs: ids,
		UpdatedAt:  s.UpdatedAt.UTC(),
	}
}

// RestoreSession rebuilds a Session from its record. Line ids are regenerated.
func RestoreSession(rec SessionRecord, opts ...SessionOption) (*Session, error) {
	if strings.TrimSpace(rec.SessionID) == "" {
		return nil, ErrInvalidSession
	}
	s := NewSession(rec.SessionID, rec.TaxRate, rec.UpdatedAt, opts...)
	s.Quote = FromPayload(rec.Quote, s.newID)
	for _, id := range rec.AppliedIDs {
		s.applied[id] = struct{}{}
	}
	return s, nil
}
