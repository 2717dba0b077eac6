package state

import (
	"github.com/google/uuid"

	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
	"github.com/tanpawarit/quote-assistant/agent/pricing"
	quotex "github.com/tanpawarit/quote-assistant/agent/quote"
)

// QuoteState is the quote under construction. Totals are never stored; they
// are derived from Lines and Discount on every read.
type QuoteState struct {
	Lines    []quotex.LineItem `json:"lines"`
	Customer quotex.Customer   `json:"customer"`
	Discount quotex.Discount   `json:"discount"`
	Notes    string            `json:"notes,omitempty"`
	Details  quotex.Details    `json:"details"`
}

func NewQuoteState() QuoteState {
	return QuoteState{Lines: []quotex.LineItem{}}
}

// NewLineID is the default identifier source for appended lines.
func NewLineID() string {
	return uuid.NewString()
}

func (q QuoteState) Totals(taxRate float64) quotex.Totals {
	return quotex.ComputeTotals(q.Lines, q.Discount, taxRate)
}

func (q QuoteState) clone() QuoteState {
	out := q
	out.Lines = append(make([]quotex.LineItem, 0, len(q.Lines)), q.Lines...)
	out.Details.DiagnosisTags = append([]string(nil), q.Details.DiagnosisTags...)
	out.Details.TreatmentTags = append([]string(nil), q.Details.TreatmentTags...)
	return out
}

// Apply folds one command result into st and returns the new state. st is not
// modified. Positional commands whose index is out of range leave the state
// unchanged; advisory and error results are no-ops.
func Apply(st QuoteState, res contractx.CommandResult, newID func() string) QuoteState {
	if !res.Action.Mutating() {
		return st
	}
	if newID == nil {
		newID = NewLineID
	}

	next := st.clone()
	switch res.Action {
	case contractx.ActionAddLines:
		for _, l := range res.Lines {
			l.ID = newID()
			next.Lines = append(next.Lines, l)
		}

	case contractx.ActionUpdateLine:
		if res.Index < 0 || res.Index >= len(next.Lines) || res.Update == nil {
			return st
		}
		next.Lines[res.Index] = updateLine(next.Lines[res.Index], *res.Update)

	case contractx.ActionRemoveLine:
		if res.Index < 0 || res.Index >= len(next.Lines) {
			return st
		}
		next.Lines = append(next.Lines[:res.Index], next.Lines[res.Index+1:]...)

	case contractx.ActionSetCustomer:
		if res.Customer != nil {
			next.Customer = next.Customer.Merge(*res.Customer)
		}

	case contractx.ActionSetDiscount:
		if res.Discount != nil {
			next.Discount = *res.Discount
		}

	case contractx.ActionAddNote:
		switch {
		case res.Note == "":
		case next.Notes == "":
			next.Notes = res.Note
		default:
			next.Notes += "\n" + res.Note
		}

	case contractx.ActionSetQuoteDetails:
		if res.Details != nil {
			next.Details = next.Details.Merge(*res.Details)
		}
	}
	return next
}

// A manual quantity or price edit invalidates the tier and minimum decisions
// the engine made, so both markers are cleared.
func updateLine(l quotex.LineItem, u contractx.LineUpdate) quotex.LineItem {
	if u.Description != nil {
		l.Description = *u.Description
	}
	if u.Unit != nil {
		l.Unit = *u.Unit
	}
	repriced := false
	if u.Quantity != nil {
		l.Quantity = *u.Quantity
		repriced = true
	}
	if u.UnitPrice != nil {
		l.UnitPrice = *u.UnitPrice
		repriced = true
	}
	if repriced {
		l.LineTotal = pricing.LineTotal(l.UnitPrice, l.Quantity)
		l.TierLabel = ""
		l.MinimumApplied = false
	}
	return l
}
