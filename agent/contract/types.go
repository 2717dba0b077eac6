package contract

import (
	quotex "github.com/tanpawarit/quote-assistant/agent/quote"
)

// Action discriminates CommandResult payloads.
type Action string

const (
	ActionAddLines        Action = "add_lines"
	ActionUpdateLine      Action = "update_line"
	ActionRemoveLine      Action = "remove_line"
	ActionSetCustomer     Action = "set_customer"
	ActionSetDiscount     Action = "set_discount"
	ActionAddNote         Action = "add_note"
	ActionSetQuoteDetails Action = "set_quote_details"
	ActionAreaCalculated  Action = "area_calculated"
	ActionSuggestions     Action = "suggestions"
	ActionError           Action = "error"
)

// Mutating reports whether the reducer changes state for this action.
func (a Action) Mutating() bool {
	switch a {
	case ActionAddLines, ActionUpdateLine, ActionRemoveLine, ActionSetCustomer,
		ActionSetDiscount, ActionAddNote, ActionSetQuoteDetails:
		return true
	default:
		return false
	}
}

// CommandInvocation is what the proposer asks for. ID is the tool-call id and
// is the key for exactly-once application.
type CommandInvocation struct {
	ID      string         `json:"id"`
	Command string         `json:"command"`
	Args    map[string]any `json:"args,omitempty"`
}

// LineUpdate holds only the fields an update_line command set.
type LineUpdate struct {
	Description *string      `json:"description,omitempty"`
	Quantity    *float64     `json:"quantity,omitempty"`
	UnitPrice   *float64     `json:"unit_price,omitempty"`
	Unit        *quotex.Unit `json:"unit,omitempty"`
}

type AreaResult struct {
	Type      string   `json:"type"`
	Length    float64  `json:"length"`
	Width     float64  `json:"width"`
	Height    float64  `json:"height,omitempty"`
	Perimeter float64  `json:"perimeter"`
	FloorArea *float64 `json:"floor_area,omitempty"`
	WallArea  *float64 `json:"wall_area,omitempty"`
}

type Suggestion struct {
	Code  string      `json:"code"`
	Label string      `json:"label"`
	Unit  quotex.Unit `json:"unit"`
	Note  string      `json:"note,omitempty"`
}

// CommandResult is the tagged union passed from the protocol to the reducer.
// Only the payload fields belonging to Action are set.
type CommandResult struct {
	InvocationID string `json:"invocation_id,omitempty"`
	Command      string `json:"command,omitempty"`
	Action       Action `json:"action"`

	// add_lines
	Lines []quotex.LineItem `json:"lines,omitempty"`
	Total float64           `json:"total,omitempty"`

	// update_line, remove_line; zero-based
	Index  int         `json:"index,omitempty"`
	Update *LineUpdate `json:"update,omitempty"`

	Customer    *quotex.CustomerPatch `json:"customer,omitempty"`
	Discount    *quotex.Discount      `json:"discount,omitempty"`
	Note        string                `json:"note,omitempty"`
	Details     *quotex.DetailsPatch  `json:"details,omitempty"`
	Area        *AreaResult           `json:"area,omitempty"`
	Suggestions []Suggestion          `json:"suggestions,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

func ErrorResult(command string, message string) CommandResult {
	return CommandResult{
		Command: command,
		Action:  ActionError,
		Message: message,
	}
}

// SnapshotLine is a line as the proposer sees it: 1-based, no internal id.
type SnapshotLine struct {
	Position       int         `json:"position"`
	Description    string      `json:"description"`
	Unit           quotex.Unit `json:"unit"`
	Quantity       float64     `json:"quantity"`
	UnitPrice      float64     `json:"unit_price"`
	LineTotal      float64     `json:"line_total"`
	TierLabel      string      `json:"tier_label,omitempty"`
	MinimumApplied bool        `json:"minimum_applied,omitempty"`
}

// Snapshot is the read-only quote view serialized to the proposer each turn.
type Snapshot struct {
	Lines         []SnapshotLine   `json:"lines"`
	CustomerName  string           `json:"customer_name,omitempty"`
	CustomerCity  string           `json:"customer_city,omitempty"`
	Discount      *quotex.Discount `json:"discount,omitempty"`
	Notes         string           `json:"notes,omitempty"`
	TreatmentTags []string         `json:"treatment_tags,omitempty"`
	Diagnosis     string           `json:"diagnosis,omitempty"`
	AreaM2        float64          `json:"area_m2,omitempty"`
	Duration      string           `json:"duration,omitempty"`
	WarrantyYears int              `json:"warranty_years,omitempty"`
	Subtotal      float64          `json:"subtotal"`
	Total         float64          `json:"total"`
}

type ProposerRequest struct {
	OperatorMessage string          `json:"operator_message"`
	Snapshot        Snapshot        `json:"snapshot"`
	PriorResults    []CommandResult `json:"prior_results,omitempty"`
}

type ProposerResponse struct {
	Message     string              `json:"message"`
	Invocations []CommandInvocation `json:"invocations,omitempty"`
}
