package assistantnode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Session == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(strings.Join(in.Messages, "\n\n"))
	if reply == "" {
		reply = Summarize(in.Results)
	}
	if in.Cancelled {
		note := "Afgebroken; de offerte staat op de laatst verwerkte wijziging."
		if reply == "" {
			reply = note
		} else {
			reply += "\n\n" + note
		}
	}
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: proposer returned neither message nor commands", contractx.ErrSchemaViolation)
	}

	return GraphOutput{
		Reply:     reply,
		Results:   in.Results,
		Totals:    in.Session.Totals(),
		Cancelled: in.Cancelled,
		Rounds:    in.Round,
	}, nil
}

// Summarize renders command results as plain text for turns in which the
// proposer said nothing itself.
func Summarize(results []contractx.CommandResult) string {
	var lines []string
	for _, res := range results {
		switch res.Action {
		case contractx.ActionAddLines:
			for _, l := range res.Lines {
				lines = append(lines, fmt.Sprintf("+ %s: %g %s x € %.2f = € %.2f", l.Description, l.Quantity, l.Unit, l.UnitPrice, l.LineTotal))
			}
		case contractx.ActionUpdateLine:
			lines = append(lines, fmt.Sprintf("Regel %d aangepast", res.Index+1))
		case contractx.ActionRemoveLine:
			lines = append(lines, fmt.Sprintf("Regel %d verwijderd", res.Index+1))
		case contractx.ActionSetCustomer:
			lines = append(lines, "Klantgegevens bijgewerkt")
		case contractx.ActionSetDiscount:
			lines = append(lines, "Korting ingesteld")
		case contractx.ActionAddNote:
			lines = append(lines, "Notitie toegevoegd")
		case contractx.ActionSetQuoteDetails:
			lines = append(lines, "Offertegegevens bijgewerkt")
		case contractx.ActionAreaCalculated:
			if a := res.Area; a != nil {
				parts := []string{fmt.Sprintf("omtrek %g m", a.Perimeter)}
				if a.FloorArea != nil {
					parts = append(parts, fmt.Sprintf("vloer %g m2", *a.FloorArea))
				}
				if a.WallArea != nil {
					parts = append(parts, fmt.Sprintf("wanden %g m2", *a.WallArea))
				}
				lines = append(lines, "Oppervlakte: "+strings.Join(parts, ", "))
			}
		case contractx.ActionSuggestions:
			codes := make([]string, 0, len(res.Suggestions))
			for _, s := range res.Suggestions {
				codes = append(codes, s.Code)
			}
			if len(codes) == 0 {
				lines = append(lines, "Geen passende behandeling gevonden")
			} else {
				lines = append(lines, "Suggesties: "+strings.Join(codes, ", "))
			}
		case contractx.ActionError:
			lines = append(lines, fmt.Sprintf("Fout bij %s: %s", res.Command, res.Message))
		}
	}
	return strings.Join(lines, "\n")
}
