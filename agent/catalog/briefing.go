package catalog

import (
	"fmt"
	"strings"
)

// Briefing renders the catalog as grounding text for the proposer. It is not
// binding; codes are validated again when a command runs.
func (c *Catalog) Briefing() string {
	if c == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("Beschikbare behandelingen (code | omschrijving | eenheid | kenmerken):\n")
	for _, code := range c.order {
		d := c.byCode[code]
		fmt.Fprintf(&b, "- %s | %s | %s", d.Code, d.Label, d.Unit)
		if flags := d.flags(); flags != "" {
			fmt.Fprintf(&b, " | %s", flags)
		}
		b.WriteByte('\n')
		if d.Description != "" {
			fmt.Fprintf(&b, "    %s\n", d.Description)
		}
		if d.ApplicabilityNote != "" {
			fmt.Fprintf(&b, "    Toepassing: %s\n", d.ApplicabilityNote)
		}
	}

	if len(c.problems) > 0 {
		b.WriteString("\nProbleem → aanbevolen codes:\n")
		for _, g := range c.problems {
			fmt.Fprintf(&b, "- %s → %s\n", strings.Join(g.Keywords, ", "), strings.Join(g.Codes, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (d Descriptor) flags() string {
	var flags []string
	if d.IsBundle {
		flags = append(flags, "pakket")
	}
	if d.HasTieredPricing {
		flags = append(flags, "staffelprijs")
	}
	if d.HasMinimumPrice {
		flags = append(flags, "minimumprijs")
	}
	return strings.Join(flags, ", ")
}
