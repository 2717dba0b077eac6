package prompt

import (
	_ "embed"
	"strings"
)

const catalogPlaceholder = "{{catalog_briefing}}"

//go:embed template/proposer.txt
var proposerRaw string

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Proposer string
}

func LoadPromptSet() PromptSet {
	return PromptSet{
		Proposer: strings.TrimSpace(proposerRaw),
	}
}

// ProposerWith fills the catalog briefing into the proposer prompt.
func (p PromptSet) ProposerWith(briefing string) string {
	return strings.ReplaceAll(p.Proposer, catalogPlaceholder, strings.TrimSpace(briefing))
}
