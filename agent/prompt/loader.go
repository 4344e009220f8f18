package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/guardrail.txt
	guardrailRaw string

	//go:embed template/router.txt
	routerRaw string

	//go:embed template/knowledge.txt
	knowledgeRaw string

	//go:embed template/support.txt
	supportRaw string

	//go:embed template/synthesizer.txt
	synthesizerRaw string
)

// Set holds the system prompts for every LLM-backed component.
type Set struct {
	Guardrail   string
	Router      string
	Knowledge   string
	Support     string
	Synthesizer string
}

// Load returns the embedded prompts, trimmed. Safe to call concurrently.
func Load() Set {
	return Set{
		Guardrail:   strings.TrimSpace(guardrailRaw),
		Router:      strings.TrimSpace(routerRaw),
		Knowledge:   strings.TrimSpace(knowledgeRaw),
		Support:     strings.TrimSpace(supportRaw),
		Synthesizer: strings.TrimSpace(synthesizerRaw),
	}
}
