// Package router classifies safe queries into KNOWLEDGE, SUPPORT, or BOTH
// and detects the query language in the same decision. The LLM output is
// parsed strictly: exact token match into the enum with an explicit
// unparseable arm, never substring search.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	contractx "github.com/paylane-labs/agent-swarm/agent/contract"
	languagex "github.com/paylane-labs/agent-swarm/agent/language"
	tracex "github.com/paylane-labs/agent-swarm/agent/trace"
	logx "github.com/paylane-labs/agent-swarm/pkg/logger"
)

type Router struct {
	model  contractx.ChatModel
	prompt string
	log    zerolog.Logger
}

var _ contractx.Router = (*Router)(nil)

func New(model contractx.ChatModel, systemPrompt string) (*Router, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: router chat model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: router prompt is required", contractx.ErrValidation)
	}
	return &Router{
		model:  model,
		prompt: systemPrompt,
		log:    logx.Component("router"),
	}, nil
}

// Classify returns the routing decision for a query. Defaults on failure:
// unparseable output falls back to KNOWLEDGE (single-signal ambiguity),
// mechanism errors fall back to BOTH (gather everything, the synthesizer
// discards unused parts). Language falls back to the shared heuristic.
func (r *Router) Classify(ctx context.Context, text string, tr *tracex.Trace) contractx.RoutingDecision {
	decision, note := r.classify(ctx, text)

	tr.SetRouting(string(decision.Category), string(decision.Language))
	payload := map[string]any{
		"category": string(decision.Category),
		"language": string(decision.Language),
	}
	if note != "" {
		payload["fallback"] = note
	}
	tr.Record("routing", payload)
	return decision
}

func (r *Router) classify(ctx context.Context, text string) (contractx.RoutingDecision, string) {
	out, err := r.model.Complete(ctx, contractx.Completion{
		System:    r.prompt,
		User:      text,
		ForceJSON: true,
	})
	if err != nil {
		r.log.Error().Err(err).Msg("router model failed, defaulting to BOTH")
		return contractx.RoutingDecision{
			Category: contractx.CategoryBoth,
			Language: languagex.Detect(text),
		}, fmt.Sprintf("mechanism error: %v", err)
	}

	decision, err := parseDecision(out)
	if err != nil {
		r.log.Warn().Err(err).Str("raw", out).Msg("router output unparseable, defaulting to KNOWLEDGE")
		return contractx.RoutingDecision{
			Category: contractx.CategoryKnowledge,
			Language: languagex.Detect(text),
		}, fmt.Sprintf("unparseable output: %v", err)
	}

	if decision.Language == "" {
		decision.Language = languagex.Detect(text)
	}
	return decision, ""
}

type decisionOutput struct {
	Category string `json:"category"`
	Language string `json:"language"`
}

// parseDecision maps the model output into the decision enums. Tokens must
// match exactly after trimming and uppercasing; anything else is an error so
// the caller applies the documented default.
func parseDecision(raw string) (contractx.RoutingDecision, error) {
	var out decisionOutput
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return contractx.RoutingDecision{}, fmt.Errorf("%w: decode routing output: %v", contractx.ErrSchemaViolation, err)
	}

	var category contractx.Category
	switch strings.ToUpper(strings.TrimSpace(out.Category)) {
	case string(contractx.CategoryKnowledge):
		category = contractx.CategoryKnowledge
	case string(contractx.CategorySupport):
		category = contractx.CategorySupport
	case string(contractx.CategoryBoth):
		category = contractx.CategoryBoth
	default:
		return contractx.RoutingDecision{}, fmt.Errorf("%w: unknown category %q", contractx.ErrSchemaViolation, out.Category)
	}

	var lang contractx.Language
	switch strings.ToUpper(strings.TrimSpace(out.Language)) {
	case string(contractx.LanguagePortuguese):
		lang = contractx.LanguagePortuguese
	case string(contractx.LanguageEnglish):
		lang = contractx.LanguageEnglish
	default:
		// Inconclusive language is not a classification failure; the caller
		// falls back to the heuristic.
		lang = ""
	}

	return contractx.RoutingDecision{Category: category, Language: lang}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
