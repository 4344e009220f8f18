// Package synth merges responder results into one user-facing reply. It
// cleans mechanically first (source blocks, stray refusals, user-id echoes,
// cross-result comparison) and only then asks the LLM to translate or
// polish, so a model failure still leaves a correct, clean answer.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	contractx "github.com/paylane-labs/agent-swarm/agent/contract"
	languagex "github.com/paylane-labs/agent-swarm/agent/language"
	tracex "github.com/paylane-labs/agent-swarm/agent/trace"
	logx "github.com/paylane-labs/agent-swarm/pkg/logger"
)

type Synthesizer struct {
	model  contractx.ChatModel
	prompt string
	log    zerolog.Logger
}

var _ contractx.Synthesizer = (*Synthesizer)(nil)

func New(model contractx.ChatModel, systemPrompt string) (*Synthesizer, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: synthesizer chat model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: synthesizer prompt is required", contractx.ErrValidation)
	}
	return &Synthesizer{
		model:  model,
		prompt: systemPrompt,
		log:    logx.Component("synthesizer"),
	}, nil
}

// Synthesize builds the final reply from the non-failed results in target
// language. The mechanical cleanup always runs; the LLM pass is best-effort
// and its output is discarded if it drifts away from the target language.
func (s *Synthesizer) Synthesize(
	ctx context.Context,
	query, userID string,
	target contractx.Language,
	results []contractx.ResponderResult,
	tr *tracex.Trace,
) (string, error) {
	combined := combine(results)
	if combined == "" {
		return "", fmt.Errorf("%w: no responder produced text", contractx.ErrValidation)
	}

	cleaned := stripSources(combined)
	cleaned = stripRefusals(cleaned)
	cleaned = replaceUserID(cleaned, userID, target)
	if verdict := affordability(query, results, target); verdict != "" {
		cleaned = cleaned + "\n\n" + verdict
	}
	cleaned = strings.TrimSpace(cleaned)

	mode := "IMPROVE"
	if languagex.Detect(cleaned) != target {
		mode = "TRANSLATE"
	}

	polished, err := s.polish(ctx, mode, query, target, cleaned)
	if err != nil {
		s.log.Warn().Err(err).Msg("synthesis model failed, returning cleaned text")
		tr.Record("synthesis", map[string]any{"mode": mode, "fallback": "cleaned_text", "error": err.Error()})
		return cleaned, nil
	}
	polished = strings.TrimSpace(stripSources(polished))
	if polished == "" {
		tr.Record("synthesis", map[string]any{"mode": mode, "fallback": "cleaned_text", "error": "empty output"})
		return cleaned, nil
	}

	// The model occasionally answers in the wrong language. Keep the cleaned
	// text when it already matches the target and the polished one does not.
	if languagex.Detect(polished) != target && languagex.Detect(cleaned) == target {
		tr.Record("synthesis", map[string]any{"mode": mode, "fallback": "language_mismatch"})
		return cleaned, nil
	}

	tr.Record("synthesis", map[string]any{"mode": mode})
	return polished, nil
}

// combine concatenates the non-failed result texts in responder order. A
// single result passes through without a section label.
func combine(results []contractx.ResponderResult) string {
	var parts []contractx.ResponderResult
	for _, res := range results {
		if res.Failed || strings.TrimSpace(res.Text) == "" {
			continue
		}
		parts = append(parts, res)
	}
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return strings.TrimSpace(parts[0].Text)
	}

	var b strings.Builder
	for i, res := range parts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(res.Text))
	}
	return b.String()
}

var sourceBlockRe = regexp.MustCompile(`(?im)^\s*(sources?|fontes?)\s*:.*(?:\n^[ \t]*(?:[-*\d].*)?$)*`)

// stripSources drops trailing "Sources:"/"Fontes:" blocks that responders
// sometimes append despite instructions. Source attribution belongs in the
// structured response field, not inline.
func stripSources(text string) string {
	return strings.TrimSpace(sourceBlockRe.ReplaceAllString(text, ""))
}

var refusalFragments = []string{
	"i cannot help with that",
	"i can't help with that",
	"i cannot assist with",
	"i'm sorry, but i can",
	"i am sorry, but i can",
	"as an ai",
	"não posso ajudar com isso",
	"nao posso ajudar com isso",
	"desculpe, mas não posso",
}

// stripRefusals removes lines that are bare model refusals, but only when
// substantive content remains. One responder refusing must not wipe out the
// other's real answer.
func stripRefusals(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	removed := false
	for _, line := range lines {
		lower := strings.ToLower(line)
		refusal := false
		for _, frag := range refusalFragments {
			if strings.Contains(lower, frag) {
				refusal = true
				break
			}
		}
		if refusal {
			removed = true
			continue
		}
		kept = append(kept, line)
	}
	if !removed {
		return text
	}
	result := strings.TrimSpace(strings.Join(kept, "\n"))
	if result == "" {
		return text
	}
	return result
}

// replaceUserID substitutes raw user-id echoes with second person so
// internal identifiers never leak to the customer. The match is bounded so
// an id that is a prefix of another ("user-1" in "user-10") is left alone.
func replaceUserID(text, userID string, target contractx.Language) string {
	if strings.TrimSpace(userID) == "" {
		return text
	}
	pronoun := "você"
	if target == contractx.LanguageEnglish {
		pronoun = "you"
	}
	text = strings.ReplaceAll(text, fmt.Sprintf("%q", userID), pronoun)
	idRe := regexp.MustCompile(`\b` + regexp.QuoteMeta(userID) + `\b`)
	return idRe.ReplaceAllString(text, pronoun)
}

var (
	balanceRe = regexp.MustCompile(`(?i)(?:balance|saldo)[^0-9]{0,40}?(?:R\$\s*)?([\d.,]+)`)
	priceRe   = regexp.MustCompile(`(?i)R\$\s*([\d.,]+)`)
)

var purchaseIntentTerms = []string{
	"afford", "buy", "purchase", "sufficient", "enough",
	"comprar", "compra", "adquirir", "suficiente",
	"alcança", "alcanca", "dá para", "da para", "posso pagar",
}

// asksAffordability reports whether the query is a purchase/affordability
// question. Any R$ figure in a knowledge answer would otherwise pass for a
// price, so the comparison only runs when the user actually asked for one.
func asksAffordability(query string) bool {
	lower := strings.ToLower(query)
	for _, t := range purchaseIntentTerms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// affordability compares the balance reported by the support responder with
// the first price figure from the knowledge responder and states whether the
// balance covers it, quoting both figures as they appeared.
func affordability(query string, results []contractx.ResponderResult, target contractx.Language) string {
	if !asksAffordability(query) {
		return ""
	}

	var supportText, knowledgeText string
	for _, res := range results {
		if res.Failed {
			continue
		}
		switch res.Responder {
		case contractx.ResponderSupport:
			supportText = res.Text
		case contractx.ResponderKnowledge:
			knowledgeText = res.Text
		}
	}
	if supportText == "" || knowledgeText == "" {
		return ""
	}

	balMatch := balanceRe.FindStringSubmatch(supportText)
	priceMatch := priceRe.FindStringSubmatch(knowledgeText)
	if balMatch == nil || priceMatch == nil {
		return ""
	}

	balance, okB := parseAmount(balMatch[1])
	price, okP := parseAmount(priceMatch[1])
	if !okB || !okP {
		return ""
	}

	if target == contractx.LanguageEnglish {
		if balance >= price {
			return fmt.Sprintf("Your balance of R$ %s covers the price of R$ %s.", balMatch[1], priceMatch[1])
		}
		return fmt.Sprintf("Your balance of R$ %s is not enough for the price of R$ %s.", balMatch[1], priceMatch[1])
	}
	if balance >= price {
		return fmt.Sprintf("Seu saldo de R$ %s cobre o preço de R$ %s.", balMatch[1], priceMatch[1])
	}
	return fmt.Sprintf("Seu saldo de R$ %s não é suficiente para o preço de R$ %s.", balMatch[1], priceMatch[1])
}

// parseAmount handles both 1.234,56 and 1,234.56 conventions. A lone comma
// followed by exactly three digits ("15,250") is a thousands group, not
// centavos: currency decimals are two digits in both conventions.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma > lastDot && lastDot == -1 &&
		strings.Count(s, ",") == 1 && len(s)-lastComma-1 == 3:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	default:
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

type polishPayload struct {
	Mode           string `json:"mode"`
	Query          string `json:"query"`
	TargetLanguage string `json:"target_language"`
	Draft          string `json:"draft"`
}

func (s *Synthesizer) polish(ctx context.Context, mode, query string, target contractx.Language, draft string) (string, error) {
	input, err := json.Marshal(polishPayload{
		Mode:           mode,
		Query:          query,
		TargetLanguage: string(target),
		Draft:          draft,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal synthesis payload: %v", contractx.ErrValidation, err)
	}
	return s.model.Complete(ctx, contractx.Completion{
		System: s.prompt,
		User:   string(input),
	})
}
