// Package responder holds the two specialist responders the coordinator
// dispatches to. Each wraps one external capability and returns a
// ResponderResult; failures are captured per result, never panicked.
package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	contractx "github.com/paylane-labs/agent-swarm/agent/contract"
	tracex "github.com/paylane-labs/agent-swarm/agent/trace"
	logx "github.com/paylane-labs/agent-swarm/pkg/logger"
)

const (
	defaultTopK       = 5
	defaultWebResults = 3
	noInfoText        = "No information was found on this topic in the knowledge base or on the web."
)

// Knowledge answers product and general-knowledge questions. It prefers the
// retrieval capability for the product domain and falls back to (or adds)
// web search for general, current-events, and competitor questions. It never
// answers account questions; those belong to the support responder.
type Knowledge struct {
	model       contractx.ChatModel
	retriever   contractx.Retriever
	web         contractx.WebSearcher
	prompt      string
	callTimeout time.Duration
	log         zerolog.Logger
}

var _ contractx.Responder = (*Knowledge)(nil)

func NewKnowledge(
	model contractx.ChatModel,
	retriever contractx.Retriever,
	web contractx.WebSearcher,
	systemPrompt string,
	callTimeout time.Duration,
) (*Knowledge, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: knowledge chat model is required", contractx.ErrValidation)
	}
	if retriever == nil {
		return nil, fmt.Errorf("%w: retriever is required", contractx.ErrValidation)
	}
	if web == nil {
		return nil, fmt.Errorf("%w: web searcher is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: knowledge prompt is required", contractx.ErrValidation)
	}
	if callTimeout <= 0 {
		callTimeout = 20 * time.Second
	}
	return &Knowledge{
		model:       model,
		retriever:   retriever,
		web:         web,
		prompt:      systemPrompt,
		callTimeout: callTimeout,
		log:         logx.Component("knowledge"),
	}, nil
}

func (k *Knowledge) ID() string { return contractx.ResponderKnowledge }

func (k *Knowledge) Respond(ctx context.Context, text, userID string, tr *tracex.Trace) contractx.ResponderResult {
	wantsWeb := looksGeneral(text)
	wantsRetrieval := !wantsWeb || looksProduct(text)

	var (
		passages []contractx.Passage
		hits     []contractx.WebResult
		sources  []string
	)

	if wantsRetrieval {
		callCtx, cancel := context.WithTimeout(ctx, k.callTimeout)
		found, err := k.retriever.Search(callCtx, text, defaultTopK)
		cancel()
		if err != nil {
			k.log.Warn().Err(err).Msg("retrieval failed")
			tr.Record("tool_usage", map[string]any{"tool": "retrieval", "input": text, "error": err.Error()})
		} else {
			passages = found
			tr.Record("tool_usage", map[string]any{"tool": "retrieval", "input": text, "results": len(found)})
		}
	}

	if wantsWeb || len(passages) == 0 {
		callCtx, cancel := context.WithTimeout(ctx, k.callTimeout)
		found, err := k.web.Search(callCtx, text, defaultWebResults)
		cancel()
		if err != nil {
			k.log.Warn().Err(err).Msg("web search failed")
			tr.Record("tool_usage", map[string]any{"tool": "web_search", "input": text, "error": err.Error()})
		} else {
			hits = found
			tr.Record("tool_usage", map[string]any{"tool": "web_search", "input": text, "results": len(found)})
		}
	}

	for _, p := range passages {
		sources = append(sources, p.Source)
	}
	for _, h := range hits {
		sources = append(sources, h.URL)
	}

	// Zero evidence is an honest answer, not a failure.
	if len(passages) == 0 && len(hits) == 0 {
		return contractx.ResponderResult{
			Responder: k.ID(),
			Text:      noInfoText,
		}
	}

	answer, err := k.compose(ctx, text, passages, hits)
	if err != nil {
		return contractx.ResponderResult{
			Responder: k.ID(),
			Failed:    true,
			Err:       err.Error(),
		}
	}

	return contractx.ResponderResult{
		Responder: k.ID(),
		Text:      answer,
		Sources:   sources,
	}
}

type knowledgePayload struct {
	Query    string   `json:"query"`
	Evidence []string `json:"evidence"`
}

func (k *Knowledge) compose(ctx context.Context, text string, passages []contractx.Passage, hits []contractx.WebResult) (string, error) {
	evidence := make([]string, 0, len(passages)+len(hits))
	for _, p := range passages {
		evidence = append(evidence, p.Text)
	}
	for _, h := range hits {
		evidence = append(evidence, fmt.Sprintf("%s: %s", h.Title, h.Snippet))
	}

	input, err := json.Marshal(knowledgePayload{Query: text, Evidence: evidence})
	if err != nil {
		return "", fmt.Errorf("%w: marshal knowledge payload: %v", contractx.ErrValidation, err)
	}

	out, err := k.model.Complete(ctx, contractx.Completion{
		System: k.prompt,
		User:   string(input),
	})
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(out)
	if answer == "" {
		return "", fmt.Errorf("%w: empty knowledge answer", contractx.ErrSchemaViolation)
	}
	return answer, nil
}

var productTerms = []string{
	"paylane", "maquininha", "card machine", "tap to pay", "pix",
	"payment link", "link de pagamento", "taxa", "fee", "fees",
	"cashback", "conta inteligente", "smart machine", "plano", "plan",
}

var generalTerms = []string{
	"news", "notícia", "noticias", "latest", "último jogo", "weather",
	"competitor", "concorrente", "compare", "comparado", " vs ",
	"mercado pago", "pagseguro", "stone", "moderninha",
}

func looksProduct(text string) bool {
	return containsAny(text, productTerms)
}

func looksGeneral(text string) bool {
	return containsAny(text, generalTerms)
}

func containsAny(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
