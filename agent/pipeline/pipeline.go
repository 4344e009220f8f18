// Package pipeline runs the full query flow: safety gate, routing, responder
// execution, synthesis. Every stage degrades instead of aborting; the only
// terminal outcomes are a refusal, a synthesized answer, or an apology.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	contractx "github.com/paylane-labs/agent-swarm/agent/contract"
	sessionx "github.com/paylane-labs/agent-swarm/agent/session"
	tracex "github.com/paylane-labs/agent-swarm/agent/trace"
	logx "github.com/paylane-labs/agent-swarm/pkg/logger"
)

const (
	apologyEN = "Sorry, I could not process your question right now. Please try again in a moment."
	apologyPT = "Desculpe, não consegui processar sua pergunta agora. Tente novamente em instantes."
)

type Pipeline struct {
	guard       contractx.Guard
	router      contractx.Router
	coordinator contractx.Coordinator
	synthesizer contractx.Synthesizer
	sessions    *sessionx.Cache
	log         zerolog.Logger
}

func New(
	guard contractx.Guard,
	router contractx.Router,
	coordinator contractx.Coordinator,
	synthesizer contractx.Synthesizer,
	sessions *sessionx.Cache,
) (*Pipeline, error) {
	if guard == nil {
		return nil, fmt.Errorf("%w: guard is required", contractx.ErrValidation)
	}
	if router == nil {
		return nil, fmt.Errorf("%w: router is required", contractx.ErrValidation)
	}
	if coordinator == nil {
		return nil, fmt.Errorf("%w: coordinator is required", contractx.ErrValidation)
	}
	if synthesizer == nil {
		return nil, fmt.Errorf("%w: synthesizer is required", contractx.ErrValidation)
	}
	return &Pipeline{
		guard:       guard,
		router:      router,
		coordinator: coordinator,
		synthesizer: synthesizer,
		sessions:    sessions,
		log:         logx.Component("pipeline"),
	}, nil
}

// Handle processes one query end to end. It never panics outward: a panic in
// any stage becomes an error-shaped response so the HTTP layer always has a
// well-formed body to return.
func (p *Pipeline) Handle(ctx context.Context, text, userID string) (resp contractx.FinalResponse) {
	tr := tracex.New()

	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Str("user_id", userID).Interface("panic", r).Msg("pipeline panicked")
			tr.Record("error", map[string]any{"panic": fmt.Sprint(r)})
			resp = contractx.FinalResponse{
				Text:       fmt.Sprintf("%s (erro: %v)", apologyPT, r),
				AgentsUsed: []string{contractx.AgentError},
				Sources:    []string{},
				Debug:      tr.Snapshot(),
			}
		}
	}()

	verdict := p.guard.Check(ctx, text, userID, tr)
	if verdict.Status == contractx.VerdictBlocked {
		return contractx.FinalResponse{
			Text:       verdict.Refusal,
			AgentsUsed: []string{contractx.AgentGuardrail},
			Sources:    []string{},
			Debug:      tr.Snapshot(),
		}
	}

	decision := p.router.Classify(ctx, text, tr)
	results := p.coordinator.Execute(ctx, text, userID, decision, tr)

	agents := make([]string, 0, len(results))
	allFailed := true
	for _, res := range results {
		agents = append(agents, res.Responder)
		if !res.Failed {
			allFailed = false
		}
	}

	if allFailed {
		return contractx.FinalResponse{
			Text:       apology(decision.Language),
			AgentsUsed: agents,
			Sources:    []string{},
			Debug:      tr.Snapshot(),
		}
	}

	answer, err := p.synthesizer.Synthesize(ctx, text, userID, decision.Language, results, tr)
	if err != nil {
		// The synthesizer already degrades internally; this only fires when
		// there was no usable text at all despite a non-failed result.
		p.log.Error().Err(err).Msg("synthesis produced no text, joining raw results")
		answer = joinTexts(results)
		if answer == "" {
			answer = apology(decision.Language)
		}
	}

	if p.sessions != nil {
		p.sessions.AddExchange(userID, text, answer)
	}

	return contractx.FinalResponse{
		Text:       answer,
		AgentsUsed: agents,
		Sources:    collectSources(results),
		Debug:      tr.Snapshot(),
	}
}

func apology(lang contractx.Language) string {
	if lang == contractx.LanguageEnglish {
		return apologyEN
	}
	return apologyPT
}

// collectSources merges non-failed responder sources, deduplicated in first
// appearance order. Failed responders contribute nothing.
func collectSources(results []contractx.ResponderResult) []string {
	seen := make(map[string]struct{})
	sources := []string{}
	for _, res := range results {
		if res.Failed {
			continue
		}
		for _, src := range res.Sources {
			if src == "" {
				continue
			}
			if _, ok := seen[src]; ok {
				continue
			}
			seen[src] = struct{}{}
			sources = append(sources, src)
		}
	}
	return sources
}

func joinTexts(results []contractx.ResponderResult) string {
	var parts []string
	for _, res := range results {
		if res.Failed || strings.TrimSpace(res.Text) == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(res.Text))
	}
	return strings.Join(parts, "\n\n")
}
