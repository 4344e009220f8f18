// Package guard is the safety gate that runs before routing. It classifies
// queries as SAFE or BLOCKED via an LLM call and fails OPEN on mechanism
// failure: availability is preferred over blocking, because the support
// responder's caller-id isolation bounds the damage of a false negative.
// That tradeoff is deliberate and documented, not incidental.
package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	contractx "github.com/paylane-labs/agent-swarm/agent/contract"
	tracex "github.com/paylane-labs/agent-swarm/agent/trace"
	logx "github.com/paylane-labs/agent-swarm/pkg/logger"
)

const defaultRefusal = "Sorry, I cannot process this request due to safety policies."

type Guard struct {
	model  contractx.ChatModel
	prompt string
	log    zerolog.Logger
}

var _ contractx.Guard = (*Guard)(nil)

func New(model contractx.ChatModel, systemPrompt string) (*Guard, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: guard chat model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: guard prompt is required", contractx.ErrValidation)
	}
	return &Guard{
		model:  model,
		prompt: systemPrompt,
		log:    logx.Component("guard"),
	}, nil
}

type checkPayload struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

type verdictOutput struct {
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// Check classifies the query. The userID is the caller-asserted identity and
// serves as the reference point for privacy-violation detection.
func (g *Guard) Check(ctx context.Context, text, userID string, tr *tracex.Trace) contractx.SafetyVerdict {
	verdict := g.check(ctx, text, userID)

	status := "passed"
	if verdict.Status == contractx.VerdictBlocked {
		status = "blocked"
		g.log.Warn().Str("user_id", userID).Str("reason", verdict.Reason).Msg("query blocked")
	}
	tr.SetGuardrail(status)
	tr.Record("guardrail", map[string]any{
		"status": string(verdict.Status),
		"reason": verdict.Reason,
	})
	return verdict
}

func (g *Guard) check(ctx context.Context, text, userID string) contractx.SafetyVerdict {
	input, err := json.Marshal(checkPayload{Query: text, UserID: userID})
	if err != nil {
		return failOpen(fmt.Sprintf("marshal guard payload: %v", err))
	}

	out, err := g.model.Complete(ctx, contractx.Completion{
		System:    g.prompt,
		User:      string(input),
		ForceJSON: true,
	})
	if err != nil {
		g.log.Error().Err(err).Msg("guard model failed, failing open")
		return failOpen(fmt.Sprintf("guard mechanism error: %v", err))
	}

	var parsed verdictOutput
	if err := json.Unmarshal([]byte(stripFences(out)), &parsed); err != nil {
		g.log.Error().Err(err).Str("raw", out).Msg("guard output unparseable, failing open")
		return failOpen(fmt.Sprintf("unparseable guard output: %v", err))
	}

	switch strings.ToUpper(strings.TrimSpace(parsed.Status)) {
	case string(contractx.VerdictBlocked):
		refusal := strings.TrimSpace(parsed.Message)
		if refusal == "" {
			refusal = defaultRefusal
		}
		return contractx.SafetyVerdict{
			Status:  contractx.VerdictBlocked,
			Reason:  strings.TrimSpace(parsed.Reason),
			Refusal: refusal,
		}
	case string(contractx.VerdictSafe):
		return contractx.SafetyVerdict{Status: contractx.VerdictSafe}
	default:
		return failOpen(fmt.Sprintf("unknown guard status %q", parsed.Status))
	}
}

func failOpen(reason string) contractx.SafetyVerdict {
	return contractx.SafetyVerdict{
		Status: contractx.VerdictSafe,
		Reason: reason,
	}
}

// stripFences removes a surrounding markdown code fence, which some models
// emit even in JSON mode.
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
