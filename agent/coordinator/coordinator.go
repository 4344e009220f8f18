// Package coordinator executes a routing decision. A single-category query
// invokes its responder synchronously; BOTH runs the support and knowledge
// responders in parallel goroutines. Each goroutine gets the request's trace
// handle explicitly; there is no ambient per-request state to inherit.
package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	contractx "github.com/paylane-labs/agent-swarm/agent/contract"
	tracex "github.com/paylane-labs/agent-swarm/agent/trace"
	logx "github.com/paylane-labs/agent-swarm/pkg/logger"
)

type Coordinator struct {
	knowledge contractx.Responder
	support   contractx.Responder
	log       zerolog.Logger
}

var _ contractx.Coordinator = (*Coordinator)(nil)

func New(knowledge, support contractx.Responder) (*Coordinator, error) {
	if knowledge == nil {
		return nil, fmt.Errorf("%w: knowledge responder is required", contractx.ErrValidation)
	}
	if support == nil {
		return nil, fmt.Errorf("%w: support responder is required", contractx.ErrValidation)
	}
	return &Coordinator{
		knowledge: knowledge,
		support:   support,
		log:       logx.Component("coordinator"),
	}, nil
}

// Execute returns one result per invoked responder, failed ones included.
// For BOTH the support result always precedes the knowledge result; a
// failure in one responder never cancels the other.
func (c *Coordinator) Execute(
	ctx context.Context,
	text, userID string,
	decision contractx.RoutingDecision,
	tr *tracex.Trace,
) []contractx.ResponderResult {
	switch decision.Category {
	case contractx.CategorySupport:
		return []contractx.ResponderResult{c.support.Respond(ctx, text, userID, tr)}
	case contractx.CategoryBoth:
		return c.executeBoth(ctx, text, userID, tr)
	default:
		// KNOWLEDGE, and the safety net for any unexpected category.
		return []contractx.ResponderResult{c.knowledge.Respond(ctx, text, userID, tr)}
	}
}

func (c *Coordinator) executeBoth(ctx context.Context, text, userID string, tr *tracex.Trace) []contractx.ResponderResult {
	results := make([]contractx.ResponderResult, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0] = c.support.Respond(ctx, text, userID, tr)
	}()
	go func() {
		defer wg.Done()
		results[1] = c.knowledge.Respond(ctx, text, userID, tr)
	}()
	wg.Wait()

	for _, res := range results {
		if res.Failed {
			c.log.Warn().Str("responder", res.Responder).Str("error", res.Err).
				Msg("responder failed, proceeding with partial results")
		}
	}
	return results
}
