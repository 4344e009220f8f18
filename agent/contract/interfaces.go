package contract

import (
	"context"

	tracex "github.com/paylane-labs/agent-swarm/agent/trace"
)

// ChatModel is the only seam to the underlying LLM provider. Implementations
// must be substitutable with deterministic fakes in tests.
type ChatModel interface {
	Complete(ctx context.Context, req Completion) (string, error)
}

// Guard classifies a query as safe or blocked before any responder runs.
// It never returns an error: mechanism failures fail open to SAFE with the
// failure reason recorded in the verdict and trace.
type Guard interface {
	Check(ctx context.Context, text, userID string, tr *tracex.Trace) SafetyVerdict
}

// Router classifies a safe query and detects its language in one decision.
// Classification failures are recovered internally with documented defaults.
type Router interface {
	Classify(ctx context.Context, text string, tr *tracex.Trace) RoutingDecision
}

// Responder produces an answer for one class of query using one external
// capability. The trace handle is passed explicitly so results recorded from
// concurrently running responders land in the same request trace.
type Responder interface {
	ID() string
	Respond(ctx context.Context, text, userID string, tr *tracex.Trace) ResponderResult
}

// Coordinator executes a routing decision, invoking one responder directly
// or both concurrently, and returns every result including failed ones.
type Coordinator interface {
	Execute(ctx context.Context, text, userID string, decision RoutingDecision, tr *tracex.Trace) []ResponderResult
}

// Synthesizer merges responder outputs into the final user-facing text in
// the target language. On error the caller falls back to the raw text.
type Synthesizer interface {
	Synthesize(ctx context.Context, query, userID string, target Language, results []ResponderResult, tr *tracex.Trace) (string, error)
}

// Retriever is the vector-search capability over the product document base.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]Passage, error)
}

// WebSearcher is the web-search capability.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]WebResult, error)
}

// AccountStore is the read-mostly account-data capability. GetAccount
// returns ErrNotFound for unknown ids; CreateAccount returns ErrDuplicate
// when the id is already taken.
type AccountStore interface {
	GetAccount(ctx context.Context, userID string) (*Account, error)
	GetTransactions(ctx context.Context, userID string, limit int) ([]Transaction, error)
	GetCards(ctx context.Context, userID string) ([]Card, error)
	CreateAccount(ctx context.Context, acc *Account) error
}
