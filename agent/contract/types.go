package contract

import (
	"time"

	tracex "github.com/paylane-labs/agent-swarm/agent/trace"
)

// Category is the routing classification of a query.
type Category string

const (
	CategoryKnowledge Category = "KNOWLEDGE"
	CategorySupport   Category = "SUPPORT"
	CategoryBoth      Category = "BOTH"
)

// Language is the binary language choice for the final response.
type Language string

const (
	LanguagePortuguese Language = "PORTUGUESE"
	LanguageEnglish    Language = "ENGLISH"
)

// RoutingDecision is produced exactly once per query and is immutable after.
type RoutingDecision struct {
	Category Category `json:"category"`
	Language Language `json:"language"`
}

// VerdictStatus is the safety gate outcome.
type VerdictStatus string

const (
	VerdictSafe    VerdictStatus = "SAFE"
	VerdictBlocked VerdictStatus = "BLOCKED"
)

// SafetyVerdict short-circuits the pipeline when Status is BLOCKED.
// Refusal carries the user-facing message; Reason is for logs and traces.
type SafetyVerdict struct {
	Status  VerdictStatus `json:"status"`
	Reason  string        `json:"reason,omitempty"`
	Refusal string        `json:"refusal,omitempty"`
}

// Responder identifiers as they appear in agent_used.
const (
	ResponderKnowledge = "knowledge"
	ResponderSupport   = "support"
	AgentGuardrail     = "guardrail"
	AgentError         = "error"
)

// ResponderResult is owned by the coordinator invocation that created it and
// never shared across requests. A failed responder yields Failed=true with
// the error string; its sibling still completes.
type ResponderResult struct {
	Responder string   `json:"responder"`
	Text      string   `json:"text"`
	Sources   []string `json:"sources,omitempty"`
	Failed    bool     `json:"failed,omitempty"`
	Err       string   `json:"error,omitempty"`
}

// FinalResponse is the terminal artifact returned to the API boundary.
type FinalResponse struct {
	Text       string          `json:"response"`
	AgentsUsed []string        `json:"agent_used"`
	Sources    []string        `json:"sources"`
	Debug      tracex.Snapshot `json:"debug_info"`
}

// Passage is one ranked hit from the retrieval capability.
type Passage struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// WebResult is one ranked hit from the web-search capability.
type WebResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Account is the structured record behind the account-data capability.
type Account struct {
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	Status      string    `json:"account_status"`
	Plan        string    `json:"plan,omitempty"`
	Balance     float64   `json:"balance"`
	BlockReason string    `json:"block_reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Transaction struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	Type          string    `json:"type"`
	Amount        float64   `json:"amount"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Counterparty  string    `json:"counterparty,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Card struct {
	ID          int64   `json:"id"`
	UserID      string  `json:"user_id"`
	Last4       string  `json:"last_4"`
	Status      string  `json:"status"`
	LimitAmount float64 `json:"limit_amount"`
	UsedAmount  float64 `json:"used_amount"`
}

// Completion is a single chat-model call. ForceJSON asks the provider for a
// JSON-object response so the strict parsers downstream get clean input.
type Completion struct {
	System    string
	User      string
	ForceJSON bool
}
