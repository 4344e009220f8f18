package responder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	contractx "github.com/paylane-labs/agent-swarm/agent/contract"
	sessionx "github.com/paylane-labs/agent-swarm/agent/session"
	tracex "github.com/paylane-labs/agent-swarm/agent/trace"
	logx "github.com/paylane-labs/agent-swarm/pkg/logger"
)

const (
	// AccountSource is the symbolic source id for account-database answers.
	AccountSource = "internal://accounts-db"

	transactionLimit = 5
)

// Support answers questions about the caller's own account. It resolves
// data using ONLY the caller-context user id; identities mentioned inside
// the query text are never honored, even if the query claims otherwise.
// This holds even when the safety gate fails open.
type Support struct {
	model       contractx.ChatModel
	accounts    contractx.AccountStore
	sessions    *sessionx.Cache
	prompt      string
	callTimeout time.Duration
	log         zerolog.Logger
}

var _ contractx.Responder = (*Support)(nil)

func NewSupport(
	model contractx.ChatModel,
	accounts contractx.AccountStore,
	sessions *sessionx.Cache,
	systemPrompt string,
	callTimeout time.Duration,
) (*Support, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: support chat model is required", contractx.ErrValidation)
	}
	if accounts == nil {
		return nil, fmt.Errorf("%w: account store is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: support prompt is required", contractx.ErrValidation)
	}
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &Support{
		model:       model,
		accounts:    accounts,
		sessions:    sessions,
		prompt:      systemPrompt,
		callTimeout: callTimeout,
		log:         logx.Component("support"),
	}, nil
}

func (s *Support) ID() string { return contractx.ResponderSupport }

func (s *Support) Respond(ctx context.Context, text, userID string, tr *tracex.Trace) contractx.ResponderResult {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	acct, err := s.accounts.GetAccount(callCtx, userID)
	if err != nil {
		if errors.Is(err, contractx.ErrNotFound) {
			tr.Record("tool_usage", map[string]any{"tool": "get_account", "input": userID, "output": "not found"})
			return contractx.ResponderResult{
				Responder: s.ID(),
				Text:      fmt.Sprintf("No account was found for id %q, so I cannot access this account.", userID),
			}
		}
		tr.Record("tool_usage", map[string]any{"tool": "get_account", "input": userID, "error": err.Error()})
		return contractx.ResponderResult{
			Responder: s.ID(),
			Failed:    true,
			Err:       err.Error(),
		}
	}
	tr.Record("tool_usage", map[string]any{"tool": "get_account", "input": userID, "output": "ok"})

	snapshot := s.buildSnapshot(callCtx, text, userID, acct, tr)

	// Best-effort write-back; never blocks the response path. Cached data is
	// only ever used for greeting personalization, not as account truth.
	if s.sessions != nil {
		s.sessions.RememberAccount(userID, acct.Name, acct.Balance, acct.Status)
	}

	answer, err := s.diagnose(ctx, text, snapshot)
	if err != nil {
		// The data fetch succeeded; fall back to the raw snapshot so facts
		// still reach the synthesizer.
		s.log.Warn().Err(err).Msg("support diagnosis failed, returning raw snapshot")
		tr.Record("responder", map[string]any{"responder": s.ID(), "fallback": "raw_snapshot", "error": err.Error()})
		answer = snapshot
	}

	return contractx.ResponderResult{
		Responder: s.ID(),
		Text:      answer,
		Sources:   []string{AccountSource},
	}
}

// buildSnapshot renders the account facts as plain text, fetching
// transactions and cards only when the query mentions them.
func (s *Support) buildSnapshot(ctx context.Context, text, userID string, acct *contractx.Account, tr *tracex.Trace) string {
	var b strings.Builder

	greeting := acct.Name
	if s.sessions != nil {
		if rec, ok := s.sessions.Get(userID); ok && rec.Name != "" {
			greeting = rec.Name
		}
	}

	fmt.Fprintf(&b, "Customer: %s\n", greeting)
	fmt.Fprintf(&b, "Balance: R$ %.2f\n", acct.Balance)
	fmt.Fprintf(&b, "Status: %s", strings.ToUpper(acct.Status))
	if acct.Status == "blocked" && acct.BlockReason != "" {
		fmt.Fprintf(&b, " (Reason: %s)", acct.BlockReason)
	}
	b.WriteString("\n")

	if mentionsTransactions(text) {
		txs, err := s.accounts.GetTransactions(ctx, userID, transactionLimit)
		if err != nil {
			tr.Record("tool_usage", map[string]any{"tool": "get_transactions", "input": userID, "error": err.Error()})
		} else {
			tr.Record("tool_usage", map[string]any{"tool": "get_transactions", "input": userID, "results": len(txs)})
			b.WriteString("Recent transactions:\n")
			for _, tx := range txs {
				fmt.Fprintf(&b, "- [%s] %s: R$ %.2f (%s)",
					tx.CreatedAt.Format("2006-01-02"), strings.ToUpper(tx.Type), tx.Amount, tx.Status)
				if tx.Status == "failed" && tx.FailureReason != "" {
					fmt.Fprintf(&b, " | Reason: %s", tx.FailureReason)
				}
				if tx.Counterparty != "" {
					fmt.Fprintf(&b, " | To/From: %s", tx.Counterparty)
				}
				b.WriteString("\n")
			}
			if len(txs) == 0 {
				b.WriteString("- none\n")
			}
		}
	}

	if mentionsCards(text) {
		cards, err := s.accounts.GetCards(ctx, userID)
		if err != nil {
			tr.Record("tool_usage", map[string]any{"tool": "get_cards", "input": userID, "error": err.Error()})
		} else {
			tr.Record("tool_usage", map[string]any{"tool": "get_cards", "input": userID, "results": len(cards)})
			b.WriteString("Cards:\n")
			for _, card := range cards {
				fmt.Fprintf(&b, "- *%s (%s) limit R$ %.2f, used R$ %.2f, available R$ %.2f\n",
					card.Last4, strings.ToUpper(card.Status), card.LimitAmount, card.UsedAmount,
					card.LimitAmount-card.UsedAmount)
			}
			if len(cards) == 0 {
				b.WriteString("- none\n")
			}
		}
	}

	return strings.TrimSpace(b.String())
}

type supportPayload struct {
	Query    string `json:"query"`
	Snapshot string `json:"account_snapshot"`
}

func (s *Support) diagnose(ctx context.Context, text, snapshot string) (string, error) {
	input, err := json.Marshal(supportPayload{Query: text, Snapshot: snapshot})
	if err != nil {
		return "", fmt.Errorf("%w: marshal support payload: %v", contractx.ErrValidation, err)
	}

	out, err := s.model.Complete(ctx, contractx.Completion{
		System: s.prompt,
		User:   string(input),
	})
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(out)
	if answer == "" {
		return "", fmt.Errorf("%w: empty support answer", contractx.ErrSchemaViolation)
	}
	return answer, nil
}

var transactionTerms = []string{
	"transaction", "transações", "transacoes", "transferência", "transferencia",
	"transfer", "payment", "pagamento", "payout", "history", "histórico",
	"historico", "pix", "purchase", "compra",
}

var cardTerms = []string{
	"card", "cartão", "cartao", "limit", "limite",
}

func mentionsTransactions(text string) bool {
	return containsAny(text, transactionTerms)
}

func mentionsCards(text string) bool {
	return containsAny(text, cardTerms)
}
