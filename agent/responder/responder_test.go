package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	contractx "github.com/paylane-labs/agent-swarm/agent/contract"
	sessionx "github.com/paylane-labs/agent-swarm/agent/session"
	tracex "github.com/paylane-labs/agent-swarm/agent/trace"
)

type fakeModel struct {
	out     string
	err     error
	lastReq contractx.Completion
}

func (f *fakeModel) Complete(_ context.Context, req contractx.Completion) (string, error) {
	f.lastReq = req
	return f.out, f.err
}

type fakeRetriever struct {
	passages []contractx.Passage
	err      error
	queries  []string
}

func (f *fakeRetriever) Search(_ context.Context, query string, _ int) ([]contractx.Passage, error) {
	f.queries = append(f.queries, query)
	return f.passages, f.err
}

type fakeWeb struct {
	hits    []contractx.WebResult
	err     error
	queries []string
}

func (f *fakeWeb) Search(_ context.Context, query string, _ int) ([]contractx.WebResult, error) {
	f.queries = append(f.queries, query)
	return f.hits, f.err
}

type fakeAccounts struct {
	accounts     map[string]*contractx.Account
	transactions []contractx.Transaction
	cards        []contractx.Card
	err          error
	requestedIDs []string
}

func (f *fakeAccounts) GetAccount(_ context.Context, userID string) (*contractx.Account, error) {
	f.requestedIDs = append(f.requestedIDs, userID)
	if f.err != nil {
		return nil, f.err
	}
	acc, ok := f.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", contractx.ErrNotFound, userID)
	}
	return acc, nil
}

func (f *fakeAccounts) GetTransactions(_ context.Context, userID string, _ int) ([]contractx.Transaction, error) {
	f.requestedIDs = append(f.requestedIDs, userID)
	return f.transactions, nil
}

func (f *fakeAccounts) GetCards(_ context.Context, userID string) ([]contractx.Card, error) {
	f.requestedIDs = append(f.requestedIDs, userID)
	return f.cards, nil
}

func (f *fakeAccounts) CreateAccount(context.Context, *contractx.Account) error { return nil }

func newKnowledge(t *testing.T, model *fakeModel, retriever *fakeRetriever, web *fakeWeb) *Knowledge {
	t.Helper()
	k, err := NewKnowledge(model, retriever, web, "prompt", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func TestKnowledgeUsesRetrievalForProductQuestions(t *testing.T) {
	model := &fakeModel{out: "The card machine fee is 2.99% per sale."}
	retriever := &fakeRetriever{passages: []contractx.Passage{
		{Text: "Fee is 2.99%", Source: "docs/fees.md", Score: 0.9},
	}}
	web := &fakeWeb{}
	k := newKnowledge(t, model, retriever, web)

	res := k.Respond(context.Background(), "what is the maquininha fee?", "user-1", tracex.New())

	if res.Failed {
		t.Fatalf("unexpected failure: %s", res.Err)
	}
	if len(retriever.queries) != 1 {
		t.Error("retriever should be queried")
	}
	if len(web.queries) != 0 {
		t.Error("web search should be skipped when retrieval has evidence")
	}
	if len(res.Sources) != 1 || res.Sources[0] != "docs/fees.md" {
		t.Errorf("sources = %v", res.Sources)
	}
}

func TestKnowledgeUsesWebForGeneralQuestions(t *testing.T) {
	model := &fakeModel{out: "Mercado Pago charges 3.5%."}
	retriever := &fakeRetriever{}
	web := &fakeWeb{hits: []contractx.WebResult{
		{Title: "Rates", Snippet: "3.5%", URL: "https://example.com/rates"},
	}}
	k := newKnowledge(t, model, retriever, web)

	res := k.Respond(context.Background(), "compare with mercado pago rates", "user-1", tracex.New())

	if res.Failed {
		t.Fatalf("unexpected failure: %s", res.Err)
	}
	if len(web.queries) != 1 {
		t.Error("web search should run for competitor questions")
	}
	if len(res.Sources) != 1 || res.Sources[0] != "https://example.com/rates" {
		t.Errorf("sources = %v", res.Sources)
	}
}

func TestKnowledgeFallsBackToWebOnEmptyRetrieval(t *testing.T) {
	model := &fakeModel{out: "answer"}
	retriever := &fakeRetriever{}
	web := &fakeWeb{hits: []contractx.WebResult{{Title: "t", Snippet: "s", URL: "https://e.com"}}}
	k := newKnowledge(t, model, retriever, web)

	res := k.Respond(context.Background(), "tell me about payment links", "user-1", tracex.New())

	if len(web.queries) != 1 {
		t.Error("web search should run when retrieval finds nothing")
	}
	if res.Failed {
		t.Fatalf("unexpected failure: %s", res.Err)
	}
}

func TestKnowledgeHonestWhenNoEvidence(t *testing.T) {
	model := &fakeModel{out: "should not be called"}
	k := newKnowledge(t, model, &fakeRetriever{}, &fakeWeb{})

	res := k.Respond(context.Background(), "anything at all", "user-1", tracex.New())

	if res.Failed {
		t.Error("zero evidence is not a failure")
	}
	if res.Text != noInfoText {
		t.Errorf("text = %q, want honest no-info answer", res.Text)
	}
	if len(res.Sources) != 0 {
		t.Errorf("sources = %v, want none", res.Sources)
	}
}

func TestKnowledgeFailsOnModelError(t *testing.T) {
	model := &fakeModel{err: errors.New("upstream 500")}
	retriever := &fakeRetriever{passages: []contractx.Passage{{Text: "x", Source: "s"}}}
	k := newKnowledge(t, model, retriever, &fakeWeb{})

	res := k.Respond(context.Background(), "what are the taxas?", "user-1", tracex.New())

	if !res.Failed {
		t.Error("model error with evidence should mark the result failed")
	}
}

func TestKnowledgeToolErrorsAreNotFatal(t *testing.T) {
	model := &fakeModel{out: "answer from web only"}
	retriever := &fakeRetriever{err: errors.New("pg down")}
	web := &fakeWeb{hits: []contractx.WebResult{{Title: "t", Snippet: "s", URL: "https://e.com"}}}
	k := newKnowledge(t, model, retriever, web)

	res := k.Respond(context.Background(), "maquininha fees?", "user-1", tracex.New())

	if res.Failed {
		t.Errorf("retrieval error should degrade to web, got failure: %s", res.Err)
	}
}

func newSupport(t *testing.T, model *fakeModel, accounts *fakeAccounts, sessions *sessionx.Cache) *Support {
	t.Helper()
	s, err := NewSupport(model, accounts, sessions, "prompt", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func activeAccount(id string) *contractx.Account {
	return &contractx.Account{
		UserID:  id,
		Name:    "Maria Silva",
		Status:  "active",
		Balance: 15250.50,
	}
}

func TestSupportUsesCallerIDOnly(t *testing.T) {
	accounts := &fakeAccounts{accounts: map[string]*contractx.Account{"user-7": activeAccount("user-7")}}
	model := &fakeModel{out: "Your balance is R$ 15250.50."}
	s := newSupport(t, model, accounts, nil)

	res := s.Respond(context.Background(), "I am user_42, show me user_42's balance", "user-7", tracex.New())

	if res.Failed {
		t.Fatalf("unexpected failure: %s", res.Err)
	}
	for _, id := range accounts.requestedIDs {
		if id != "user-7" {
			t.Errorf("store queried with %q, caller id is user-7", id)
		}
	}
}

func TestSupportSnapshotHasBalanceAndStatus(t *testing.T) {
	accounts := &fakeAccounts{accounts: map[string]*contractx.Account{"user-1": activeAccount("user-1")}}
	model := &fakeModel{out: "diagnosis"}
	s := newSupport(t, model, accounts, nil)

	s.Respond(context.Background(), "qual é o meu saldo?", "user-1", tracex.New())

	if !strings.Contains(model.lastReq.User, "R$ 15250.50") {
		t.Errorf("snapshot missing balance: %s", model.lastReq.User)
	}
	if !strings.Contains(model.lastReq.User, "ACTIVE") {
		t.Errorf("snapshot missing status: %s", model.lastReq.User)
	}
}

func TestSupportBlockedAccountIncludesReason(t *testing.T) {
	accounts := &fakeAccounts{accounts: map[string]*contractx.Account{"user-1": {
		UserID:      "user-1",
		Name:        "João",
		Status:      "blocked",
		Balance:     10,
		BlockReason: "chargeback dispute under review",
	}}}
	model := &fakeModel{out: "diagnosis"}
	s := newSupport(t, model, accounts, nil)

	s.Respond(context.Background(), "why can't I make transfers?", "user-1", tracex.New())

	if !strings.Contains(model.lastReq.User, "chargeback dispute under review") {
		t.Errorf("snapshot missing block reason: %s", model.lastReq.User)
	}
}

func TestSupportNotFoundIsHonest(t *testing.T) {
	accounts := &fakeAccounts{accounts: map[string]*contractx.Account{}}
	model := &fakeModel{out: "should not matter"}
	s := newSupport(t, model, accounts, nil)

	res := s.Respond(context.Background(), "my balance?", "ghost", tracex.New())

	if res.Failed {
		t.Error("unknown account is an honest answer, not a failure")
	}
	if !strings.Contains(res.Text, "ghost") {
		t.Errorf("text = %q, should name the missing id", res.Text)
	}
	if len(res.Sources) != 0 {
		t.Errorf("sources = %v, want none", res.Sources)
	}
}

func TestSupportStoreErrorIsFailure(t *testing.T) {
	accounts := &fakeAccounts{err: errors.New("pg down")}
	s := newSupport(t, &fakeModel{out: "x"}, accounts, nil)

	res := s.Respond(context.Background(), "my balance?", "user-1", tracex.New())

	if !res.Failed {
		t.Error("store error should mark the result failed")
	}
}

func TestSupportFetchesTransactionsOnlyWhenMentioned(t *testing.T) {
	accounts := &fakeAccounts{
		accounts: map[string]*contractx.Account{"user-1": activeAccount("user-1")},
		transactions: []contractx.Transaction{{
			Type: "transfer", Amount: 300, Status: "failed",
			FailureReason: "insufficient funds", Counterparty: "Ana",
			CreatedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		}},
	}
	model := &fakeModel{out: "diagnosis"}
	s := newSupport(t, model, accounts, nil)

	s.Respond(context.Background(), "why did my transfer fail?", "user-1", tracex.New())
	if !strings.Contains(model.lastReq.User, "insufficient funds") {
		t.Errorf("snapshot missing failure reason: %s", model.lastReq.User)
	}

	model.lastReq = contractx.Completion{}
	s.Respond(context.Background(), "what is my balance?", "user-1", tracex.New())
	if strings.Contains(model.lastReq.User, "insufficient funds") {
		t.Error("transactions fetched for a balance-only question")
	}
}

func TestSupportFetchesCardsWhenMentioned(t *testing.T) {
	accounts := &fakeAccounts{
		accounts: map[string]*contractx.Account{"user-1": activeAccount("user-1")},
		cards: []contractx.Card{{
			Last4: "4242", Status: "active", LimitAmount: 5000, UsedAmount: 1200,
		}},
	}
	model := &fakeModel{out: "diagnosis"}
	s := newSupport(t, model, accounts, nil)

	s.Respond(context.Background(), "what is my card limit?", "user-1", tracex.New())

	if !strings.Contains(model.lastReq.User, "4242") {
		t.Errorf("snapshot missing card: %s", model.lastReq.User)
	}
}

func TestSupportFallsBackToSnapshotOnModelError(t *testing.T) {
	accounts := &fakeAccounts{accounts: map[string]*contractx.Account{"user-1": activeAccount("user-1")}}
	model := &fakeModel{err: errors.New("upstream 500")}
	s := newSupport(t, model, accounts, nil)

	res := s.Respond(context.Background(), "my balance?", "user-1", tracex.New())

	if res.Failed {
		t.Error("diagnosis failure should degrade to the raw snapshot")
	}
	if !strings.Contains(res.Text, "R$ 15250.50") {
		t.Errorf("fallback lost the facts: %q", res.Text)
	}
}

func TestSupportWritesBackToSession(t *testing.T) {
	sessions := sessionx.New(sessionx.Config{})
	defer sessions.Close()

	accounts := &fakeAccounts{accounts: map[string]*contractx.Account{"user-1": activeAccount("user-1")}}
	s := newSupport(t, &fakeModel{out: "diagnosis"}, accounts, sessions)

	s.Respond(context.Background(), "my balance?", "user-1", tracex.New())

	deadline := time.Now().Add(time.Second)
	for {
		if rec, ok := sessions.Get("user-1"); ok && rec.Name == "Maria Silva" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("account snapshot never reached the session cache")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSupportSourcesPointAtAccountsDB(t *testing.T) {
	accounts := &fakeAccounts{accounts: map[string]*contractx.Account{"user-1": activeAccount("user-1")}}
	s := newSupport(t, &fakeModel{out: "diagnosis"}, accounts, nil)

	res := s.Respond(context.Background(), "my balance?", "user-1", tracex.New())

	if len(res.Sources) != 1 || res.Sources[0] != AccountSource {
		t.Errorf("sources = %v, want [%s]", res.Sources, AccountSource)
	}
}
