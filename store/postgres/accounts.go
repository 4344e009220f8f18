package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/paylane-labs/agent-swarm/agent/contract"
)

type accountRow struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	UserID      string    `bun:"user_id,pk"`
	Name        string    `bun:"name,notnull"`
	Email       string    `bun:"email"`
	Status      string    `bun:"account_status,notnull"`
	Plan        string    `bun:"plan"`
	Balance     float64   `bun:"balance,notnull"`
	BlockReason string    `bun:"block_reason"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type transactionRow struct {
	bun.BaseModel `bun:"table:transactions,alias:t"`

	ID            int64     `bun:"id,pk,autoincrement"`
	UserID        string    `bun:"user_id,notnull"`
	Type          string    `bun:"type,notnull"`
	Amount        float64   `bun:"amount,notnull"`
	Status        string    `bun:"status,notnull"`
	FailureReason string    `bun:"failure_reason"`
	Counterparty  string    `bun:"counterparty"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type cardRow struct {
	bun.BaseModel `bun:"table:cards,alias:c"`

	ID          int64   `bun:"id,pk,autoincrement"`
	UserID      string  `bun:"user_id,notnull"`
	Last4       string  `bun:"last_4,notnull"`
	Status      string  `bun:"status,notnull"`
	LimitAmount float64 `bun:"limit_amount,notnull"`
	UsedAmount  float64 `bun:"used_amount,notnull"`
}

// AccountStore implements contract.AccountStore against Postgres.
type AccountStore struct {
	db *bun.DB
}

var _ contractx.AccountStore = (*AccountStore)(nil)

func NewAccountStore(db *bun.DB) (*AccountStore, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &AccountStore{db: db}, nil
}

func (s *AccountStore) GetAccount(ctx context.Context, userID string) (*contractx.Account, error) {
	var row accountRow
	err := s.db.NewSelect().
		Model(&row).
		Where("a.user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", contractx.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("select account: %w", err)
	}
	return accountFromRow(row), nil
}

func (s *AccountStore) GetTransactions(ctx context.Context, userID string, limit int) ([]contractx.Transaction, error) {
	if limit <= 0 {
		limit = 5
	}
	var rows []transactionRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("t.user_id = ?", userID).
		OrderExpr("t.created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}

	out := make([]contractx.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, contractx.Transaction{
			ID:            r.ID,
			UserID:        r.UserID,
			Type:          r.Type,
			Amount:        r.Amount,
			Status:        r.Status,
			FailureReason: r.FailureReason,
			Counterparty:  r.Counterparty,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out, nil
}

func (s *AccountStore) GetCards(ctx context.Context, userID string) ([]contractx.Card, error) {
	var rows []cardRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("c.user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select cards: %w", err)
	}

	out := make([]contractx.Card, 0, len(rows))
	for _, r := range rows {
		out = append(out, contractx.Card{
			ID:          r.ID,
			UserID:      r.UserID,
			Last4:       r.Last4,
			Status:      r.Status,
			LimitAmount: r.LimitAmount,
			UsedAmount:  r.UsedAmount,
		})
	}
	return out, nil
}

// CreateAccount inserts a fresh account and returns ErrDuplicate when the id
// is already taken.
func (s *AccountStore) CreateAccount(ctx context.Context, acc *contractx.Account) error {
	if acc == nil || acc.UserID == "" {
		return fmt.Errorf("%w: account user_id is required", contractx.ErrValidation)
	}

	row := accountRow{
		UserID:      acc.UserID,
		Name:        acc.Name,
		Email:       acc.Email,
		Status:      acc.Status,
		Plan:        acc.Plan,
		Balance:     acc.Balance,
		BlockReason: acc.BlockReason,
		CreatedAt:   acc.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert account result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: account %s", contractx.ErrDuplicate, acc.UserID)
	}

	acc.CreatedAt = row.CreatedAt
	return nil
}

func accountFromRow(row accountRow) *contractx.Account {
	return &contractx.Account{
		UserID:      row.UserID,
		Name:        row.Name,
		Email:       row.Email,
		Status:      row.Status,
		Plan:        row.Plan,
		Balance:     row.Balance,
		BlockReason: row.BlockReason,
		CreatedAt:   row.CreatedAt,
	}
}
