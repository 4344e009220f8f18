// Package retrieval implements the vector-search capability over a pgvector
// documents table. Embeddings come from the shared LLM client.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"

	contractx "github.com/paylane-labs/agent-swarm/agent/contract"
)

// Embedder turns text into the vector space of the documents table.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type documentRow struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID        int64           `bun:"id,pk,autoincrement"`
	Content   string          `bun:"content,notnull"`
	Source    string          `bun:"source,notnull"`
	Embedding pgvector.Vector `bun:"embedding,type:vector(1536)"`
}

type searchHit struct {
	Content  string  `bun:"content"`
	Source   string  `bun:"source"`
	Distance float64 `bun:"distance"`
}

// Store implements contract.Retriever.
type Store struct {
	db       *bun.DB
	embedder Embedder
}

var _ contractx.Retriever = (*Store)(nil)

func NewStore(db *bun.DB, embedder Embedder) (*Store, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	return &Store{db: db, embedder: embedder}, nil
}

// Search embeds the query and returns the topK nearest passages by cosine
// distance, scored as 1-distance so higher is better.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]contractx.Passage, error) {
	if topK <= 0 {
		topK = 5
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	target := pgvector.NewVector(vec)

	var hits []searchHit
	err = s.db.NewSelect().
		Model((*documentRow)(nil)).
		ColumnExpr("d.content").
		ColumnExpr("d.source").
		ColumnExpr("d.embedding <=> ? AS distance", target).
		OrderExpr("d.embedding <=> ?", target).
		Limit(topK).
		Scan(ctx, &hits)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	passages := make([]contractx.Passage, 0, len(hits))
	for _, h := range hits {
		passages = append(passages, contractx.Passage{
			Text:   h.Content,
			Source: h.Source,
			Score:  1 - h.Distance,
		})
	}
	return passages, nil
}
