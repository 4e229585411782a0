package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ent0n29/ava/internal/memory"
)

// Service answers "relevant documents for query X" over the document-sourced
// subset of the long-term memory store.
type Service struct {
	store memory.Store
	topK  int
	log   *zap.Logger
}

func NewService(store memory.Store, topK int, log *zap.Logger) *Service {
	if topK <= 0 {
		topK = 3
	}
	return &Service{store: store, topK: topK, log: log}
}

// RelevantDocuments returns up to topK document chunks ordered by relevance.
func (s *Service) RelevantDocuments(ctx context.Context, query string) ([]string, error) {
	results, err := s.store.Search(ctx, query, s.topK, &memory.Filter{Source: memory.SourceDocument})
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	out := make([]string, 0, len(results))
	for _, rec := range results {
		out = append(out, rec.Text)
	}
	s.log.Debug("retrieved document chunks", zap.Int("count", len(out)))
	return out, nil
}
