package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/ent0n29/ava/internal/embedding"
)

const chromemCollection = "long_term_memory"

// ChromemStore keeps long-term facts in an embedded chromem-go database,
// optionally persisted on disk. It needs no external services, which makes it
// the default backend when no DATABASE_URL is configured.
type ChromemStore struct {
	db       *chromem.DB
	embedder embedding.Embedder
	dedup    *textLocks

	colMu sync.Mutex
	col   *chromem.Collection
}

// NewChromemStore opens an embedded store. An empty path keeps everything
// in process memory.
func NewChromemStore(path string, embedder embedding.Embedder) (*ChromemStore, error) {
	var db *chromem.DB
	if strings.TrimSpace(path) == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}
	return &ChromemStore{
		db:       db,
		embedder: embedder,
		dedup:    newTextLocks(),
	}, nil
}

func (s *ChromemStore) collection() (*chromem.Collection, error) {
	s.colMu.Lock()
	defer s.colMu.Unlock()
	if s.col != nil {
		return s.col, nil
	}
	col, err := s.db.GetOrCreateCollection(chromemCollection, nil, chromem.EmbeddingFunc(s.embedder.Embed))
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	s.col = col
	return col, nil
}

func (s *ChromemStore) StoreFact(ctx context.Context, text string, meta Metadata) error {
	col, err := s.collection()
	if err != nil {
		return err
	}

	l := s.dedup.lock(normalizedHash(text))
	defer l.Unlock()

	similar, err := s.FindSimilar(ctx, text)
	if err != nil {
		return err
	}
	if similar != nil && similar.Metadata.ID != "" {
		meta.ID = similar.Metadata.ID
	}
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed fact: %w", err)
	}

	err = col.AddDocument(ctx, chromem.Document{
		ID:        meta.ID,
		Content:   text,
		Embedding: vec,
		Metadata: map[string]string{
			"source":    string(meta.Source),
			"timestamp": meta.Timestamp.Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, query string, k int, filter *Filter) ([]Record, error) {
	if k <= 0 {
		return nil, nil
	}
	col, err := s.collection()
	if err != nil {
		return nil, err
	}

	// chromem rejects result counts above the collection size.
	if count := col.Count(); count < k {
		if count == 0 {
			return nil, nil
		}
		k = count
	}

	var where map[string]string
	if filter != nil && filter.Source != "" {
		where = map[string]string{"source": string(filter.Source)}
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := col.QueryEmbedding(ctx, qvec, k, where, nil)
	// chromem also caps nResults at the number of documents matching the
	// filter, which Count does not reveal. Step down until the query fits.
	for err != nil && k > 1 && strings.Contains(err.Error(), "nResults") {
		k--
		results, err = col.QueryEmbedding(ctx, qvec, k, where, nil)
	}
	if err != nil {
		if strings.Contains(err.Error(), "nResults") {
			return nil, nil
		}
		return nil, fmt.Errorf("query collection: %w", err)
	}

	out := make([]Record, 0, len(results))
	for _, res := range results {
		rec := Record{
			Text:  res.Content,
			Score: float64(res.Similarity),
			Metadata: Metadata{
				ID:     res.ID,
				Source: Source(res.Metadata["source"]),
			},
		}
		if ts, err := time.Parse(time.RFC3339Nano, res.Metadata["timestamp"]); err == nil {
			rec.Metadata.Timestamp = ts
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *ChromemStore) FindSimilar(ctx context.Context, text string) (*Record, error) {
	results, err := s.Search(ctx, text, 1, nil)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 || results[0].Score < SimilarityThreshold {
		return nil, nil
	}
	rec := results[0]
	return &rec, nil
}

func (s *ChromemStore) Close() error { return nil }
