package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/ava/internal/embedding"
)

// InMemoryStore is an in-process fact store for local/dev use and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	embedder embedding.Embedder
	records  map[string]inMemoryRecord
	dedup    *textLocks
}

type inMemoryRecord struct {
	rec Record
	vec []float32
}

func NewInMemoryStore(embedder embedding.Embedder) *InMemoryStore {
	return &InMemoryStore{
		embedder: embedder,
		records:  make(map[string]inMemoryRecord),
		dedup:    newTextLocks(),
	}
}

func (s *InMemoryStore) StoreFact(ctx context.Context, text string, meta Metadata) error {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[meta.ID] = inMemoryRecord{
		rec: Record{Text: text, Metadata: meta},
		vec: vec,
	}
	return nil
}

func (s *InMemoryStore) Search(ctx context.Context, query string, k int, filter *Filter) ([]Record, error) {
	if k <= 0 {
		return nil, nil
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, entry := range s.records {
		if !matchesFilter(entry.rec.Metadata, filter) {
			continue
		}
		rec := entry.rec
		rec.Score = cosine(qvec, entry.vec)
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *InMemoryStore) FindSimilar(ctx context.Context, text string) (*Record, error) {
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

func (s *InMemoryStore) Close() error { return nil }

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
