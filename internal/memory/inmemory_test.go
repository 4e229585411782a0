package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ent0n29/ava/internal/embedding"
)

// tableEmbedder returns canned vectors for known texts and falls back to the
// deterministic mock for everything else.
type tableEmbedder struct {
	vectors  map[string][]float32
	fallback embedding.Embedder
}

func newTableEmbedder(vectors map[string][]float32) *tableEmbedder {
	return &tableEmbedder{vectors: vectors, fallback: embedding.NewMock(4)}
}

func (e *tableEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}
	return e.fallback.Embed(ctx, text)
}

func (e *tableEmbedder) Dim() int { return 4 }

func (s *InMemoryStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func TestStoreFactDedupReusesID(t *testing.T) {
	embedder := newTableEmbedder(map[string][]float32{
		"the user likes espresso":  {1, 0, 0, 0},
		"The user likes espresso.": {1, 0, 0, 0},
	})
	store := NewInMemoryStore(embedder)
	ctx := context.Background()

	if err := store.StoreFact(ctx, "the user likes espresso", Metadata{Source: SourceConversation}); err != nil {
		t.Fatalf("StoreFact() error = %v", err)
	}
	if err := store.StoreFact(ctx, "The user likes espresso.", Metadata{Source: SourceConversation}); err != nil {
		t.Fatalf("StoreFact() error = %v", err)
	}

	if got := store.count(); got != 1 {
		t.Fatalf("record count = %d, want 1 (near-duplicate should overwrite)", got)
	}
	results, err := store.Search(ctx, "the user likes espresso", 5, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Text != "The user likes espresso." {
		t.Fatalf("results = %+v, want single updated record", results)
	}
}

func TestStoreFactDistinctTextsCreateDistinctRecords(t *testing.T) {
	embedder := newTableEmbedder(map[string][]float32{
		"the user likes espresso": {1, 0, 0, 0},
		"the user lives in turin": {0, 1, 0, 0},
	})
	store := NewInMemoryStore(embedder)
	ctx := context.Background()

	for _, text := range []string{"the user likes espresso", "the user lives in turin"} {
		if err := store.StoreFact(ctx, text, Metadata{Source: SourceConversation}); err != nil {
			t.Fatalf("StoreFact(%q) error = %v", text, err)
		}
	}
	if got := store.count(); got != 2 {
		t.Fatalf("record count = %d, want 2", got)
	}
}

func TestStoreFactConcurrentDuplicatesCollapse(t *testing.T) {
	embedder := newTableEmbedder(map[string][]float32{
		"the user plays chess": {0, 0, 1, 0},
	})
	store := NewInMemoryStore(embedder)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.StoreFact(ctx, "the user plays chess", Metadata{Source: SourceConversation}); err != nil {
				t.Errorf("StoreFact() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := store.count(); got != 1 {
		t.Fatalf("record count = %d, want 1 after concurrent duplicate writes", got)
	}
}

func TestSearchOrdersByDescendingScoreAndFilters(t *testing.T) {
	embedder := newTableEmbedder(map[string][]float32{
		"binary trees store ordered keys": {1, 0, 0, 0},
		"hash maps give constant lookups": {0.8, 0.6, 0, 0},
		"the user likes espresso":         {0, 0, 1, 0},
		"what is a binary tree":           {1, 0, 0, 0},
	})
	store := NewInMemoryStore(embedder)
	ctx := context.Background()

	docs := []string{"binary trees store ordered keys", "hash maps give constant lookups"}
	for _, text := range docs {
		if err := store.StoreFact(ctx, text, Metadata{Source: SourceDocument}); err != nil {
			t.Fatalf("StoreFact() error = %v", err)
		}
	}
	if err := store.StoreFact(ctx, "the user likes espresso", Metadata{Source: SourceConversation}); err != nil {
		t.Fatalf("StoreFact() error = %v", err)
	}

	results, err := store.Search(ctx, "what is a binary tree", 10, &Filter{Source: SourceDocument})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2 (conversation fact filtered out)", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results not ordered by descending score: %+v", results)
		}
	}
	if results[0].Text != "binary trees store ordered keys" {
		t.Fatalf("top result = %q, want the binary tree fact", results[0].Text)
	}
}

func TestFindSimilarBelowThresholdIsAbsent(t *testing.T) {
	embedder := newTableEmbedder(map[string][]float32{
		"the user likes espresso": {1, 0, 0, 0},
		"the user drinks tea":     {0.5, 0.866, 0, 0}, // cos ≈ 0.5 vs espresso
	})
	store := NewInMemoryStore(embedder)
	ctx := context.Background()

	if err := store.StoreFact(ctx, "the user likes espresso", Metadata{Source: SourceConversation}); err != nil {
		t.Fatalf("StoreFact() error = %v", err)
	}

	hit, err := store.FindSimilar(ctx, "the user drinks tea")
	if err != nil {
		t.Fatalf("FindSimilar() error = %v", err)
	}
	if hit != nil {
		t.Fatalf("FindSimilar() = %+v, want absent below threshold", hit)
	}
}

func TestStoreFactPreservesTimestampAndSource(t *testing.T) {
	embedder := newTableEmbedder(nil)
	store := NewInMemoryStore(embedder)
	ctx := context.Background()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.StoreFact(ctx, "ingested chunk", Metadata{Source: SourceDocument, Timestamp: ts}); err != nil {
		t.Fatalf("StoreFact() error = %v", err)
	}
	results, err := store.Search(ctx, "ingested chunk", 1, nil)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	got := results[0].Metadata
	if got.Source != SourceDocument || !got.Timestamp.Equal(ts) || got.ID == "" {
		t.Fatalf("metadata = %+v, want document source, fixed timestamp, generated id", got)
	}
}
