package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Source tags where a fact came from.
type Source string

const (
	// SourceDocument marks facts ingested from reference documents.
	SourceDocument Source = "document"
	// SourceConversation marks facts extracted from conversation turns.
	SourceConversation Source = "conversation"
)

// SimilarityThreshold is the cosine score at or above which two stored facts
// are treated as the same fact and the existing record is overwritten.
const SimilarityThreshold = 0.9

// Metadata describes a stored fact.
type Metadata struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    Source    `json:"source"`
}

// Record is a long-term memory entry. Score is populated only on search
// results.
type Record struct {
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
	Score    float64  `json:"score,omitempty"`
}

// Filter constrains searches by metadata. The zero value matches everything.
type Filter struct {
	Source Source
}

// Store is the deduplicating long-term fact store.
type Store interface {
	// StoreFact upserts a fact. A near-duplicate (FindSimilar hit) reuses the
	// existing record's id so the write overwrites instead of forking.
	StoreFact(ctx context.Context, text string, meta Metadata) error
	// Search returns up to k records ordered by descending similarity.
	Search(ctx context.Context, query string, k int, filter *Filter) ([]Record, error)
	// FindSimilar returns the closest record when it clears
	// SimilarityThreshold, nil otherwise.
	FindSimilar(ctx context.Context, text string) (*Record, error)
	Close() error
}

// textLocks serializes dedup-then-upsert per normalized fact text. Without it
// two concurrent writers storing the same fact can both miss the dedup probe
// and create two records.
type textLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTextLocks() *textLocks {
	return &textLocks{locks: make(map[string]*sync.Mutex)}
}

func (t *textLocks) lock(key string) *sync.Mutex {
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	t.mu.Unlock()
	l.Lock()
	return l
}

func normalizedHash(text string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

func matchesFilter(meta Metadata, filter *Filter) bool {
	if filter == nil || filter.Source == "" {
		return true
	}
	return meta.Source == filter.Source
}
