package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedEmbedder memoizes embeddings by content hash. The memory store embeds
// the same fact text twice per write (dedup probe, then upsert), so the cache
// halves embedding traffic on the hot path.
type CachedEmbedder struct {
	next  Embedder
	cache *gocache.Cache
}

func NewCached(next Embedder, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedEmbedder{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := hashKey(text)
	if v, ok := e.cache.Get(key); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}
	vec, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(key, vec, gocache.DefaultExpiration)
	return vec, nil
}

func (e *CachedEmbedder) Dim() int { return e.next.Dim() }

func hashKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
