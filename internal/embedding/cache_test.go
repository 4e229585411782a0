package embedding

import (
	"context"
	"math"
	"testing"
	"time"
)

type countingEmbedder struct {
	inner Embedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) Dim() int { return c.inner.Dim() }

func TestCachedEmbedderHitsCache(t *testing.T) {
	counter := &countingEmbedder{inner: NewMock(32)}
	cached := NewCached(counter, time.Minute)

	ctx := context.Background()
	first, err := cached.Embed(ctx, "the user lives in turin")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	second, err := cached.Embed(ctx, "the user lives in turin")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	if counter.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", counter.calls)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector differs at %d", i)
		}
	}
}

func TestMockEmbedderDeterministicUnitVector(t *testing.T) {
	e := NewMock(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "binary search tree")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, _ := e.Embed(ctx, "binary search tree")

	var norm, dot float64
	for i := range a {
		norm += float64(a[i]) * float64(a[i])
		dot += float64(a[i]) * float64(b[i])
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("norm = %f, want 1", norm)
	}
	if math.Abs(dot-1) > 1e-5 {
		t.Fatalf("identical texts should embed identically, cos = %f", dot)
	}

	c, _ := e.Embed(ctx, "pasta recipe with garlic")
	var cross float64
	for i := range a {
		cross += float64(a[i]) * float64(c[i])
	}
	if cross > 0.9 {
		t.Fatalf("unrelated texts too similar: cos = %f", cross)
	}
}
