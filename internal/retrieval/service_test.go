package retrieval

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/ava/internal/embedding"
	"github.com/ent0n29/ava/internal/memory"
)

func TestIngestThenRetrieve(t *testing.T) {
	store := memory.NewInMemoryStore(embedding.NewMock(32))
	ingester := NewIngester(store, zap.NewNop())
	svc := NewService(store, 3, zap.NewNop())
	ctx := context.Background()

	n, err := ingester.IngestText(ctx, "Binary search trees keep their keys in sorted order. Lookup walks from the root comparing keys.")
	if err != nil {
		t.Fatalf("IngestText: %v", err)
	}
	if n < 1 {
		t.Fatalf("chunks = %d, want >= 1", n)
	}

	docs, err := svc.RelevantDocuments(ctx, "binary search trees sorted order lookup")
	if err != nil {
		t.Fatalf("RelevantDocuments: %v", err)
	}
	if len(docs) == 0 {
		t.Fatal("no documents retrieved")
	}
	found := false
	for _, d := range docs {
		if strings.Contains(d, "sorted order") {
			found = true
		}
	}
	if !found {
		t.Fatalf("ingested chunk not retrieved: %v", docs)
	}
}

func TestRetrieveSkipsConversationFacts(t *testing.T) {
	store := memory.NewInMemoryStore(embedding.NewMock(32))
	svc := NewService(store, 3, zap.NewNop())
	ctx := context.Background()

	err := store.StoreFact(ctx, "user likes binary search trees", memory.Metadata{
		Source:    memory.SourceConversation,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("StoreFact: %v", err)
	}

	docs, err := svc.RelevantDocuments(ctx, "user likes binary search trees")
	if err != nil {
		t.Fatalf("RelevantDocuments: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("conversation fact leaked into document retrieval: %v", docs)
	}
}

func TestServiceCapsResults(t *testing.T) {
	store := memory.NewInMemoryStore(embedding.NewMock(32))
	ingester := NewIngester(store, zap.NewNop())
	svc := NewService(store, 2, zap.NewNop())
	ctx := context.Background()

	for _, text := range []string{
		"binary trees chapter one",
		"binary trees chapter two",
		"binary trees chapter three",
		"binary trees chapter four",
	} {
		if _, err := ingester.IngestText(ctx, text); err != nil {
			t.Fatalf("IngestText: %v", err)
		}
	}

	docs, err := svc.RelevantDocuments(ctx, "binary trees")
	if err != nil {
		t.Fatalf("RelevantDocuments: %v", err)
	}
	if len(docs) > 2 {
		t.Fatalf("len(docs) = %d, want <= 2", len(docs))
	}
}
