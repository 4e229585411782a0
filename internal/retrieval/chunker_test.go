package retrieval

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ent0n29/ava/internal/embedding"
	"github.com/ent0n29/ava/internal/memory"
)

func TestSplitShortTextSingleChunk(t *testing.T) {
	c := NewChunker()
	chunks := c.Split("a short document")
	if len(chunks) != 1 || chunks[0] != "a short document" {
		t.Fatalf("chunks = %v, want single unchanged chunk", chunks)
	}
	if got := c.Split("   "); got != nil {
		t.Fatalf("blank input should produce no chunks, got %v", got)
	}
}

func TestSplitRespectsSizeAndOverlap(t *testing.T) {
	c := Chunker{Size: 100, Overlap: 20}
	sentence := "The quick brown fox jumps over the lazy dog. "
	text := strings.Repeat(sentence, 20)

	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want several", len(chunks))
	}
	for i, chunk := range chunks {
		if n := len([]rune(chunk)); n > 100 {
			t.Fatalf("chunk %d has %d runes, want <= 100", i, n)
		}
	}

	// Every piece of the source text must appear in some chunk.
	joined := strings.Join(chunks, " ")
	if !strings.Contains(joined, "quick brown fox") {
		t.Fatalf("chunks lost source content")
	}

	// Consecutive chunks share carryover text.
	tail := chunks[0][len(chunks[0])-10:]
	if !strings.Contains(chunks[1], strings.TrimSpace(tail)) {
		t.Fatalf("chunk 1 does not overlap with chunk 0 tail %q", tail)
	}
}

func TestSplitPrefersSentenceBoundaries(t *testing.T) {
	c := Chunker{Size: 60, Overlap: 10}
	text := "First sentence here. Second sentence follows now. Third sentence ends the sample text for chunking."
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want >= 2", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Fatalf("first chunk %q should end at a sentence boundary", chunks[0])
	}
}

func TestIngestAndRetrieve(t *testing.T) {
	store := memory.NewInMemoryStore(embedding.NewMock(64))
	log := zap.NewNop()
	ingester := NewIngester(store, log)
	service := NewService(store, 3, log)

	n, err := ingester.IngestText(context.Background(),
		"A binary search tree is a node-based data structure. Each node has at most two children.")
	if err != nil {
		t.Fatalf("IngestText() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("chunks stored = %d, want 1", n)
	}

	docs, err := service.RelevantDocuments(context.Background(), "what is a binary search tree?")
	if err != nil {
		t.Fatalf("RelevantDocuments() error = %v", err)
	}
	if len(docs) != 1 || !strings.Contains(docs[0], "binary search tree") {
		t.Fatalf("docs = %v, want the ingested chunk", docs)
	}
}
