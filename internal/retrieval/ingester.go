package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/ava/internal/memory"
)

// Ingester chunks source documents and stores each chunk in the long-term
// memory store tagged as document-sourced, where the retrieval service can
// find them.
type Ingester struct {
	store   memory.Store
	chunker Chunker
	log     *zap.Logger
}

func NewIngester(store memory.Store, log *zap.Logger) *Ingester {
	return &Ingester{store: store, chunker: NewChunker(), log: log}
}

// IngestText chunks and stores one document body. Returns the number of
// stored chunks.
func (i *Ingester) IngestText(ctx context.Context, text string) (int, error) {
	chunks := i.chunker.Split(text)
	now := time.Now().UTC()
	for idx, chunk := range chunks {
		meta := memory.Metadata{
			Source:    memory.SourceDocument,
			Timestamp: now,
		}
		if err := i.store.StoreFact(ctx, chunk, meta); err != nil {
			return idx, fmt.Errorf("store chunk %d: %w", idx, err)
		}
	}
	return len(chunks), nil
}

// IngestFile reads and ingests one text or markdown file.
func (i *Ingester) IngestFile(ctx context.Context, path string) (int, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	n, err := i.IngestText(ctx, string(body))
	if err != nil {
		return n, fmt.Errorf("ingest %s: %w", filepath.Base(path), err)
	}
	i.log.Info("ingested document",
		zap.String("file", filepath.Base(path)),
		zap.Int("chunks", n),
	)
	return n, nil
}
