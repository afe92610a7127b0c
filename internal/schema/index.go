package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

const DefaultTopK = 4

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type entry struct {
	document Document
	tokens   map[string]struct{}
	vector   []float32
}

// Index keeps schema documents in memory and ranks them against questions. Documents are
// ranked by embedding similarity when every document has a vector, otherwise by token
// overlap.
type Index struct {
	source   Introspector
	embedder Embedder
	topK     int
	logger   *slog.Logger

	mu      sync.RWMutex
	entries []entry
}

func NewIndex(source Introspector, embedder Embedder, topK int, logger *slog.Logger) *Index {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		source:   source,
		embedder: embedder,
		topK:     topK,
		logger:   logger,
	}
}

// Reload replaces the indexed documents with a fresh read of the database schema.
func (i *Index) Reload(ctx context.Context) error {
	tables, err := i.source.Tables(ctx)
	if err != nil {
		return fmt.Errorf("introspect schema: %w", err)
	}

	entries := make([]entry, 0, len(tables))
	for _, table := range tables {
		document := NewDocument(table)
		entries = append(entries, entry{document: document, tokens: tokenSet(document.Content)})
	}

	if i.embedder != nil {
		for idx := range entries {
			vector, err := i.embedder.Embed(ctx, entries[idx].document.Content)
			if err != nil {
				i.logger.WarnContext(ctx, "schema embedding failed, using lexical ranking", "table", entries[idx].document.Table, "error", err)
				for j := range entries {
					entries[j].vector = nil
				}
				break
			}
			entries[idx].vector = vector
		}
	}

	i.mu.Lock()
	i.entries = entries
	i.mu.Unlock()

	i.logger.InfoContext(ctx, "schema index loaded", "tables", len(entries))
	return nil
}

func (i *Index) Documents() []Document {
	i.mu.RLock()
	defer i.mu.RUnlock()

	documents := make([]Document, 0, len(i.entries))
	for _, e := range i.entries {
		documents = append(documents, e.document)
	}
	return documents
}

// Retrieve returns at most topK documents ordered by relevance to question.
func (i *Index) Retrieve(ctx context.Context, question string) []Document {
	i.mu.RLock()
	entries := i.entries
	i.mu.RUnlock()

	if len(entries) == 0 {
		return nil
	}

	scores := i.embeddingScores(ctx, question, entries)
	if scores == nil {
		scores = lexicalScores(question, entries)
	}

	order := make([]int, len(entries))
	for idx := range order {
		order[idx] = idx
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	limit := i.topK
	if limit > len(order) {
		limit = len(order)
	}
	documents := make([]Document, 0, limit)
	for _, idx := range order[:limit] {
		documents = append(documents, entries[idx].document)
	}
	return documents
}

// Context returns the retrieved documents joined for use in a prompt.
func (i *Index) Context(ctx context.Context, question string) string {
	return JoinContext(i.Retrieve(ctx, question))
}

func (i *Index) embeddingScores(ctx context.Context, question string, entries []entry) []float64 {
	if i.embedder == nil {
		return nil
	}
	for _, e := range entries {
		if len(e.vector) == 0 {
			return nil
		}
	}

	questionVector, err := i.embedder.Embed(ctx, question)
	if err != nil {
		i.logger.WarnContext(ctx, "question embedding failed, using lexical ranking", "error", err)
		return nil
	}

	scores := make([]float64, len(entries))
	for idx, e := range entries {
		similarity, err := CosineSimilarity(questionVector, e.vector)
		if err != nil {
			i.logger.WarnContext(ctx, "similarity failed, using lexical ranking", "table", e.document.Table, "error", err)
			return nil
		}
		scores[idx] = float64(similarity)
	}
	return scores
}

func lexicalScores(question string, entries []entry) []float64 {
	questionTokens := tokenize(question)
	scores := make([]float64, len(entries))
	for idx, e := range entries {
		scores[idx] = float64(lexicalScore(questionTokens, e.tokens))
	}
	return scores
}
