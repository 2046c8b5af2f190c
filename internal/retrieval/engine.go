// Package retrieval wraps vector-store search with the similarity and
// select-n-of-top-k policy the generator and semantic validator share.
package retrieval

import (
	"context"
	"fmt"

	"github.com/yeoul-labs/alimguard-backend/internal/platform/chroma"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/logger"
)

const (
	DefaultTopK        = 3
	DefaultSelectCount = 2
	// ReferenceThreshold is the similarity above which a retrieved
	// candidate is usable as a generation reference.
	ReferenceThreshold = 0.7
)

// Candidate is a retrieved document with its computed similarity and rank.
type Candidate struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Similarity float64        `json:"similarity"`
	Rank       int            `json:"rank"`
}

// Engine ranks vector-store hits by similarity. Similarity is 1 - distance,
// clamped to [0,1] since the distance metric is store-dependent.
type Engine struct {
	log   *logger.Logger
	store chroma.VectorStore
}

func NewEngine(log *logger.Logger, store chroma.VectorStore) (*Engine, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store required")
	}
	return &Engine{log: log.With("service", "RetrievalEngine"), store: store}, nil
}

func (e *Engine) Search(ctx context.Context, queryText string, topK int, filter map[string]any) ([]Candidate, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	results, err := e.store.Search(ctx, queryText, topK, filter)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(results))
	for i, r := range results {
		candidates = append(candidates, Candidate{
			ID:         r.Document.ID,
			Text:       r.Document.Text,
			Metadata:   r.Document.Metadata,
			Similarity: clampSimilarity(1 - r.Distance),
			Rank:       i + 1,
		})
	}
	return candidates, nil
}

// Select returns the top n candidates. Input is already ordered by the
// store's ascending distance, which matches descending similarity.
func Select(candidates []Candidate, n int) []Candidate {
	if n <= 0 {
		n = DefaultSelectCount
	}
	if len(candidates) <= n {
		return candidates
	}
	return candidates[:n]
}

// MaxSimilarity returns the best similarity among candidates, 0 when empty.
func MaxSimilarity(candidates []Candidate) float64 {
	best := 0.0
	for _, c := range candidates {
		if c.Similarity > best {
			best = c.Similarity
		}
	}
	return best
}

func clampSimilarity(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
