// Package chroma provides the vector-store abstraction backing policy
// retrieval. A remote Chroma HTTP implementation and an in-memory
// fallback both satisfy VectorStore; callers never branch on which one
// they got.
package chroma

import "context"

// Document is a stored policy chunk with its filterable metadata.
type Document struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// QueryResult pairs a document with its raw distance from the query.
// Smaller distance means closer.
type QueryResult struct {
	Document Document `json:"document"`
	Distance float64  `json:"distance"`
}

// VectorStore is the retrieval surface the validators and the generator
// depend on.
type VectorStore interface {
	// Search returns up to topK documents nearest to queryText, optionally
	// restricted by a metadata filter. Results are ordered by ascending
	// distance.
	Search(ctx context.Context, queryText string, topK int, filter map[string]any) ([]QueryResult, error)

	// ListAll returns every document matching the filter, with no
	// similarity ranking. Used where exhaustive coverage matters more
	// than relevance.
	ListAll(ctx context.Context, filter map[string]any) ([]Document, error)

	Upsert(ctx context.Context, docs []Document) error

	Count(ctx context.Context) (int, error)

	Heartbeat(ctx context.Context) error
}

// Embedder turns texts into vectors. The remote store embeds queries and
// documents before talking to Chroma.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}
