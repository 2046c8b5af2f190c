package chroma

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// MemoryStore is the in-process fallback used when no Chroma server is
// configured or reachable. Similarity is bag-of-words cosine, which is
// crude but deterministic and dependency-free, and it preserves the
// smaller-distance-is-closer contract.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document)}
}

func (s *MemoryStore) Search(ctx context.Context, queryText string, topK int, filter map[string]any) ([]QueryResult, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, opErr("search", ErrCodeInvalidInput, "query text required", nil)
	}
	if topK <= 0 {
		topK = 3
	}
	where, err := NormalizeFilter(filter)
	if err != nil {
		return nil, opErr("search", ErrCodeInvalidInput, "bad filter", err)
	}

	queryVec := termVector(queryText)

	s.mu.RLock()
	results := make([]QueryResult, 0, len(s.docs))
	for _, doc := range s.docs {
		if !MatchesFilter(doc.Metadata, where) {
			continue
		}
		sim := cosine(queryVec, termVector(doc.Text))
		results = append(results, QueryResult{Document: doc, Distance: 1 - sim})
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Document.ID < results[j].Document.ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *MemoryStore) ListAll(ctx context.Context, filter map[string]any) ([]Document, error) {
	where, err := NormalizeFilter(filter)
	if err != nil {
		return nil, opErr("list_all", ErrCodeInvalidInput, "bad filter", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if MatchesFilter(doc.Metadata, where) {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, docs []Document) error {
	for _, d := range docs {
		if strings.TrimSpace(d.ID) == "" {
			return opErr("upsert", ErrCodeInvalidInput, "document missing id", nil)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *MemoryStore) Heartbeat(ctx context.Context) error {
	return nil
}

func termVector(text string) map[string]float64 {
	vec := make(map[string]float64)
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		vec[f]++
	}
	return vec
}

func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for term, av := range a {
		normA += av * av
		if bv, ok := b[term]; ok {
			dot += av * bv
		}
	}
	for _, bv := range b {
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
