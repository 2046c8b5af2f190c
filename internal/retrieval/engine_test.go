package retrieval

import (
	"context"
	"testing"

	"github.com/yeoul-labs/alimguard-backend/internal/platform/chroma"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/logger"
)

type fakeStore struct {
	chroma.VectorStore
	results []chroma.QueryResult
	err     error

	gotQuery  string
	gotTopK   int
	gotFilter map[string]any
}

func (f *fakeStore) Search(ctx context.Context, queryText string, topK int, filter map[string]any) ([]chroma.QueryResult, error) {
	f.gotQuery = queryText
	f.gotTopK = topK
	f.gotFilter = filter
	return f.results, f.err
}

func newTestEngine(t *testing.T, store chroma.VectorStore) *Engine {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	e, err := NewEngine(log, store)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestSearchComputesSimilarityAndRank(t *testing.T) {
	store := &fakeStore{results: []chroma.QueryResult{
		{Document: chroma.Document{ID: "a", Text: "one"}, Distance: 0.18},
		{Document: chroma.Document{ID: "b", Text: "two"}, Distance: 0.5},
		{Document: chroma.Document{ID: "c", Text: "three"}, Distance: 1.4},
	}}
	e := newTestEngine(t, store)

	got, err := e.Search(context.Background(), "주문 안내", 0, map[string]any{"category_main": "구매"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if store.gotTopK != DefaultTopK {
		t.Fatalf("want default topK=%d got=%d", DefaultTopK, store.gotTopK)
	}
	if len(got) != 3 {
		t.Fatalf("want=3 got=%d", len(got))
	}
	if diff := got[0].Similarity - 0.82; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("want=0.82 got=%v", got[0].Similarity)
	}
	if got[2].Similarity != 0 {
		t.Fatalf("similarity must clamp at 0, got=%v", got[2].Similarity)
	}
	if got[0].Rank != 1 || got[2].Rank != 3 {
		t.Fatalf("ranks wrong: %+v", got)
	}
}

func TestSearchClampsAboveOne(t *testing.T) {
	store := &fakeStore{results: []chroma.QueryResult{
		{Document: chroma.Document{ID: "a"}, Distance: -0.2},
	}}
	e := newTestEngine(t, store)

	got, err := e.Search(context.Background(), "x", 3, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got[0].Similarity != 1 {
		t.Fatalf("similarity must clamp at 1, got=%v", got[0].Similarity)
	}
}

func TestSelect(t *testing.T) {
	candidates := []Candidate{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	got := Select(candidates, 2)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("want top two got=%v", got)
	}

	if got := Select(candidates[:1], 2); len(got) != 1 {
		t.Fatalf("short input must pass through, got=%v", got)
	}

	if got := Select(candidates, 0); len(got) != DefaultSelectCount {
		t.Fatalf("want default select count got=%d", len(got))
	}
}

func TestMaxSimilarity(t *testing.T) {
	if got := MaxSimilarity(nil); got != 0 {
		t.Fatalf("want=0 got=%v", got)
	}
	candidates := []Candidate{{Similarity: 0.4}, {Similarity: 0.82}, {Similarity: 0.7}}
	if got := MaxSimilarity(candidates); got != 0.82 {
		t.Fatalf("want=0.82 got=%v", got)
	}
}
