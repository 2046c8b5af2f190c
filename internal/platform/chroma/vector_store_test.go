package chroma

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/yeoul-labs/alimguard-backend/internal/platform/logger"
)

type fakeTransport struct {
	fn func(req *http.Request) (*http.Response, error)
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return f.fn(req)
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestRemoteStore(t *testing.T, fn func(req *http.Request) (*http.Response, error)) *RemoteStore {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	cfg := Config{
		BaseURL:    "http://chroma.test.local",
		Tenant:     "default_tenant",
		Database:   "default_database",
		Collection: "template_policies",
	}
	s, err := NewRemoteStore(log, cfg, fakeEmbedder{})
	if err != nil {
		t.Fatalf("new remote store: %v", err)
	}
	s.client = &http.Client{Transport: &fakeTransport{fn: fn}}
	return s
}

func TestRemoteSearchResolvesCollectionOnce(t *testing.T) {
	ensureCalls := 0
	s := newTestRemoteStore(t, func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(req.URL.Path, "/collections"):
			ensureCalls++
			return jsonResponse(200, `{"id":"coll-1","name":"template_policies"}`), nil
		case strings.HasSuffix(req.URL.Path, "/query"):
			var body map[string]any
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				t.Fatalf("decode query body: %v", err)
			}
			if _, ok := body["query_embeddings"]; !ok {
				t.Fatalf("query body missing query_embeddings: %v", body)
			}
			return jsonResponse(200, `{
				"ids":[["p1","p2"]],
				"documents":[["doc one","doc two"]],
				"metadatas":[[{"category":"transaction"},{"category":"marketing"}]],
				"distances":[[0.1,0.4]]
			}`), nil
		default:
			t.Fatalf("unexpected path %s", req.URL.Path)
			return nil, nil
		}
	})

	for i := 0; i < 2; i++ {
		results, err := s.Search(context.Background(), "주문 안내", 2, nil)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("want=2 got=%d", len(results))
		}
		if results[0].Document.ID != "p1" || results[0].Distance != 0.1 {
			t.Fatalf("bad first result: %+v", results[0])
		}
		if results[1].Document.Metadata["category"] != "marketing" {
			t.Fatalf("metadata not mapped: %+v", results[1])
		}
	}
	if ensureCalls != 1 {
		t.Fatalf("collection resolved %d times, want 1", ensureCalls)
	}
}

func TestRemoteSearchSendsNormalizedWhere(t *testing.T) {
	s := newTestRemoteStore(t, func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/collections") {
			return jsonResponse(200, `{"id":"coll-1"}`), nil
		}
		var body map[string]any
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		where, ok := body["where"].(map[string]any)
		if !ok {
			t.Fatalf("where missing: %v", body)
		}
		cond, ok := where["category"].(map[string]any)
		if !ok || cond["$eq"] != "transaction" {
			t.Fatalf("where not normalized: %v", where)
		}
		return jsonResponse(200, `{"ids":[[]],"documents":[[]],"metadatas":[[]],"distances":[[]]}`), nil
	})

	if _, err := s.Search(context.Background(), "안내", 3, map[string]any{"category": "transaction"}); err != nil {
		t.Fatalf("search: %v", err)
	}
}

func TestRemoteListAll(t *testing.T) {
	s := newTestRemoteStore(t, func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(req.URL.Path, "/collections"):
			return jsonResponse(200, `{"id":"coll-1"}`), nil
		case strings.HasSuffix(req.URL.Path, "/get"):
			return jsonResponse(200, `{
				"ids":["p1","p2"],
				"documents":["one","two"],
				"metadatas":[{"priority":"high"},{"priority":"low"}]
			}`), nil
		default:
			t.Fatalf("unexpected path %s", req.URL.Path)
			return nil, nil
		}
	})

	docs, err := s.ListAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("want=2 got=%d", len(docs))
	}
	if docs[1].Metadata["priority"] != "low" {
		t.Fatalf("metadata not mapped: %+v", docs[1])
	}
}

func TestRemoteUpsertEmbedsDocuments(t *testing.T) {
	s := newTestRemoteStore(t, func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(req.URL.Path, "/collections"):
			return jsonResponse(200, `{"id":"coll-1"}`), nil
		case strings.HasSuffix(req.URL.Path, "/upsert"):
			var body map[string]any
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			embeds, ok := body["embeddings"].([]any)
			if !ok || len(embeds) != 2 {
				t.Fatalf("embeddings missing or wrong length: %v", body["embeddings"])
			}
			return jsonResponse(200, `{}`), nil
		default:
			t.Fatalf("unexpected path %s", req.URL.Path)
			return nil, nil
		}
	})

	err := s.Upsert(context.Background(), []Document{
		{ID: "p1", Text: "one"},
		{ID: "p2", Text: "two"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func TestRemoteErrorCarriesStatus(t *testing.T) {
	s := newTestRemoteStore(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(503, `{"error":"down"}`), nil
	})

	_, err := s.Search(context.Background(), "안내", 3, nil)
	opError, ok := err.(*OperationError)
	if !ok {
		t.Fatalf("want *OperationError got %T", err)
	}
	if opError.StatusCode != 503 {
		t.Fatalf("want=503 got=%d", opError.StatusCode)
	}
	if opError.HTTPStatusCode() != 503 {
		t.Fatalf("HTTPStatusCode mismatch")
	}
}

func TestHeartbeat(t *testing.T) {
	var gotPath string
	s := newTestRemoteStore(t, func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		return jsonResponse(200, `{"nanosecond heartbeat":1}`), nil
	})
	if err := s.Heartbeat(context.Background()); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if gotPath != "/api/v2/heartbeat" {
		t.Fatalf("want=/api/v2/heartbeat got=%s", gotPath)
	}
}
