package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yeoul-labs/alimguard-backend/internal/pkg/ctxutil"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/envutil"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/logger"
)

// Config holds the remote store settings, read from the environment.
type Config struct {
	BaseURL    string
	Tenant     string
	Database   string
	Collection string
	Timeout    time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL:    strings.TrimRight(envutil.String("CHROMA_URL", ""), "/"),
		Tenant:     envutil.String("CHROMA_TENANT", "default_tenant"),
		Database:   envutil.String("CHROMA_DATABASE", "default_database"),
		Collection: envutil.String("CHROMA_COLLECTION", "template_policies"),
		Timeout:    time.Duration(envutil.Int("CHROMA_TIMEOUT_SECONDS", 15)) * time.Second,
	}
}

// RemoteStore talks to a Chroma server over its v2 HTTP API. Query and
// document texts are embedded client-side through the injected Embedder.
type RemoteStore struct {
	log      *logger.Logger
	cfg      Config
	embedder Embedder
	client   *http.Client

	mu           sync.Mutex
	collectionID string
}

func NewRemoteStore(log *logger.Logger, cfg Config, embedder Embedder) (*RemoteStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.BaseURL == "" {
		return nil, opErr("init", ErrCodeInvalidInput, "base url required", nil)
	}
	if embedder == nil {
		return nil, opErr("init", ErrCodeInvalidInput, "embedder required", nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &RemoteStore{
		log:      log.With("service", "ChromaStore", "collection", cfg.Collection),
		cfg:      cfg,
		embedder: embedder,
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (s *RemoteStore) collectionPath() string {
	return fmt.Sprintf("/api/v2/tenants/%s/databases/%s/collections", s.cfg.Tenant, s.cfg.Database)
}

func (s *RemoteStore) doJSON(ctx context.Context, op, method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return opErr(op, ErrCodeInvalidInput, "encode request", err)
		}
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.cfg.BaseURL+path, &buf)
	if err != nil {
		return opErr(op, ErrCodeRequest, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return opErr(op, ErrCodeRequest, "http call", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return opErr(op, ErrCodeRequest, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{Op: op, Code: ErrCodeHTTPStatus, StatusCode: resp.StatusCode, Message: string(raw)}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return opErr(op, ErrCodeDecode, "decode response", err)
		}
	}
	return nil
}

// ensureCollection resolves and caches the collection id, creating the
// collection when it does not exist yet.
func (s *RemoteStore) ensureCollection(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collectionID != "" {
		return s.collectionID, nil
	}

	var created struct {
		ID string `json:"id"`
	}
	body := map[string]any{"name": s.cfg.Collection, "get_or_create": true}
	if err := s.doJSON(ctx, "ensure_collection", "POST", s.collectionPath(), body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", opErr("ensure_collection", ErrCodeDecode, "empty collection id", nil)
	}
	s.collectionID = created.ID
	return s.collectionID, nil
}

type queryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

func (s *RemoteStore) Search(ctx context.Context, queryText string, topK int, filter map[string]any) ([]QueryResult, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, opErr("search", ErrCodeInvalidInput, "query text required", nil)
	}
	if topK <= 0 {
		topK = 3
	}

	collID, err := s.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}

	vecs, err := s.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, opErr("search", ErrCodeRequest, "embed query", err)
	}

	where, err := NormalizeFilter(filter)
	if err != nil {
		return nil, opErr("search", ErrCodeInvalidInput, "bad filter", err)
	}

	body := map[string]any{
		"query_embeddings": vecs,
		"n_results":        topK,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if where != nil {
		body["where"] = where
	}

	var resp queryResponse
	path := fmt.Sprintf("%s/%s/query", s.collectionPath(), collID)
	if err := s.doJSON(ctx, "search", "POST", path, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.IDs) == 0 {
		return []QueryResult{}, nil
	}

	results := make([]QueryResult, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		qr := QueryResult{Document: Document{ID: id}}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			qr.Document.Text = resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			qr.Document.Metadata = resp.Metadatas[0][i]
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			qr.Distance = resp.Distances[0][i]
		}
		results = append(results, qr)
	}
	return results, nil
}

type getResponse struct {
	IDs       []string         `json:"ids"`
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
}

func (s *RemoteStore) ListAll(ctx context.Context, filter map[string]any) ([]Document, error) {
	collID, err := s.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}

	where, err := NormalizeFilter(filter)
	if err != nil {
		return nil, opErr("list_all", ErrCodeInvalidInput, "bad filter", err)
	}

	body := map[string]any{"include": []string{"documents", "metadatas"}}
	if where != nil {
		body["where"] = where
	}

	var resp getResponse
	path := fmt.Sprintf("%s/%s/get", s.collectionPath(), collID)
	if err := s.doJSON(ctx, "list_all", "POST", path, body, &resp); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(resp.IDs))
	for i, id := range resp.IDs {
		d := Document{ID: id}
		if i < len(resp.Documents) {
			d.Text = resp.Documents[i]
		}
		if i < len(resp.Metadatas) {
			d.Metadata = resp.Metadatas[i]
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (s *RemoteStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	collID, err := s.ensureCollection(ctx)
	if err != nil {
		return err
	}

	texts := make([]string, len(docs))
	ids := make([]string, len(docs))
	metas := make([]map[string]any, len(docs))
	for i, d := range docs {
		if strings.TrimSpace(d.ID) == "" {
			return opErr("upsert", ErrCodeInvalidInput, fmt.Sprintf("document %d missing id", i), nil)
		}
		ids[i] = d.ID
		texts[i] = d.Text
		metas[i] = d.Metadata
	}

	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return opErr("upsert", ErrCodeRequest, "embed documents", err)
	}

	body := map[string]any{
		"ids":        ids,
		"documents":  texts,
		"metadatas":  metas,
		"embeddings": vecs,
	}
	path := fmt.Sprintf("%s/%s/upsert", s.collectionPath(), collID)
	return s.doJSON(ctx, "upsert", "POST", path, body, nil)
}

func (s *RemoteStore) Count(ctx context.Context) (int, error) {
	collID, err := s.ensureCollection(ctx)
	if err != nil {
		return 0, err
	}
	var count int
	path := fmt.Sprintf("%s/%s/count", s.collectionPath(), collID)
	if err := s.doJSON(ctx, "count", "GET", path, nil, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *RemoteStore) Heartbeat(ctx context.Context) error {
	return s.doJSON(ctx, "heartbeat", "GET", "/api/v2/heartbeat", nil, nil)
}
