package chroma

import (
	"context"
	"time"

	"github.com/yeoul-labs/alimguard-backend/internal/platform/logger"
)

// NewFromEnv picks the store implementation once at startup. A configured
// and reachable CHROMA_URL wins; anything else degrades to the in-memory
// store with a warning, never an error. The choice is not revisited at
// runtime. A non-empty collection overrides the one from the environment
// so the rule and approved-template corpora can live side by side.
func NewFromEnv(ctx context.Context, log *logger.Logger, embedder Embedder, collection string) VectorStore {
	cfg := ConfigFromEnv()
	if collection != "" {
		cfg.Collection = collection
	}
	if cfg.BaseURL == "" {
		log.Warn("CHROMA_URL not set, using in-memory vector store")
		return NewMemoryStore()
	}

	remote, err := NewRemoteStore(log, cfg, embedder)
	if err != nil {
		log.Warn("remote vector store init failed, using in-memory store", "error", err.Error())
		return NewMemoryStore()
	}

	hbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := remote.Heartbeat(hbCtx); err != nil {
		log.Warn("chroma heartbeat failed, using in-memory store",
			"url", cfg.BaseURL,
			"error", err.Error(),
		)
		return NewMemoryStore()
	}

	log.Info("connected to chroma", "url", cfg.BaseURL, "collection", cfg.Collection)
	return remote
}
