package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yeoul-labs/alimguard-backend/internal/classifier"
	"github.com/yeoul-labs/alimguard-backend/internal/clients/redis"
	"github.com/yeoul-labs/alimguard-backend/internal/corpus"
	"github.com/yeoul-labs/alimguard-backend/internal/generator"
	"github.com/yeoul-labs/alimguard-backend/internal/handlers"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/chroma"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/envutil"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/logger"
	"github.com/yeoul-labs/alimguard-backend/internal/platform/openai"
	"github.com/yeoul-labs/alimguard-backend/internal/retrieval"
	"github.com/yeoul-labs/alimguard-backend/internal/server"
	"github.com/yeoul-labs/alimguard-backend/internal/validation"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	// Clients
	log.Info("Setting up clients from main...")
	llm, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}

	rulesStore := chroma.NewFromEnv(ctx, log, llm, envutil.String("CHROMA_RULES_COLLECTION", "template_policies"))
	templatesStore := chroma.NewFromEnv(ctx, log, llm, envutil.String("CHROMA_TEMPLATES_COLLECTION", "approved_templates"))

	cache := redis.NewFromEnv(ctx, log)
	defer cache.Close()

	// Corpus seeding
	if seedPath := envutil.String("CORPUS_SEED_FILE", ""); seedPath != "" {
		seed, err := corpus.Load(seedPath)
		if err != nil {
			log.Error("Could not load corpus seed file", "path", seedPath, "error", err)
			os.Exit(1)
		}
		if err := corpus.Seed(ctx, log, seed, rulesStore, templatesStore); err != nil {
			log.Error("Could not seed corpora", "error", err)
			os.Exit(1)
		}
	}

	// Services
	log.Info("Setting up services from main...")
	ruleRetriever, err := retrieval.NewEngine(log, rulesStore)
	if err != nil {
		log.Error("Could not init rule retriever", "error", err)
		os.Exit(1)
	}
	templateRetriever, err := retrieval.NewEngine(log, templatesStore)
	if err != nil {
		log.Error("Could not init template retriever", "error", err)
		os.Exit(1)
	}

	constraintValidator, err := validation.NewConstraintValidator(log, rulesStore)
	if err != nil {
		log.Error("Could not init constraint validator", "error", err)
		os.Exit(1)
	}
	semanticValidator, err := validation.NewSemanticValidator(log, ruleRetriever, llm)
	if err != nil {
		log.Error("Could not init semantic validator", "error", err)
		os.Exit(1)
	}
	pipeline, err := validation.NewPipeline(log, constraintValidator, semanticValidator)
	if err != nil {
		log.Error("Could not init validation pipeline", "error", err)
		os.Exit(1)
	}

	messageClassifier, err := classifier.New(log, llm, cache)
	if err != nil {
		log.Error("Could not init classifier", "error", err)
		os.Exit(1)
	}
	templateGenerator, err := generator.New(log, messageClassifier, templateRetriever, ruleRetriever, llm)
	if err != nil {
		log.Error("Could not init generator", "error", err)
		os.Exit(1)
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	templateHandler := handlers.NewTemplateHandler(log, pipeline, templateGenerator, rulesStore, templatesStore)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		TemplateHandler: templateHandler,
	})

	addr := ":" + envutil.String("PORT", "8080")
	log.Info("Starting server", "addr", addr)
	if err := router.Run(addr); err != nil {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
