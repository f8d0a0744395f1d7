package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lishiyo/twincore-prototype-sub000/internal/app"
	"github.com/lishiyo/twincore-prototype-sub000/internal/clients/redis"
	"github.com/lishiyo/twincore-prototype-sub000/internal/data/graph"
	httpx "github.com/lishiyo/twincore-prototype-sub000/internal/http"
	httpH "github.com/lishiyo/twincore-prototype-sub000/internal/http/handlers"
	"github.com/lishiyo/twincore-prototype-sub000/internal/observability"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/envutil"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/logger"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/neo4jdb"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/openai"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/qdrant"
	"github.com/lishiyo/twincore-prototype-sub000/internal/services"
)

func main() {
	log, err := logger.New(envutil.Str("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := app.Load("")
	if err != nil {
		log.Fatal("config load failed", "error", err)
	}

	ctx := context.Background()
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "twincore",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	// Embedding provider, optionally fronted by a redis cache.
	embedClient, err := openai.NewClient(log, cfg.EmbeddingDimension)
	if err != nil {
		log.Fatal("embedding client init failed", "error", err)
	}
	rdb := redis.NewFromEnv(log)
	embedder := services.NewCachedEmbedder(log, embedClient, rdb, envutil.Str("OPENAI_EMBED_MODEL", "text-embedding-3-small"))

	// Vector store.
	chunkStore, err := qdrant.NewChunkStore(log, qdrant.Config{
		URL:        envutil.Str("QDRANT_URL", "http://localhost:6333"),
		Collection: cfg.VectorCollectionName,
		VectorDim:  cfg.EmbeddingDimension,
	})
	if err != nil {
		log.Fatal("qdrant init failed", "error", err)
	}

	// Graph store.
	neoClient, err := neo4jdb.NewFromEnv(log, cfg.GraphDatabaseName)
	if err != nil {
		log.Fatal("neo4j init failed", "error", err)
	}
	defer neoClient.Close(ctx)
	graphStore := graph.NewStore(neoClient, log)

	// Schema bootstrap is idempotent; a cold store comes up ready.
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := chunkStore.EnsureCollection(initCtx); err != nil {
		log.Warn("vector collection bootstrap failed", "error", err)
	}
	if err := graphStore.EnsureSchema(initCtx); err != nil {
		log.Warn("graph schema bootstrap failed", "error", err)
	}
	cancel()

	// Services.
	coordinator := services.NewCoordinator(log, embedder, chunkStore, graphStore)
	messages := services.NewMessageConnector(log, coordinator)
	documents := services.NewDocumentConnector(log, coordinator, graphStore, cfg.ChunkDefaultSize, cfg.ChunkDefaultOverlap)
	retrievalCfg := services.RetrievalConfig{
		DefaultLimit:          cfg.DefaultRetrievalLimit,
		DefaultScoreThreshold: cfg.DefaultScoreThreshold,
	}
	engine := services.NewRetrievalEngine(log, embedder, chunkStore, graphStore, coordinator, retrievalCfg)
	resolver := services.NewPreferenceResolver(log, embedder, chunkStore, graphStore, retrievalCfg)
	admin := services.NewAdminService(log, chunkStore, graphStore, messages, documents)

	server := httpx.NewServer(httpx.RouterConfig{
		ServiceName:       "twincore",
		IngestHandler:     httpH.NewIngestHandler(messages, documents),
		RetrievalHandler:  httpH.NewRetrievalHandler(engine),
		PreferenceHandler: httpH.NewPreferenceHandler(resolver),
		AdminHandler:      httpH.NewAdminHandler(admin),
		HealthHandler:     httpH.NewHealthHandler(),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "address", cfg.ServerAddress)
		errCh <- server.Run(cfg.ServerAddress)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server exited", "error", err)
		}
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		if otelShutdown != nil {
			if err := otelShutdown(shutdownCtx); err != nil {
				log.Warn("otel shutdown failed", "error", err)
			}
		}
		if rdb != nil {
			_ = rdb.Close()
		}
	}
}
