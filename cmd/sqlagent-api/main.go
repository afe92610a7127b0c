package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	"github.com/sqlagent/sqlagent/internal/agent"
	"github.com/sqlagent/sqlagent/internal/api"
	"github.com/sqlagent/sqlagent/internal/config"
	"github.com/sqlagent/sqlagent/internal/conversation"
	"github.com/sqlagent/sqlagent/internal/nl2sql"
	"github.com/sqlagent/sqlagent/internal/observability"
	"github.com/sqlagent/sqlagent/internal/query"
	"github.com/sqlagent/sqlagent/internal/query/duckdb"
	"github.com/sqlagent/sqlagent/internal/query/postgres"
	"github.com/sqlagent/sqlagent/internal/query/sqlite"
	"github.com/sqlagent/sqlagent/internal/querylog"
	"github.com/sqlagent/sqlagent/internal/schema"
	s3store "github.com/sqlagent/sqlagent/internal/storage/s3"
	"github.com/sqlagent/sqlagent/internal/visualize"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("sqlagent-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx := context.Background()

	backend, err := openBackend(cfg)
	if err != nil {
		logger.Error("failed to configure query backend", slog.Any("error", err))
		os.Exit(1)
	}

	var geminiClient *genai.Client
	if cfg.AI.Provider == config.AIProviderGemini {
		geminiClient, err = genai.NewClient(ctx, option.WithAPIKey(cfg.AI.APIKey))
		if err != nil {
			logger.Error("failed to create gemini client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = geminiClient.Close() }()
	}

	completer, err := newCompleter(cfg, geminiClient)
	if err != nil {
		logger.Error("failed to initialize text generation", slog.Any("error", err))
		os.Exit(1)
	}

	var embedder schema.Embedder
	if geminiClient != nil {
		embedder = schema.NewGeminiEmbedder(geminiClient, cfg.AI.EmbeddingModel)
	}
	schemaIndex := schema.NewIndex(schema.NewIntrospector(backend), embedder, cfg.Schema.TopK, logger)
	if err := schemaIndex.Reload(ctx); err != nil {
		// Retrieval returns no context until a reload succeeds.
		logger.Warn("initial schema load failed", slog.Any("error", err))
	}

	blob, err := newQueryLogBlob(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize query log store", slog.Any("error", err))
		os.Exit(1)
	}
	queryLog := querylog.New(blob, logger)

	agentDeps := agent.Dependencies{
		Reformulator: conversation.NewReformulator(completer),
		Schema:       schemaIndex,
		Generator:    nl2sql.NewSQLGenerator(completer, backend.Dialect()),
		Backend:      backend,
		QueryLog:     queryLog,
		Logger:       logger,
		ModelTimeout: cfg.AI.Timeout,
	}
	if cfg.Visualize.Enabled {
		agentDeps.Advisor = visualize.NewAdvisor(completer, logger)
	}

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:  logger,
		Chat:    agent.NewService(agentDeps),
		History: queryLog,
		Backend: backend,
		Schema:  schemaIndex,
		Readiness: api.CombineReadinessChecks(
			api.CheckBackend(backend),
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: 2 * time.Second,
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func openBackend(cfg config.Config) (query.Backend, error) {
	switch cfg.Database.Backend {
	case config.BackendSQLite:
		return sqlite.New(sqlite.Config{Path: cfg.Database.SQLitePath, Timeout: cfg.Database.QueryTimeout})
	case config.BackendDuckDB:
		return duckdb.New(duckdb.Config{Path: cfg.Database.DuckDBPath, Timeout: cfg.Database.QueryTimeout})
	case config.BackendPostgres:
		pg := cfg.Database.Postgres
		return postgres.New(postgres.Config{
			Host:     pg.Host,
			Port:     pg.Port,
			User:     pg.User,
			Password: pg.Password,
			Database: pg.Database,
			SSLMode:  pg.SSLMode,
			Timeout:  cfg.Database.QueryTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Database.Backend)
	}
}

func newCompleter(cfg config.Config, geminiClient *genai.Client) (nl2sql.Completer, error) {
	if cfg.AI.Provider == config.AIProviderGemini {
		return nl2sql.NewGeminiCompleter(geminiClient, nl2sql.GeminiConfig{
			Model:       cfg.AI.Model,
			Temperature: float32(cfg.AI.Temperature),
		})
	}
	return nl2sql.NewOpenAICompleter(nl2sql.OpenAIConfig{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
}

func newQueryLogBlob(ctx context.Context, cfg config.Config) (querylog.Blob, error) {
	if cfg.QueryLog.Store != config.QueryLogStoreObject {
		return querylog.NewFileBlob(cfg.QueryLog.Path), nil
	}
	store, err := s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		return nil, err
	}
	return querylog.NewObjectBlob(store, cfg.QueryLog.ObjectKey), nil
}
