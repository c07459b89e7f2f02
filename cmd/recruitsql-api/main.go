package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/recruitsql/recruitsql/internal/api"
	"github.com/recruitsql/recruitsql/internal/auth"
	rediscache "github.com/recruitsql/recruitsql/internal/cache/redis"
	"github.com/recruitsql/recruitsql/internal/config"
	"github.com/recruitsql/recruitsql/internal/nl2sql"
	"github.com/recruitsql/recruitsql/internal/observability"
	"github.com/recruitsql/recruitsql/internal/pipeline"
	mysqlquery "github.com/recruitsql/recruitsql/internal/query/mysql"
	"github.com/recruitsql/recruitsql/internal/schema"
	s3store "github.com/recruitsql/recruitsql/internal/storage/s3"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("recruitsql-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	db, err := mysqlquery.Open(startupCtx, mysqlquery.DBConfig{
		DSN:             databaseDSN(cfg.Database),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open recruiting db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	executor, err := mysqlquery.NewExecutor(db, mysqlquery.Config{MaxRows: cfg.Database.MaxRows})
	if err != nil {
		logger.Error("failed to initialize query executor", slog.Any("error", err))
		os.Exit(1)
	}

	var objectStore *s3store.Store
	if strings.TrimSpace(cfg.ObjectStore.Endpoint) != "" {
		objectStore, err = s3store.New(startupCtx, s3store.Config{
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
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var descriptorStore schema.ObjectReader
	if objectStore != nil {
		descriptorStore = objectStore
	}
	descriptor, err := schema.Load(startupCtx, cfg.Schema.Source, descriptorStore)
	if err != nil {
		logger.Error("failed to load schema descriptor", slog.String("source", cfg.Schema.Source), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("schema descriptor loaded",
		slog.String("source", cfg.Schema.Source),
		slog.String("version", descriptor.Version),
		slog.Int("tables", len(descriptor.Tables)),
	)

	var cache *rediscache.Cache
	if cfg.Cache.Enabled {
		cache, err = rediscache.New(startupCtx, rediscache.Config{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			Prefix:   cfg.Cache.Prefix,
		})
		if err != nil {
			logger.Error("failed to connect synthesis cache", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = cache.Close() }()
	}

	model, err := newModel(startupCtx, cfg.Model)
	if err != nil {
		logger.Error("failed to initialize model backend", slog.String("provider", cfg.Model.Provider), slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Schema:            descriptor,
		DependencyTimeout: 2 * time.Second,
	}

	var chain *pipeline.Chain
	if model != nil {
		pipelineDeps := pipeline.Dependencies{
			Schema:   descriptor,
			Model:    model,
			Executor: executor,
			DB:       db,
			Logger:   logger,
		}
		if cache != nil {
			pipelineDeps.Cache = cache
		}
		chain, err = pipeline.New(pipeline.Config{
			SynthesisTimeout: cfg.Pipeline.SynthesisTimeout,
			ExecutionTimeout: cfg.Pipeline.ExecutionTimeout,
			CacheTTL:         cfg.Cache.TTL,
			MaxOutputTokens:  cfg.Model.MaxOutputTokens,
			Seed:             cfg.Model.Seed,
		}, pipelineDeps)
		if err != nil {
			_ = model.Close()
			logger.Error("failed to build question pipeline", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := chain.Close(); err != nil {
				logger.Warn("pipeline close failed", slog.Any("error", err))
			}
		}()
		deps.Pipeline = chain
		logger.Info("question pipeline ready", slog.String("provider", cfg.Model.Provider), slog.String("model", chain.ModelName()))
	} else {
		logger.Warn("no model provider configured; /query will answer 501")
	}

	readiness := []api.ReadinessCheck{
		api.CheckDependency("recruiting db", db),
		api.CheckModelConfigured(cfg),
	}
	if cache != nil {
		readiness = append(readiness, api.CheckDependency("synthesis cache", api.PingFunc(cache.Ping)))
	}
	if objectStore != nil {
		readiness = append(readiness, api.CheckDependency("object store", api.PingFunc(objectStore.Ping)))
	}
	deps.Readiness = api.CombineReadinessChecks(readiness...)

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
	}
}

func databaseDSN(cfg config.DatabaseConfig) string {
	if strings.TrimSpace(cfg.DSN) != "" {
		return cfg.DSN
	}
	return mysqlquery.DSN(cfg.Host, cfg.User, cfg.Password, cfg.Name)
}

// newModel returns nil when no provider is configured.
func newModel(ctx context.Context, cfg config.ModelConfig) (nl2sql.Model, error) {
	switch cfg.Provider {
	case config.ModelProviderNone:
		return nil, nil
	case config.ModelProviderOpenAI:
		return nl2sql.NewOpenAIModel(nl2sql.OpenAIConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Model:   cfg.Name,
			Mode:    cfg.Mode,
			Timeout: cfg.Timeout,
		})
	case config.ModelProviderGemini:
		return nl2sql.NewGeminiModel(ctx, nl2sql.GeminiConfig{
			APIKey:   cfg.APIKey,
			Model:    cfg.Name,
			Project:  cfg.Project,
			Location: cfg.Location,
		})
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}
