package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/talentcloud/matchdex/internal/config"
	"github.com/talentcloud/matchdex/internal/db"
	dbRedis "github.com/talentcloud/matchdex/internal/db/redis"
	dbValkey "github.com/talentcloud/matchdex/internal/db/valkey"
	"github.com/talentcloud/matchdex/internal/domain"
	"github.com/talentcloud/matchdex/internal/index"
	logpkg "github.com/talentcloud/matchdex/internal/logger"
	"github.com/talentcloud/matchdex/internal/metrics"
	budgetrepo "github.com/talentcloud/matchdex/internal/repository/budget"
	"github.com/talentcloud/matchdex/internal/repository/embcache"
	"github.com/talentcloud/matchdex/internal/repository/matchcache"
	profilerepo "github.com/talentcloud/matchdex/internal/repository/profile"
	"github.com/talentcloud/matchdex/internal/scoring"
	chiTransport "github.com/talentcloud/matchdex/internal/transport/chi"
	openaiEmb "github.com/talentcloud/matchdex/internal/transport/openai"
	embeddinguc "github.com/talentcloud/matchdex/internal/usecase/embedding"
	healthuc "github.com/talentcloud/matchdex/internal/usecase/health"
	matchuc "github.com/talentcloud/matchdex/internal/usecase/match"
	profileuc "github.com/talentcloud/matchdex/internal/usecase/profile"
	"github.com/talentcloud/matchdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting matchdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Create database store based on driver
	var store db.Store
	switch cfg.Database.Driver {
	case "valkey":
		store, err = dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
	default:
		logger.Fatal("Unknown database driver", zap.String("driver", cfg.Database.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterMatchMetrics()

	// Single BudgetTracker shared by the embedder chain.
	var budget *embeddinguc.BudgetTracker
	budgetCfg := cfg.Embedding.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		budget = embeddinguc.NewBudgetTracker(
			cfg.Embedding.Provider, budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit, action, logger,
		)
		// Connect persistence store — loads current counters from DB.
		budgetStore := budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour)
		budget.WithStore(ctx, budgetStore)
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budgetChecker embeddinguc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	embedder := buildEmbedder(cfg.Embedding, store, budgetChecker, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// In-process vector indexes, one per corpus side
	candidateIndex := buildIndex(cfg.Index, cfg.Embedding.Dimensions)
	jobIndex := buildIndex(cfg.Index, cfg.Embedding.Dimensions)
	logger.Info("Vector indexes created",
		zap.String("type", cfg.Index.Type),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Repositories
	profRepo := profilerepo.New(store)
	resultCache := matchcache.New(
		store,
		time.Duration(cfg.Cache.ResultTTLSec)*time.Second,
		metrics.MatchCacheTotal,
		logger,
	)

	// Scoring engine
	scorer := scoring.NewEngine(scoring.Policy{
		MaxExperienceDeficit: cfg.Scoring.MaxExperienceDeficit,
		LocationPartial:      cfg.Scoring.LocationPartial,
		LocationNeutral:      cfg.Scoring.LocationNeutral,
		Regions:              cfg.Scoring.Regions,
	})

	// Use case services
	profSvc := profileuc.NewService(profRepo, embedder, candidateIndex, jobIndex, resultCache, logger)

	var matchCache matchuc.ResultCache
	if cfg.Cache.Enabled {
		matchCache = resultCache
	}
	matchSvc := matchuc.NewService(
		profRepo, embedder, candidateIndex, jobIndex,
		scorer, matchCache, cfg.Index.Oversample, logger,
	)
	healthSvc := healthuc.New(store, newEncoderHealthChecker(embedder), candidateIndex, jobIndex)

	// Warm-load the indexes from persisted vectors: restarts are stateless.
	if err := profSvc.WarmLoad(ctx); err != nil {
		logger.Fatal("Failed to warm indexes from store", zap.Error(err))
	}

	server := chiTransport.NewServer(profSvc, matchSvc, healthSvc, cfg.Index.MaxBatchSize, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildIndex creates the configured index flavor.
func buildIndex(cfg config.IndexConfig, dim int) index.Index {
	if cfg.Type == "ivf" {
		return index.NewIVF(dim, cfg.IVFLists, cfg.IVFProbes).
			WithRecallFloor(cfg.RecallFloor)
	}
	return index.NewFlat(dim)
}

// encoderHealthChecker wraps domain.Embedder to implement health.EncoderChecker.
type encoderHealthChecker struct {
	embedder domain.Embedder
}

func newEncoderHealthChecker(embedder domain.Embedder) *encoderHealthChecker {
	return &encoderHealthChecker{embedder: embedder}
}

func (h *encoderHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("encoder health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the decorator chain:
// OpenAI -> Cached -> Instrumented -> Truncating -> Sentinel
func buildEmbedder(
	cfg config.EmbeddingConfig,
	store db.Store,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	// Base provider (with transport metrics built-in)
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Logger:     logger,
	})

	// Cached
	var embedder domain.Embedder = base
	if store != nil && cfg.CacheTTLSec > 0 {
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger).
			WithTTL(time.Duration(cfg.CacheTTLSec) * time.Second)
	}

	// Instrumented (budget + logging)
	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Provider, cfg.Model, budget, logger,
	)

	// Deterministic head-first truncation for over-long input
	embedder = domain.NewTruncatingEmbedder(embedder, cfg.MaxInputRunes)

	// Blank input short-circuits to the sentinel vector (outermost: the
	// encoder never sees empty text, the cache never stores it).
	return domain.NewSentinelEmbedder(embedder, cfg.Dimensions)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
