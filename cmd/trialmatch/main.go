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

	"github.com/trialmatch/trialmatch/internal/config"
	dbRedis "github.com/trialmatch/trialmatch/internal/db/redis"
	"github.com/trialmatch/trialmatch/internal/domain"
	logpkg "github.com/trialmatch/trialmatch/internal/logger"
	"github.com/trialmatch/trialmatch/internal/metrics"
	"github.com/trialmatch/trialmatch/internal/repository/embcache"
	searchrepo "github.com/trialmatch/trialmatch/internal/repository/search"
	trialrepo "github.com/trialmatch/trialmatch/internal/repository/trial"
	chiTransport "github.com/trialmatch/trialmatch/internal/transport/chi"
	openaiClient "github.com/trialmatch/trialmatch/internal/transport/openai"
	facetsuc "github.com/trialmatch/trialmatch/internal/usecase/facets"
	healthuc "github.com/trialmatch/trialmatch/internal/usecase/health"
	judgeuc "github.com/trialmatch/trialmatch/internal/usecase/judge"
	parseuc "github.com/trialmatch/trialmatch/internal/usecase/parse"
	retrievaluc "github.com/trialmatch/trialmatch/internal/usecase/retrieval"
	"github.com/trialmatch/trialmatch/internal/version"
)

func main() {
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

	logger.Info("Starting trialmatch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	// Embedder chain: OpenAI -> cached
	baseEmbedder := openaiClient.NewEmbedder(&openaiClient.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	embedder := embcache.New(baseEmbedder, store, metrics.EmbeddingCacheTotal, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// One chat client serves both the profile parser and the judge.
	var parseSvc *parseuc.Service
	var judgeSvc *judgeuc.Service
	if cfg.LLM.Model != "" {
		chat := openaiClient.NewChatClient(&openaiClient.ChatConfig{
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
			Provider: cfg.LLM.Provider,
			Logger:   logger,
		})
		parseSvc = parseuc.New(chat, logger)
		judgeSvc = judgeuc.New(chat, logger)
		logger.Info("Chat client created",
			zap.String("provider", cfg.LLM.Provider),
			zap.String("model", cfg.LLM.Model),
		)
	} else {
		logger.Warn("No LLM model configured, free-text parsing and judging disabled")
	}

	trialRepo := trialrepo.New(store)
	searchRepo := searchrepo.New(store)

	retrievalSvc := retrievaluc.New(embedder, searchRepo, retrievaluc.Options{
		DefaultMaxTrials: cfg.Retrieval.DefaultMaxTrials,
		MaxMaxTrials:     cfg.Retrieval.MaxMaxTrials,
	}, logger)
	facetsSvc := facetsuc.New(trialRepo, cfg.Retrieval.FacetPageSize, logger)
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(embedder), store)

	// Build the server with true nil interfaces when the LLM is not
	// configured. Go gotcha: a typed nil pointer wrapped in an interface
	// is not nil, so the services are passed through separate branches.
	var server *chiTransport.Server
	if parseSvc != nil {
		server = chiTransport.NewServer(
			parseSvc, retrievalSvc, judgeSvc, facetsSvc, trialRepo, healthSvc, logger)
	} else {
		server = chiTransport.NewServer(
			nil, retrievalSvc, nil, facetsSvc, trialRepo, healthSvc, logger)
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.RegisterRoutes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

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

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
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

// requestLogMiddleware emits one canonical log line per request and
// propagates X-Request-ID into the response and the context logger.
func requestLogMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
