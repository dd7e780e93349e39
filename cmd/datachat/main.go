package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/antoniostano/datachat/internal/agents"
	"github.com/antoniostano/datachat/internal/chat"
	"github.com/antoniostano/datachat/internal/config"
	"github.com/antoniostano/datachat/internal/datastore"
	"github.com/antoniostano/datachat/internal/history"
	"github.com/antoniostano/datachat/internal/httpapi"
	"github.com/antoniostano/datachat/internal/memory"
	"github.com/antoniostano/datachat/internal/observability"
	"github.com/antoniostano/datachat/internal/query"
	"github.com/antoniostano/datachat/internal/session"
)

func main() {
	// Local development keeps keys in .env; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	memoryStore, err := memory.NewStore(ctx, cfg.MemoryDatabaseURL)
	if err != nil {
		log.Fatalf("memory store init failed: %v", err)
	}
	defer memoryStore.Close()

	dataStore, err := datastore.NewStore(ctx, cfg.DataDatabaseURL)
	if err != nil {
		log.Fatalf("datastore init failed: %v", err)
	}
	defer dataStore.Close()

	provider, err := agents.NewProvider(agents.Config{
		Mode:            cfg.AgentProvider,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicModel:  cfg.AnthropicModel,
		MaxTokens:       cfg.AgentMaxTokens,
	})
	if err != nil {
		log.Fatalf("agent provider init failed: %v", err)
	}
	if _, ok := provider.(*agents.MockProvider); ok {
		log.Printf("agent provider: mock (no API key configured)")
	} else {
		log.Printf("agent provider: anthropic")
	}

	sessions := session.NewManager(cfg.SessionIdleTimeout)
	sessions.SetEvictHook(func(_ *session.Session) {
		metrics.TurnEvents.WithLabelValues("session_evicted").Inc()
		metrics.ActiveSessions.Set(float64(sessions.Count()))
	})

	orchestrator := chat.NewOrchestrator(chat.Options{
		Sessions:      sessions,
		Provider:      provider,
		Executor:      chat.NewFetchExecutor(query.NewSQLFetcher(provider, dataStore), cfg.MaxFetchRetries),
		Compactor:     history.NewCompactor(provider, cfg.HistoryMaxTurns, cfg.HistoryKeepRecent),
		Memory:        memoryStore,
		Metrics:       metrics,
		CacheKeepLast: cfg.CacheKeepLast,
	})

	api := httpapi.New(cfg, sessions, orchestrator, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sessions.StartJanitor(runCtx, time.Minute)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
