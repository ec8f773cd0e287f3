package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"prioritizer/internal/advisor"
	"prioritizer/internal/analyzer"
	"prioritizer/internal/cache"
	"prioritizer/internal/eventbus"
	"prioritizer/internal/orchestrator"
	"prioritizer/internal/platform/config"
	"prioritizer/internal/platform/httpserver"
	"prioritizer/internal/platform/logger"
	"prioritizer/internal/platform/metrics"
	platformredis "prioritizer/internal/platform/redis"
	"prioritizer/internal/privacy"
	"prioritizer/internal/scoring"
	"prioritizer/internal/supervisor"
	httptransport "prioritizer/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cache: Redis when configured, in-memory otherwise.
	var store cache.Store
	redisClient, err := platformredis.Connect(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		store = cache.NewRedis(redisClient, log)
		defer redisClient.Close()
	} else {
		log.Warn("redis not configured, using in-memory cache")
		store = cache.NewMemory()
	}

	// Bus: Kafka when brokers are configured, in-memory otherwise.
	var bus eventbus.Bus
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaBus, err := eventbus.NewKafka(cfg.Kafka.Brokers, "prioritizer", log)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		if err := kafkaBus.EnsureTopics(ctx, cfg.Kafka.Partitions); err != nil {
			log.Error("topic provisioning failed", "error", err)
			os.Exit(1)
		}
		bus = kafkaBus
	} else {
		log.Warn("no kafka brokers configured, using in-memory bus")
		bus = eventbus.NewMemoryBus("prioritizer", log)
	}
	defer bus.Close()

	var adv advisor.Advisor = advisor.Noop{}
	if cfg.Advisor.APIKey != "" {
		adv = advisor.NewOpenAI(advisor.Config{
			APIKey:  cfg.Advisor.APIKey,
			BaseURL: cfg.Advisor.BaseURL,
			Model:   cfg.Advisor.Model,
			Timeout: cfg.Advisor.Timeout,
		}, log)
	} else {
		log.Warn("advisor not configured, using fallback suggestions")
	}

	engine := scoring.New()
	m := metrics.New()
	orch := orchestrator.New(
		analyzer.New(),
		privacy.New(engine, log),
		engine,
		adv,
		store,
		bus,
		m,
		log,
		orchestrator.Config{
			BatchWorkers:   cfg.Pipeline.BatchWorkers,
			ResultTTL:      cfg.Pipeline.ResultTTL,
			SuggestionTTL:  cfg.Pipeline.SuggestionTTL,
			StatsTTL:       cfg.Pipeline.StatsTTL,
			ReportInterval: cfg.Pipeline.ReportInterval,
		},
	)

	sup := supervisor.New(log)
	if err := orch.Subscriptions(ctx, sup); err != nil {
		log.Error("subscription setup failed", "error", err)
		os.Exit(1)
	}

	router := httptransport.New(orch, store, bus.Publish, log, m, httptransport.Config{
		RateLimit:  cfg.Pipeline.RateLimit,
		RateWindow: cfg.Pipeline.RateWindow,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	sup.StopAll()
	log.Info("shutdown complete")
}
