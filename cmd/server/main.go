package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	auditdomain "custodia/internal/audit"
	auditHandler "custodia/internal/audit/handler"
	auditMetrics "custodia/internal/audit/metrics"
	"custodia/internal/audit/publisher"
	auditService "custodia/internal/audit/service"
	auditStore "custodia/internal/audit/store"
	"custodia/internal/compliance/cache"
	complianceHandler "custodia/internal/compliance/handler"
	complianceMetrics "custodia/internal/compliance/metrics"
	complianceService "custodia/internal/compliance/service"
	complianceStore "custodia/internal/compliance/store"
	"custodia/internal/platform/config"
	"custodia/internal/platform/httpserver"
	kafkaproducer "custodia/internal/platform/kafka/producer"
	"custodia/internal/platform/logger"
	"custodia/internal/platform/postgres"
	platformredis "custodia/internal/platform/redis"
	httptransport "custodia/internal/transport/http"
	"custodia/pkg/clock"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	clk := clock.System

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	producer, err := kafkaproducer.New(ctx, cfg.Kafka, log)
	if err != nil {
		log.Error("kafka producer failed", "error", err)
		os.Exit(1)
	}
	if producer != nil {
		defer producer.Close()
	}

	// Stores: Postgres when configured, in-memory for development.
	var (
		events  auditStore.Store
		records complianceStore.Store
	)
	if db != nil {
		events = auditStore.NewPostgres(db)
		records = complianceStore.NewPostgres(db)
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
		events = auditStore.NewInMemory()
		records = complianceStore.NewInMemory()
	}

	var statusCache *cache.StatusCache
	if redisClient != nil {
		statusCache = cache.New(redisClient.Client, cfg.Redis.StatusTTL, log)
	}

	auditSvc := auditService.New(events, log, auditMetrics.New(),
		auditService.WithClock(clk),
		auditService.WithPublisher(publisher.New(producerSink(producer))),
	)
	complianceSvc := complianceService.New(records, auditSvc, log, complianceMetrics.New(),
		complianceService.WithClock(clk),
		complianceService.WithCache(statusCache),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Compliance: complianceHandler.New(complianceSvc, log),
		Audit:      auditHandler.New(auditSvc, log),
		AdminToken: cfg.Server.AdminToken,
		Logger:     log,
		Clock:      clk,
		DB:         db,
		Redis:      redisClient,
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	// Lifecycle events go through the same audit pipeline as everything else.
	if _, err := auditSvc.Record(ctx, auditdomain.Event{
		EventType:   auditdomain.EventServerStartup,
		Action:      "server_startup",
		Description: "custodia admin API starting on " + cfg.Server.Addr,
		Success:     true,
	}); err != nil {
		log.Warn("startup audit event failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting custodia admin API", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if _, err := auditSvc.Record(shutdownCtx, auditdomain.Event{
			EventType:   auditdomain.EventServerShutdown,
			Action:      "server_shutdown",
			Description: "custodia admin API shutting down",
			Success:     true,
		}); err != nil {
			log.Warn("shutdown audit event failed", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// producerSink adapts the optional Kafka producer to the publisher.Sink
// interface without handing a typed-nil interface to the publisher.
func producerSink(p *kafkaproducer.Producer) publisher.Sink {
	if p == nil {
		return nil
	}
	return p
}
