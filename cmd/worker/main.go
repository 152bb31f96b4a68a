// Package main is the entry point for the hireplane worker.
// The worker drives the dispatch loop: it claims due jobs, invokes agent
// entrypoints, and sweeps expired leases left by crashed peers.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"hireplane/internal/agent"
	"hireplane/internal/config"
	"hireplane/internal/logger"
	"hireplane/internal/observability"
	"hireplane/internal/scheduler"
	"hireplane/internal/store"
	"hireplane/internal/store/memory"
	"hireplane/internal/store/postgres"
	"hireplane/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (optional)")
	metricsAddr := flag.String("metrics-addr", ":7172", "Listen address for the worker metrics endpoint")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slogger := logger.New("worker")

	// Tracing
	shutdownTracer, err := observability.InitTracing(ctx, "hireplane-worker", cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		defer pg.Close()
		st = pg
	} else {
		// An in-memory worker only sees jobs created in this same process.
		slogger.Warn("DATABASE_URL not set, using in-memory store")
		st = memory.New()
	}

	agentClient := agent.NewClient(nil)
	svc := scheduler.New(st, agentClient, agentClient, nil, scheduler.SystemClock(), slogger, scheduler.Options{
		WorkerID:          cfg.WorkerID,
		LeaseDuration:     cfg.LeaseDuration,
		CardTTL:           cfg.CardTTL,
		Concurrency:       cfg.DispatchConcurrency,
		MaxDueBatch:       cfg.MaxDueBatch,
		DefaultMaxRetries: cfg.DefaultMaxRetries,
		PaymentNetwork:    cfg.PaymentNetwork,
	})

	runner := worker.New(svc, worker.Config{
		TickInterval: cfg.TickInterval,
	}, slogger)

	log.Printf("Worker %s started, ticking every %v", svc.WorkerID(), cfg.TickInterval)
	go runner.Run(ctx)

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	// Dedicated metrics server so the worker is scrapable without the
	// controller's API surface.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		log.Printf("Worker metrics listening on %s", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()

	<-runner.Done()
}
