// Package main is the entry point for the hireplane controller.
// The controller serves the HTTP API for hiring agents and managing jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"hireplane/internal/agent"
	"hireplane/internal/config"
	"hireplane/internal/controller"
	"hireplane/internal/controller/handlers"
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
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	slogger := logger.New("controller")

	// Store selection: Postgres when configured, in-memory otherwise.
	var st store.Store
	var pinger handlers.Pinger
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		defer pg.Close()
		st = pg
		pinger = pg
	} else {
		slogger.Warn("DATABASE_URL not set, using in-memory store")
		st = memory.New()
	}

	// Tracing
	shutdownTracer, err := observability.InitTracing(ctx, "hireplane-controller", cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

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

	// Observable gauge that inspects the store only when scraped.
	meter := otel.Meter("hireplane-controller")
	_, err = meter.Int64ObservableGauge("hireplane.jobs.pending",
		metric.WithDescription("Current number of pending jobs"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			jobs, err := st.ListJobs(ctx)
			if err != nil {
				log.Printf("Failed to count pending jobs: %v", err)
				return nil // Don't crash metrics scrape on store error
			}
			var pending int64
			for _, j := range jobs {
				if j.Status == store.JobStatusPending {
					pending++
				}
			}
			obs.Observe(pending)
			return nil
		}),
	)
	if err != nil {
		log.Printf("Failed to register pending jobs metric: %v", err)
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

	// Embedded dispatch loop. Standalone workers (cmd/worker) can run
	// alongside it against the same store; the lease claim arbitrates.
	runner := worker.New(svc, worker.Config{TickInterval: cfg.TickInterval}, slogger)
	runner.Start()

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(controller.Options{
		Addr:           addr,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		MetricsHandler: metricsHandler,
	}, svc, st, pinger)

	go func() {
		log.Printf("Hireplane Controller starting on %s", addr)
		if err := srv.Run(ctx); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down controller...")
	runner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited properly")
}
