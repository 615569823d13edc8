package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"curate-pipeline/internal/bootstrap"
	"curate-pipeline/internal/config"
	"curate-pipeline/internal/server"
	"curate-pipeline/internal/tracer"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 2. Tracing (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer("curate-pipeline-worker")
	defer shutdownTracer(context.Background())

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewWorkerContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to bootstrap worker: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Start the pipeline
	if err := container.Start(ctx); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}

	// 5. Serve status and ingestion endpoints
	srv := server.New("curate-pipeline-worker", cfg.App.Port, cfg.App.CorsAllowedOrigins, container)
	go func() {
		if err := srv.Run(); err != nil {
			log.Printf("HTTP server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Stage.DefaultTimeout+10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := container.Shutdown(shutdownCtx); err != nil {
		log.Printf("Pipeline shutdown: %v", err)
	}
}
