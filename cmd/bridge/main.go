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
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	shutdownTracer := tracer.InitTracer("curate-pipeline-bridge")
	defer shutdownTracer(context.Background())

	container, err := bootstrap.NewBridgeContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to bootstrap bridge: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := container.Start(ctx); err != nil {
		log.Fatalf("Failed to start bridge: %v", err)
	}

	srv := server.New("curate-pipeline-bridge", cfg.Bridge.Port, cfg.App.CorsAllowedOrigins, container)
	go func() {
		if err := srv.Run(); err != nil {
			log.Printf("HTTP server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down bridge...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	_ = container.Shutdown(shutdownCtx)
}
