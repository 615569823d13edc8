// Command stubagent answers stage requests over NATS with the deterministic
// local agents, standing in for real stage workers in development.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"curate-pipeline/internal/config"
	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/stage"
	pktNats "curate-pipeline/pkg/nats"

	"github.com/fatih/color"
	"github.com/nats-io/nats.go"
)

func main() {
	cfg := config.Load()
	if cfg.App.NatsURL == "" {
		color.Red("NATS_URL is not set")
		os.Exit(1)
	}

	stages, err := config.LoadStages(cfg.Stage.File)
	if err != nil {
		log.Fatalf("Failed to load %s: %v", cfg.Stage.File, err)
	}

	nc, err := pktNats.Connect(cfg.App.NatsURL)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer nc.Drain()

	agents := stage.LocalAgents()
	subs := make([]*nats.Subscription, 0, len(agents))
	for _, name := range entity.AllStages() {
		subject := stages.Subject(name)
		sub, err := stage.Serve(nc, subject, cfg.Stage.Queue, agents[name])
		if err != nil {
			log.Fatalf("Failed to serve %s: %v", subject, err)
		}
		subs = append(subs, sub)
		color.Green("Serving %s on %s", name, subject)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	color.Yellow("Stub agents stopped")
}
