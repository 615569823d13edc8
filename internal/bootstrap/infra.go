package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"curate-pipeline/internal/config"
	"curate-pipeline/internal/repository/contract"
	"curate-pipeline/internal/repository/docstore"
	"curate-pipeline/internal/repository/implementation"
	"curate-pipeline/internal/repository/memory"
	"curate-pipeline/internal/repository/unitofwork"
	"curate-pipeline/pkg/database"
	pktNats "curate-pipeline/pkg/nats"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// storage bundles the document store, change feed and run repository of
// the configured driver.
type storage struct {
	store contract.DocumentStore
	feed  contract.ChangeFeed
	runs  contract.RunRepository
}

type documentStoreFeed interface {
	contract.DocumentStore
	contract.ChangeFeed
}

func openStorage(cfg *config.Config) (*storage, error) {
	if cfg.App.StoreDriver == "memory" {
		log.Println("[WARN] Using in-memory document store; state is lost on exit")
		mem := memory.NewDocumentStore()
		return &storage{store: mem, feed: mem, runs: memory.NewRunRepository()}, nil
	}

	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, !cfg.IsProduction())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	var pg documentStoreFeed = docstore.NewPostgresStore(unitofwork.NewRepositoryFactory(gormDB))
	return &storage{store: pg, feed: pg, runs: implementation.NewRunRepository(gormDB)}, nil
}

// connectNats returns nil when no URL is configured or the server cannot be
// reached; callers degrade to no-op publishing.
func connectNats(url string) *nats.Conn {
	if url == "" {
		log.Println("[WARN] NATS_URL not set; event publishing disabled")
		return nil
	}
	nc, err := pktNats.Connect(url)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS: %v", err)
		return nil
	}
	return nc
}

func connectRedis(url string) *redis.Client {
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v; cluster fan-out disabled", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}
