package main

import (
	"context"
	"flag"
	"os"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/model"
	"curate-pipeline/internal/repository/docstore"
	"curate-pipeline/internal/repository/unitofwork"
	"curate-pipeline/pkg/database"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

func main() {
	seed := flag.Bool("seed", false, "create an empty edition after migrating")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		color.Yellow("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		color.Red("Error: DB_CONNECTION_STRING is not set")
		os.Exit(1)
	}

	db, err := database.NewGormDBFromDSN(dsn, false)
	if err != nil {
		color.Red("Error: Failed to connect to database: %v", err)
		os.Exit(1)
	}

	color.Cyan("Step 1: Extensions")
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		color.Yellow("Warn: pgcrypto: %v. Continuing...", err)
	}

	models := model.All()
	color.Cyan("Step 2: AutoMigrate for %d tables", len(models))
	if err := db.AutoMigrate(models...); err != nil {
		color.Red("Error: AutoMigrate failed: %v", err)
		os.Exit(1)
	}

	color.Cyan("Step 3: Indexes")
	indexSQL := []string{
		`CREATE INDEX IF NOT EXISTS idx_agent_runs_trigger_started ON agent_runs (trigger_id, started_at);`,
		`CREATE INDEX IF NOT EXISTS idx_editions_active ON editions (created_at DESC) WHERE status <> 'published' AND deleted_at IS NULL;`,
	}
	for _, sql := range indexSQL {
		if err := db.Exec(sql).Error; err != nil {
			color.Yellow("Warn: %v. Continuing...", err)
		}
	}

	if *seed {
		store := docstore.NewPostgresStore(unitofwork.NewRepositoryFactory(db))
		edition := &entity.Edition{}
		if err := store.CreateEdition(context.Background(), edition); err != nil {
			color.Red("Error: seed edition: %v", err)
			os.Exit(1)
		}
		color.Green("Seeded edition %s", edition.Id)
	}

	color.Green("Migration complete")
}
