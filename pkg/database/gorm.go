package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig sizes the underlying sql.DB pool.
type PoolConfig struct {
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
}

// DefaultPool suits one worker process with a few dozen concurrent stages.
var DefaultPool = PoolConfig{MaxIdle: 10, MaxOpen: 50, MaxLifetime: time.Hour}

func newLogger(verbose bool) logger.Interface {
	level := logger.Warn
	if verbose {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  verbose,
		},
	)
}

func configureConnectionPool(db *gorm.DB, pool PoolConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(pool.MaxIdle)
	sqlDB.SetMaxOpenConns(pool.MaxOpen)
	sqlDB.SetConnMaxLifetime(pool.MaxLifetime)
	return nil
}

// NewGormDBFromDSN opens a Postgres connection. verbose logs every statement.
func NewGormDBFromDSN(dsn string, verbose bool) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newLogger(verbose),
	})
	if err != nil {
		return nil, err
	}

	if err := configureConnectionPool(db, DefaultPool); err != nil {
		return nil, err
	}

	return db, nil
}
