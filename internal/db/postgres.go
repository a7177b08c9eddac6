package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	"github.com/scentmatch/scentmatch-backend/internal/types"
	"github.com/scentmatch/scentmatch-backend/internal/utils"
)

type PostgresService struct {
	db   *gorm.DB
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "scentmatch", log)
	maxConns := utils.GetEnvAsInt("POSTGRES_MAX_CONNS", 10, log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolCfg.MaxConns = int32(maxConns)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn: stdlib.OpenDBFromPool(pool),
	}), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open gorm over pgx pool: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		pool.Close()
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gdb, pool: pool, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.User{},
		&types.Brand{},
		&types.Fragrance{},
		&types.TraitProfile{},
		&types.PreferenceState{},
		&types.RecommendationEntry{},
		&types.FeedbackEvent{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	// At most one active entry per (user, fragrance, rec_type). Partial
	// indexes are outside what gorm tags can express.
	if err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uq_rec_entry_active
		ON "recommendation_entry" ("user_id", "fragrance_id", "rec_type")
		WHERE "is_active" AND "deleted_at" IS NULL
	`).Error; err != nil {
		s.log.Error("Failed to create active recommendation index", "error", err)
		return err
	}

	// One active trait profile per user; superseded snapshots stay queryable.
	if err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uq_trait_profile_active
		ON "trait_profile" ("user_id")
		WHERE "active"
	`).Error; err != nil {
		s.log.Error("Failed to create active trait profile index", "error", err)
		return err
	}

	s.log.Info("Postgres migration complete")
	return nil
}
