// One-shot lifecycle sweep: flips expired recommendation entries to
// inactive and purges long-dead ones. Safe to run from cron alongside the
// API's own periodic sweep; the lease lock and idempotent updates make
// overlap a no-op.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	redisclient "github.com/scentmatch/scentmatch-backend/internal/clients/redis"
	"github.com/scentmatch/scentmatch-backend/internal/db"
	"github.com/scentmatch/scentmatch-backend/internal/jobs"
	"github.com/scentmatch/scentmatch-backend/internal/logger"
	"github.com/scentmatch/scentmatch-backend/internal/repos"
	"github.com/scentmatch/scentmatch-backend/internal/utils"
)

func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	defer pg.Close()

	rdb, err := redisclient.NewClient(log)
	if err != nil {
		log.Fatal("Redis init failed", "error", err)
	}
	defer rdb.Close()

	interval := utils.GetEnvAsDuration("SWEEP_INTERVAL", 5*time.Minute, log)
	retention := utils.GetEnvAsDuration("SWEEP_RETENTION", 7*24*time.Hour, log)

	recRepo := repos.NewRecommendationEntryRepo(pg.DB(), log)
	sweeper := jobs.NewSweeper(recRepo, rdb, log, interval, retention)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := sweeper.RunOnce(ctx); err != nil {
		log.Fatal("Sweep failed", "error", err)
	}
	log.Info("Sweep finished")
}
