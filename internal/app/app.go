package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	redisclient "github.com/scentmatch/scentmatch-backend/internal/clients/redis"
	"github.com/scentmatch/scentmatch-backend/internal/db"
	"github.com/scentmatch/scentmatch-backend/internal/jobs"
	"github.com/scentmatch/scentmatch-backend/internal/logger"
	"github.com/scentmatch/scentmatch-backend/internal/observability"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Redis    *redisclient.Client
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	Sweeper  *jobs.Sweeper

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "scentmatch-api",
		Environment: cfg.Env,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	rdb, err := redisclient.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(cfg, log, reposet, rdb)
	if err != nil {
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, serviceset, reposet)
	middleware := wireMiddleware(log, serviceset)
	router := wireRouter(cfg, handlerset, middleware)

	sweeper := jobs.NewSweeper(reposet.RecommendationEntry, rdb, log, cfg.SweepInterval, cfg.SweepRetention)

	return &App{
		Log:          log,
		DB:           theDB,
		Redis:        rdb,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Sweeper:      sweeper,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Sweeper != nil {
		a.Sweeper.Start(ctx)
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.pg != nil {
		a.pg.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
