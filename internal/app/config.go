package app

import (
	"strings"
	"time"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	"github.com/scentmatch/scentmatch-backend/internal/services"
	"github.com/scentmatch/scentmatch-backend/internal/utils"
)

type Config struct {
	Env          string
	JWTSecretKey string
	AllowOrigins []string
	EmbeddingDim int
	QuizBankPath string
	EmbedTimeout time.Duration

	Rec      services.RecConfig
	Ranker   services.RankerConfig
	Learning services.LearningConfig
	Cache    services.CacheConfig

	SweepInterval  time.Duration
	SweepRetention time.Duration
}

// LoadConfig reads the env. The scoring weights, learning rate and TTLs are
// product-tuning knobs; the defaults live in the services package and the
// envs below override the ones that get retuned in practice.
func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Env:          utils.GetEnv("APP_ENV", "development", log),
		JWTSecretKey: utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		AllowOrigins: strings.Split(utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log), ","),
		EmbeddingDim: utils.GetEnvAsInt("EMBEDDING_DIM", 1024, log),
		QuizBankPath: utils.GetEnv("QUIZ_BANK_PATH", "", log),
		EmbedTimeout: utils.GetEnvAsDuration("EMBED_TIMEOUT", 10*time.Second, log),

		Rec:      services.DefaultRecConfig(),
		Ranker:   services.DefaultRankerConfig(),
		Learning: services.DefaultLearningConfig(),
		Cache:    services.DefaultCacheConfig(),

		SweepInterval:  utils.GetEnvAsDuration("SWEEP_INTERVAL", 5*time.Minute, log),
		SweepRetention: utils.GetEnvAsDuration("SWEEP_RETENTION", 7*24*time.Hour, log),
	}

	cfg.Rec.MinSimilarity = utils.GetEnvAsFloat("REC_MIN_SIMILARITY", cfg.Rec.MinSimilarity, log)
	cfg.Rec.DefaultLimit = utils.GetEnvAsInt("REC_DEFAULT_LIMIT", cfg.Rec.DefaultLimit, log)
	cfg.Rec.PoolLimit = utils.GetEnvAsInt("REC_POOL_LIMIT", cfg.Rec.PoolLimit, log)

	cfg.Ranker.MaxPerBrand = utils.GetEnvAsInt("RANKER_MAX_PER_BRAND", cfg.Ranker.MaxPerBrand, log)
	cfg.Ranker.MaxPerFamily = utils.GetEnvAsInt("RANKER_MAX_PER_FAMILY", cfg.Ranker.MaxPerFamily, log)
	cfg.Ranker.AntiPenalty = utils.GetEnvAsFloat("RANKER_ANTI_PENALTY", cfg.Ranker.AntiPenalty, log)

	cfg.Learning.LearningRate = utils.GetEnvAsFloat("LEARNING_RATE", cfg.Learning.LearningRate, log)
	cfg.Learning.DriftThreshold = utils.GetEnvAsFloat("DRIFT_THRESHOLD", cfg.Learning.DriftThreshold, log)

	cfg.Cache.ComputeTimeout = utils.GetEnvAsDuration("CACHE_COMPUTE_TIMEOUT", cfg.Cache.ComputeTimeout, log)
	cfg.Cache.StaleGrace = utils.GetEnvAsDuration("CACHE_STALE_GRACE", cfg.Cache.StaleGrace, log)

	return cfg
}
