package app

import (
	"fmt"

	"github.com/scentmatch/scentmatch-backend/internal/clients/openai"
	redisclient "github.com/scentmatch/scentmatch-backend/internal/clients/redis"
	"github.com/scentmatch/scentmatch-backend/internal/logger"
	"github.com/scentmatch/scentmatch-backend/internal/quizbank"
	"github.com/scentmatch/scentmatch-backend/internal/services"
)

type Services struct {
	Auth           services.AuthService
	Quiz           services.QuizService
	Embedding      services.EmbeddingService
	Similarity     services.SimilarityService
	Ranker         services.RankerService
	RecCache       services.RecCacheService
	Learning       services.LearningService
	Recommendation services.RecommendationService
}

func wireServices(cfg Config, log *logger.Logger, reposet Repos, rdb *redisclient.Client) (Services, error) {
	log.Info("Wiring services...")

	bank, err := quizbank.Load(cfg.QuizBankPath)
	if err != nil {
		return Services{}, fmt.Errorf("load quiz bank: %w", err)
	}

	openaiClient, err := openai.NewClient(log)
	if err != nil {
		return Services{}, fmt.Errorf("init openai client: %w", err)
	}

	authService := services.NewAuthService(cfg.JWTSecretKey, log)
	quizService := services.NewQuizService(bank, log)
	embeddingService := services.NewEmbeddingService(openaiClient, reposet.TraitProfile, cfg.EmbeddingDim, cfg.EmbedTimeout, log)
	similarityService := services.NewSimilarityService(cfg.EmbeddingDim, log)
	rankerService := services.NewRankerService(cfg.Ranker, reposet.RecommendationEntry, log)
	recCacheService := services.NewRecCacheService(cfg.Cache, rdb, rdb, log)
	learningService := services.NewLearningService(
		cfg.Learning,
		reposet.Fragrance,
		reposet.PreferenceState,
		reposet.FeedbackEvent,
		reposet.RecommendationEntry,
		rdb,
		recCacheService,
		log,
	)
	recommendationService := services.NewRecommendationService(
		cfg.Rec,
		reposet.Fragrance,
		reposet.TraitProfile,
		reposet.PreferenceState,
		embeddingService,
		similarityService,
		rankerService,
		recCacheService,
		learningService,
		log,
	)

	return Services{
		Auth:           authService,
		Quiz:           quizService,
		Embedding:      embeddingService,
		Similarity:     similarityService,
		Ranker:         rankerService,
		RecCache:       recCacheService,
		Learning:       learningService,
		Recommendation: recommendationService,
	}, nil
}
