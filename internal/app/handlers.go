package app

import (
	"github.com/scentmatch/scentmatch-backend/internal/handlers"
	"github.com/scentmatch/scentmatch-backend/internal/logger"
)

type Handlers struct {
	Quiz           *handlers.QuizHandler
	Recommendation *handlers.RecommendationHandler
	Feedback       *handlers.FeedbackHandler
}

func wireHandlers(log *logger.Logger, services Services, reposet Repos) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Quiz:           handlers.NewQuizHandler(log, services.Quiz, reposet.TraitProfile),
		Recommendation: handlers.NewRecommendationHandler(log, services.Recommendation),
		Feedback:       handlers.NewFeedbackHandler(log, services.Recommendation),
	}
}
