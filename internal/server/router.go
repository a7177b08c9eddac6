package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/scentmatch/scentmatch-backend/internal/handlers"
	"github.com/scentmatch/scentmatch-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName           string
	AllowOrigins          []string
	AuthMiddleware        *middleware.AuthMiddleware
	QuizHandler           *handlers.QuizHandler
	RecommendationHandler *handlers.RecommendationHandler
	FeedbackHandler       *handlers.FeedbackHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	api := router.Group("/api")
	{
		api.GET("/quiz/questions", cfg.QuizHandler.GetQuestions)
		api.GET("/fragrances/:id/similar", cfg.RecommendationHandler.GetSimilar)
	}

	// Protected
	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	{
		protected.POST("/quiz/submit", cfg.QuizHandler.SubmitQuiz)
		protected.GET("/recommendations", cfg.RecommendationHandler.GetRecommendations)
		protected.POST("/feedback", cfg.FeedbackHandler.SubmitFeedback)
	}

	return router
}
