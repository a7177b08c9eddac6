package app

import (
	"github.com/gin-gonic/gin"

	"github.com/scentmatch/scentmatch-backend/internal/server"
)

func wireRouter(cfg Config, handlers Handlers, middleware Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		ServiceName:           "scentmatch-api",
		AllowOrigins:          cfg.AllowOrigins,
		AuthMiddleware:        middleware.Auth,
		QuizHandler:           handlers.Quiz,
		RecommendationHandler: handlers.Recommendation,
		FeedbackHandler:       handlers.Feedback,
	})
}
