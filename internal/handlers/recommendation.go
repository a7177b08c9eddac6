package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	"github.com/scentmatch/scentmatch-backend/internal/requestdata"
	"github.com/scentmatch/scentmatch-backend/internal/services"
)

type RecommendationHandler struct {
	log        *logger.Logger
	recService services.RecommendationService
}

func NewRecommendationHandler(log *logger.Logger, recService services.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{
		log:        log.With("handler", "RecommendationHandler"),
		recService: recService,
	}
}

// GetRecommendations serves the personalized list for the authenticated
// user. The response is never a silent failure: it is a ranked list
// (possibly cold_start / stale) or an explicit error envelope.
func (h *RecommendationHandler) GetRecommendations(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusForbidden, "forbidden", nil)
		return
	}
	recType := c.Query("type")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	list, err := h.recService.GetRecommendations(c.Request.Context(), rd.UserID, recType, limit)
	if err != nil {
		h.log.Error("Recommendation request failed", "user_id", rd.UserID, "type", recType, "error", err)
		RespondTaxonomy(c, err)
		return
	}
	RespondOK(c, list)
}

// GetSimilar serves item-seeded similarity; it needs no authentication
// since nothing user-specific feeds it.
func (h *RecommendationHandler) GetSimilar(c *gin.Context) {
	fragranceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	list, err := h.recService.GetSimilar(c.Request.Context(), fragranceID, limit)
	if err != nil {
		RespondTaxonomy(c, err)
		return
	}
	RespondOK(c, list)
}
