package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	"github.com/scentmatch/scentmatch-backend/internal/requestdata"
	"github.com/scentmatch/scentmatch-backend/internal/services"
)

type FeedbackHandler struct {
	log        *logger.Logger
	recService services.RecommendationService
}

func NewFeedbackHandler(log *logger.Logger, recService services.RecommendationService) *FeedbackHandler {
	return &FeedbackHandler{
		log:        log.With("handler", "FeedbackHandler"),
		recService: recService,
	}
}

type submitFeedbackRequest struct {
	EventID     uuid.UUID      `json:"event_id" binding:"required"`
	FragranceID uuid.UUID      `json:"fragrance_id" binding:"required"`
	SignalType  string         `json:"signal_type" binding:"required"` // explicit | implicit
	Action      string         `json:"action" binding:"required"`
	Value       float64        `json:"value"`
	DurationMS  int64          `json:"duration_millis"`
	Context     map[string]any `json:"context"`
}

// SubmitFeedback accepts one feedback event. Duplicate event ids no-op with
// a "duplicate" ack; unknown fragrances ack as "dropped".
func (h *FeedbackHandler) SubmitFeedback(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusForbidden, "forbidden", nil)
		return
	}

	var req submitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	var signal services.FeedbackSignal
	switch req.SignalType {
	case "explicit":
		signal = services.ExplicitSignal{Action: req.Action, Value: req.Value}
	case "implicit":
		signal = services.ImplicitSignal{Kind: req.Action, DurationMillis: req.DurationMS}
	default:
		RespondError(c, http.StatusBadRequest, "invalid_signal_type", nil)
		return
	}

	ack, err := h.recService.SubmitFeedback(c.Request.Context(), rd.UserID, services.FeedbackRequest{
		EventID:     req.EventID,
		FragranceID: req.FragranceID,
		Signal:      signal,
		Context:     req.Context,
	})
	if err != nil {
		h.log.Error("Feedback submission failed", "user_id", rd.UserID, "event_id", req.EventID, "error", err)
		RespondTaxonomy(c, err)
		return
	}
	RespondOK(c, ack)
}
