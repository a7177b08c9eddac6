package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	"github.com/scentmatch/scentmatch-backend/internal/repos"
	"github.com/scentmatch/scentmatch-backend/internal/requestdata"
	"github.com/scentmatch/scentmatch-backend/internal/services"
)

type QuizHandler struct {
	log         *logger.Logger
	quizService services.QuizService
	profileRepo repos.TraitProfileRepo
}

func NewQuizHandler(log *logger.Logger, quizService services.QuizService, profileRepo repos.TraitProfileRepo) *QuizHandler {
	return &QuizHandler{
		log:         log.With("handler", "QuizHandler"),
		quizService: quizService,
		profileRepo: profileRepo,
	}
}

type submitQuizRequest struct {
	Answers []services.QuizAnswer `json:"answers"`
}

type submitQuizResponse struct {
	ProfileID    uuid.UUID `json:"profile_id"`
	DominantTags []string  `json:"dominant_tags"`
	Confidence   float64   `json:"confidence"`
	ColdStart    bool      `json:"cold_start"`
	QuizVersion  string    `json:"quiz_version"`
}

// SubmitQuiz builds and persists a new trait profile snapshot from the
// submitted answers. A retake supersedes the previous snapshot.
func (h *QuizHandler) SubmitQuiz(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusForbidden, "forbidden", nil)
		return
	}

	var req submitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	profile, err := h.quizService.BuildProfile(c.Request.Context(), rd.UserID, req.Answers)
	if err != nil {
		RespondTaxonomy(c, err)
		return
	}
	if err := h.profileRepo.Create(c.Request.Context(), profile); err != nil {
		h.log.Error("Failed to persist trait profile", "user_id", rd.UserID, "error", err)
		RespondTaxonomy(c, err)
		return
	}

	tags, err := profile.Tags()
	if err != nil {
		RespondTaxonomy(c, err)
		return
	}
	RespondOK(c, submitQuizResponse{
		ProfileID:    profile.ID,
		DominantTags: tags,
		Confidence:   profile.Confidence,
		ColdStart:    profile.ColdStart,
		QuizVersion:  profile.QuizVersion,
	})
}

// GetQuestions serves the question bank so the UI renders the quiz from the
// same source the builder scores against.
func (h *QuizHandler) GetQuestions(c *gin.Context) {
	bank := h.quizService.Bank()
	out := make([]gin.H, 0, len(bank.Questions))
	for _, q := range bank.Questions {
		opts := make([]gin.H, 0, len(q.Options))
		for _, o := range q.Options {
			opts = append(opts, gin.H{"id": o.ID, "label": o.Label})
		}
		out = append(out, gin.H{
			"id":         q.ID,
			"prompt":     q.Prompt,
			"min_select": q.MinSelect,
			"max_select": q.MaxSelect,
			"options":    opts,
		})
	}
	RespondOK(c, gin.H{"version": bank.Version, "questions": out})
}
