package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	errs "github.com/scentmatch/scentmatch-backend/internal/pkg/errors"
	"github.com/scentmatch/scentmatch-backend/internal/quizbank"
	"github.com/scentmatch/scentmatch-backend/internal/types"
)

type QuizAnswer struct {
	QuestionID     string   `json:"question_id"`
	OptionIDs      []string `json:"option_ids"`
	ResponseMillis int64    `json:"response_millis"`
}

// QuizService is the trait profile builder. It turns an ordered list of
// quiz answers into an immutable TraitProfile value; persisting the
// snapshot is the caller's job.
type QuizService interface {
	BuildProfile(ctx context.Context, userID uuid.UUID, answers []QuizAnswer) (*types.TraitProfile, error)
	Bank() *quizbank.Bank
}

type quizService struct {
	bank *quizbank.Bank
	log  *logger.Logger
}

func NewQuizService(bank *quizbank.Bank, baseLog *logger.Logger) QuizService {
	return &quizService{
		bank: bank,
		log:  baseLog.With("service", "QuizService"),
	}
}

func (s *quizService) Bank() *quizbank.Bank { return s.bank }

func (s *quizService) BuildProfile(ctx context.Context, userID uuid.UUID, answers []QuizAnswer) (*types.TraitProfile, error) {
	if len(answers) == 0 {
		return nil, fmt.Errorf("empty quiz submission: %w", errs.ErrInvalidArgument)
	}

	raw := map[string]float64{}
	// Earliest asked question contributing to each dimension; breaks tag
	// ties deterministically.
	firstTouched := map[string]int{}
	answered := map[string]bool{}

	for _, ans := range answers {
		q, askOrder, ok := s.bank.Question(ans.QuestionID)
		if !ok {
			return nil, fmt.Errorf("unknown question %s: %w", ans.QuestionID, errs.ErrInvalidArgument)
		}
		if answered[q.ID] {
			return nil, fmt.Errorf("question %s answered twice: %w", q.ID, errs.ErrInvalidArgument)
		}
		answered[q.ID] = true

		if len(ans.OptionIDs) < q.MinSelect || len(ans.OptionIDs) > q.MaxSelect {
			return nil, &errs.InvalidResponseCountError{
				QuestionID: q.ID,
				Got:        len(ans.OptionIDs),
				Min:        q.MinSelect,
				Max:        q.MaxSelect,
			}
		}

		picked := map[string]bool{}
		for _, optID := range ans.OptionIDs {
			if picked[optID] {
				return nil, fmt.Errorf("option %s selected twice for %s: %w", optID, q.ID, errs.ErrInvalidArgument)
			}
			picked[optID] = true
			opt, ok := q.Option(optID)
			if !ok {
				return nil, fmt.Errorf("unknown option %s for question %s: %w", optID, q.ID, errs.ErrInvalidArgument)
			}
			for dim, c := range opt.Contributions {
				raw[dim] += c * q.Importance
				if prev, seen := firstTouched[dim]; !seen || askOrder < prev {
					firstTouched[dim] = askOrder
				}
			}
		}
	}

	scores := make(map[string]float64, len(raw))
	for dim, v := range raw {
		// Saturating squash keeps every dimension in [0,1] regardless of
		// how many questions piled onto it.
		scores[dim] = clamp01(1 - math.Exp(-v/s.bank.Scale))
	}

	tags := dominantTags(scores, firstTouched, s.bank.SalienceThreshold, s.bank.MaxDominantTags)
	confidence := s.confidence(len(answers), scores)
	coldStart := confidence < s.bank.ConfidenceFloor

	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return nil, err
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}

	profile := &types.TraitProfile{
		ID:           uuid.New(),
		UserID:       userID,
		Scores:       datatypes.JSON(scoresJSON),
		DominantTags: datatypes.JSON(tagsJSON),
		Confidence:   confidence,
		ColdStart:    coldStart,
		QuizVersion:  s.bank.Version,
		CreatedAt:    time.Now().UTC(),
	}
	if coldStart {
		s.log.Info("Quiz produced a cold-start profile", "user_id", userID, "confidence", confidence, "answers", len(answers))
	}
	return profile, nil
}

func dominantTags(scores map[string]float64, firstTouched map[string]int, salience float64, maxTags int) []string {
	type dimScore struct {
		dim   string
		score float64
		asked int
	}
	var eligible []dimScore
	for dim, sc := range scores {
		if sc >= salience {
			eligible = append(eligible, dimScore{dim: dim, score: sc, asked: firstTouched[dim]})
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].score != eligible[j].score {
			return eligible[i].score > eligible[j].score
		}
		if eligible[i].asked != eligible[j].asked {
			return eligible[i].asked < eligible[j].asked
		}
		return eligible[i].dim < eligible[j].dim
	})
	if len(eligible) > maxTags {
		eligible = eligible[:maxTags]
	}
	tags := make([]string, 0, len(eligible))
	for _, e := range eligible {
		tags = append(tags, e.dim)
	}
	return tags
}

// confidence grows with answer count and with how concentrated the profile
// is: answers that keep reinforcing the same few dimensions read as a
// consistent taste, answers scattered across everything do not.
func (s *quizService) confidence(answerCount int, scores map[string]float64) float64 {
	if answerCount == 0 || len(scores) == 0 {
		return 0
	}
	var total float64
	vals := make([]float64, 0, len(scores))
	for _, v := range scores {
		total += v
		vals = append(vals, v)
	}
	if total == 0 {
		return 0
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(vals)))
	top := vals
	if len(top) > s.bank.MaxDominantTags {
		top = top[:s.bank.MaxDominantTags]
	}
	var topSum float64
	for _, v := range top {
		topSum += v
	}
	countFactor := float64(answerCount) / (float64(answerCount) + 1.5)
	consistency := 0.5 + 0.5*(topSum/total)
	return clamp01(countFactor * consistency)
}
