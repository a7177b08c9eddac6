package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	"github.com/scentmatch/scentmatch-backend/internal/repos"
	"github.com/scentmatch/scentmatch-backend/internal/types"
)

// RecWeights is the per-type composite weighting. Exposed as configuration
// because the exact mix is a product-tuning knob, not an invariant.
type RecWeights struct {
	Similarity float64
	Novelty    float64
	Trending   float64
	Alignment  float64
}

type RankerConfig struct {
	Weights      map[string]RecWeights
	MaxPerBrand  int
	MaxPerFamily int
	// AntiPenalty scales how hard proximity to the anti-preference
	// embedding drags the alignment term down.
	AntiPenalty float64
	EntryTTL    map[string]time.Duration
}

func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		Weights: map[string]RecWeights{
			types.RecTypeSimilar:     {Similarity: 0.55, Novelty: 0.10, Trending: 0.10, Alignment: 0.25},
			types.RecTypeAdventurous: {Similarity: 0.20, Novelty: 0.45, Trending: 0.10, Alignment: 0.25},
			types.RecTypeTrending:    {Similarity: 0.15, Novelty: 0.10, Trending: 0.60, Alignment: 0.15},
			types.RecTypeSeasonal:    {Similarity: 0.45, Novelty: 0.15, Trending: 0.15, Alignment: 0.25},
		},
		MaxPerBrand:  2,
		MaxPerFamily: 2,
		AntiPenalty:  0.8,
		EntryTTL: map[string]time.Duration{
			types.RecTypeSimilar:     24 * time.Hour,
			types.RecTypeAdventurous: 12 * time.Hour,
			types.RecTypeTrending:    4 * time.Hour,
			types.RecTypeSeasonal:    24 * time.Hour,
		},
	}
}

func (c RankerConfig) weightsFor(recType string) RecWeights {
	if w, ok := c.Weights[recType]; ok {
		return w
	}
	return c.Weights[types.RecTypeSimilar]
}

func (c RankerConfig) ttlFor(recType string) time.Duration {
	if ttl, ok := c.EntryTTL[recType]; ok {
		return ttl
	}
	return 24 * time.Hour
}

type RankedItem struct {
	FragranceID uuid.UUID `json:"fragrance_id"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	Family      string    `json:"family"`
	Score       float64   `json:"score"`
	Similarity  float64   `json:"similarity"`
	Novelty     float64   `json:"novelty"`
	Trending    float64   `json:"trending"`
	Alignment   float64   `json:"alignment"`
	Reason      string    `json:"reason"`
}

type RankedList struct {
	RecType     string       `json:"rec_type"`
	Entries     []RankedItem `json:"entries"`
	ColdStart   bool         `json:"cold_start"`
	Stale       bool         `json:"stale"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// RankerService folds similarity hits together with the user's preference
// state into an explainable ranked list and records the served entries.
type RankerService interface {
	Rank(ctx context.Context, userID uuid.UUID, recType string, hits []SimilarityHit, prefs *types.PreferenceState, limit int) (*RankedList, error)
}

type rankerService struct {
	cfg     RankerConfig
	recRepo repos.RecommendationEntryRepo
	log     *logger.Logger
}

func NewRankerService(cfg RankerConfig, recRepo repos.RecommendationEntryRepo, baseLog *logger.Logger) RankerService {
	return &rankerService{
		cfg:     cfg,
		recRepo: recRepo,
		log:     baseLog.With("service", "RankerService"),
	}
}

type scoredCandidate struct {
	hit        *SimilarityHit
	score      float64
	novelty    float64
	trending   float64
	alignment  float64
	reason     string
}

func (s *rankerService) Rank(ctx context.Context, userID uuid.UUID, recType string, hits []SimilarityHit, prefs *types.PreferenceState, limit int) (*RankedList, error) {
	if limit <= 0 || limit > MaxTopK {
		limit = MaxTopK
	}
	w := s.cfg.weightsFor(recType)
	now := time.Now().UTC()

	// ColdStart is owned by the caller: the ranker cannot tell a new user
	// from an item-seeded list that legitimately has no preference state.
	list := &RankedList{
		RecType:     recType,
		GeneratedAt: now,
	}
	if len(hits) == 0 {
		return list, nil
	}

	var prefVec, antiVec []float32
	if prefs != nil {
		var err error
		if prefVec, err = prefs.PreferenceVector(); err != nil {
			return nil, err
		}
		if antiVec, err = prefs.AntiVector(); err != nil {
			return nil, err
		}
	}

	ids := make([]uuid.UUID, 0, len(hits))
	for i := range hits {
		ids = append(ids, hits[i].Fragrance.ID)
	}
	surfaced := map[uuid.UUID]int{}
	if userID != uuid.Nil {
		var err error
		surfaced, err = s.recRepo.CountSurfaced(ctx, userID, ids)
		if err != nil {
			return nil, err
		}
	}

	var maxPriority float64
	for i := range hits {
		if p := priorityScore(&hits[i].Fragrance); p > maxPriority {
			maxPriority = p
		}
	}

	// A dislike-only user has a zero preference embedding but a live anti
	// embedding; the penalty must still apply.
	hasPref := len(prefVec) > 0 && !isZeroVector(prefVec)
	hasAnti := len(antiVec) > 0 && !isZeroVector(antiVec)

	candidates := make([]scoredCandidate, 0, len(hits))
	for i := range hits {
		hit := &hits[i]
		novelty := 1.0 / (1.0 + float64(surfaced[hit.Fragrance.ID]))
		trending := 0.0
		if maxPriority > 0 {
			trending = priorityScore(&hit.Fragrance) / maxPriority
		}
		alignment := 0.0
		if hasPref || hasAnti {
			emb, err := hit.Fragrance.EmbeddingVector()
			if err != nil {
				return nil, err
			}
			if hasPref {
				alignment = cosine(emb, prefVec)
			}
			if hasAnti {
				if anti := cosine(emb, antiVec); anti > 0 {
					alignment -= s.cfg.AntiPenalty * anti
				}
			}
		}

		score := clamp01(w.Similarity*hit.Similarity + w.Novelty*novelty + w.Trending*trending + w.Alignment*alignment)
		candidates = append(candidates, scoredCandidate{
			hit:       hit,
			score:     score,
			novelty:   novelty,
			trending:  trending,
			alignment: alignment,
			reason:    buildReason(w, hit, novelty, trending, alignment),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].hit.Fragrance.ID.String() < candidates[j].hit.Fragrance.ID.String()
	})

	selected := s.applyDiversity(candidates, limit)

	entries := make([]types.RecommendationEntry, 0, len(selected))
	for _, c := range selected {
		f := &c.hit.Fragrance
		brandName := ""
		if f.Brand != nil {
			brandName = f.Brand.Name
		}
		list.Entries = append(list.Entries, RankedItem{
			FragranceID: f.ID,
			Name:        f.Name,
			Brand:       brandName,
			Family:      f.Family,
			Score:       c.score,
			Similarity:  c.hit.Similarity,
			Novelty:     c.novelty,
			Trending:    c.trending,
			Alignment:   c.alignment,
			Reason:      c.reason,
		})
		if userID != uuid.Nil {
			entries = append(entries, types.RecommendationEntry{
				UserID:          userID,
				FragranceID:     f.ID,
				RecType:         recType,
				Score:           c.score,
				SimilarityScore: c.hit.Similarity,
				NoveltyScore:    c.novelty,
				TrendingScore:   c.trending,
				AlignmentScore:  c.alignment,
				Reason:          c.reason,
				GeneratedAt:     now,
				ExpiresAt:       now.Add(s.cfg.ttlFor(recType)),
			})
		}
	}

	if len(entries) > 0 {
		if err := s.recRepo.UpsertActive(ctx, entries); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// applyDiversity walks candidates in score order and skips items once their
// brand or family hits the cap. Skipped items are not discarded: they refill
// the tail when the capped walk comes up short of limit.
func (s *rankerService) applyDiversity(candidates []scoredCandidate, limit int) []scoredCandidate {
	brandCount := map[string]int{}
	familyCount := map[string]int{}
	selected := make([]scoredCandidate, 0, limit)
	var skipped []scoredCandidate

	for _, c := range candidates {
		if len(selected) >= limit {
			break
		}
		brand := ""
		if c.hit.Fragrance.Brand != nil {
			brand = c.hit.Fragrance.Brand.Name
		}
		family := c.hit.Fragrance.Family
		if (brand != "" && brandCount[brand] >= s.cfg.MaxPerBrand) ||
			(family != "" && familyCount[family] >= s.cfg.MaxPerFamily) {
			skipped = append(skipped, c)
			continue
		}
		brandCount[brand]++
		familyCount[family]++
		selected = append(selected, c)
	}

	for _, c := range skipped {
		if len(selected) >= limit {
			break
		}
		selected = append(selected, c)
	}
	return selected
}

func buildReason(w RecWeights, hit *SimilarityHit, novelty, trending, alignment float64) string {
	type component struct {
		weighted float64
		reason   string
	}
	family := hit.Fragrance.Family
	if family == "" {
		family = "this style of"
	}
	comps := []component{
		{w.Similarity * hit.Similarity, "Close match to your scent profile"},
		{w.Novelty * novelty, "Something you haven't tried yet"},
		{w.Trending * trending, "Trending with reviewers this month"},
		{w.Alignment * alignment, fmt.Sprintf("Matches your preference for %s scents", family)},
	}
	best := comps[0]
	for _, c := range comps[1:] {
		if c.weighted > best.weighted {
			best = c
		}
	}
	return best.reason
}
