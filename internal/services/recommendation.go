package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	errs "github.com/scentmatch/scentmatch-backend/internal/pkg/errors"
	"github.com/scentmatch/scentmatch-backend/internal/repos"
	"github.com/scentmatch/scentmatch-backend/internal/types"
)

type RecConfig struct {
	DefaultLimit int
	// MinSimilarity is the floor a candidate must clear before ranking.
	MinSimilarity float64
	// PoolLimit bounds how many catalog candidates are pulled per compute.
	PoolLimit int
	// CandidateMultiplier oversamples similarity hits so the diversity
	// pass still has material after skipping capped brands/families.
	CandidateMultiplier int
}

func DefaultRecConfig() RecConfig {
	return RecConfig{
		DefaultLimit:        10,
		MinSimilarity:       0.25,
		PoolLimit:           2000,
		CandidateMultiplier: 3,
	}
}

var validRecTypes = map[string]bool{
	types.RecTypeSimilar:     true,
	types.RecTypeAdventurous: true,
	types.RecTypeTrending:    true,
	types.RecTypeSeasonal:    true,
}

// RecommendationService is the consumer-facing surface: it wires profile →
// similarity → ranker behind the cache, and routes feedback into the
// learning loop.
type RecommendationService interface {
	GetRecommendations(ctx context.Context, userID uuid.UUID, recType string, limit int) (*RankedList, error)
	GetSimilar(ctx context.Context, fragranceID uuid.UUID, limit int) (*RankedList, error)
	SubmitFeedback(ctx context.Context, userID uuid.UUID, req FeedbackRequest) (*FeedbackAck, error)
}

type recommendationService struct {
	cfg         RecConfig
	fragRepo    repos.FragranceRepo
	profileRepo repos.TraitProfileRepo
	prefRepo    repos.PreferenceStateRepo
	embedder    EmbeddingService
	similarity  SimilarityService
	ranker      RankerService
	cache       RecCacheService
	learning    LearningService
	log         *logger.Logger
}

func NewRecommendationService(
	cfg RecConfig,
	fragRepo repos.FragranceRepo,
	profileRepo repos.TraitProfileRepo,
	prefRepo repos.PreferenceStateRepo,
	embedder EmbeddingService,
	similarity SimilarityService,
	ranker RankerService,
	cache RecCacheService,
	learning LearningService,
	baseLog *logger.Logger,
) RecommendationService {
	return &recommendationService{
		cfg:         cfg,
		fragRepo:    fragRepo,
		profileRepo: profileRepo,
		prefRepo:    prefRepo,
		embedder:    embedder,
		similarity:  similarity,
		ranker:      ranker,
		cache:       cache,
		learning:    learning,
		log:         baseLog.With("service", "RecommendationService"),
	}
}

func (s *recommendationService) GetRecommendations(ctx context.Context, userID uuid.UUID, recType string, limit int) (*RankedList, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id required: %w", errs.ErrInvalidArgument)
	}
	if recType == "" {
		recType = types.RecTypeSimilar
	}
	if !validRecTypes[recType] {
		return nil, fmt.Errorf("unknown recommendation type %q: %w", recType, errs.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > MaxTopK {
		limit = MaxTopK
	}

	prefs, err := s.prefRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var prefVersion int64
	if prefs != nil {
		prefVersion = prefs.Version
	}

	key := CacheKey{Scope: userID, RecType: recType, Limit: limit, PrefVersion: prefVersion}
	return s.cache.GetOrCompute(ctx, userID, key, func(ctx context.Context) (*RankedList, error) {
		return s.computeForUser(ctx, userID, recType, limit, prefs)
	})
}

func (s *recommendationService) computeForUser(ctx context.Context, userID uuid.UUID, recType string, limit int, prefs *types.PreferenceState) (*RankedList, error) {
	profile, err := s.profileRepo.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	pool, err := s.fragRepo.ListWithEmbeddings(ctx, repos.FragranceFilter{Limit: s.cfg.PoolLimit})
	if err != nil {
		return nil, err
	}

	var query []float32
	coldStart := profile == nil || profile.ColdStart
	if !coldStart {
		query, err = s.embedder.ProfileVector(ctx, profile)
		if err != nil {
			var dimErr *errs.DimensionMismatchError
			if errors.As(err, &dimErr) {
				// Configuration fault, never absorbed.
				return nil, err
			}
			// Embedding collaborator degraded: fall back to the
			// popularity-driven pool rather than failing the request.
			s.log.Warn("Profile embedding unavailable, degrading to popularity candidates",
				"user_id", userID, "error", err)
			query = nil
		}
	}

	var hits []SimilarityHit
	candidateCap := limit * s.cfg.CandidateMultiplier
	if query != nil {
		hits, err = s.similarity.TopK(ctx, query, pool, candidateCap, s.cfg.MinSimilarity)
		if err != nil {
			return nil, err
		}
	} else {
		hits = popularityHits(pool, candidateCap)
	}

	list, err := s.ranker.Rank(ctx, userID, recType, hits, prefs, limit)
	if err != nil {
		return nil, err
	}
	// Cold start reflects the taste signal, not the catalog: no active
	// profile, or one the quiz scored below the confidence floor.
	list.ColdStart = coldStart
	return list, nil
}

func (s *recommendationService) GetSimilar(ctx context.Context, fragranceID uuid.UUID, limit int) (*RankedList, error) {
	if fragranceID == uuid.Nil {
		return nil, fmt.Errorf("fragrance id required: %w", errs.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > MaxTopK {
		limit = MaxTopK
	}

	seed, err := s.fragRepo.GetByID(ctx, fragranceID)
	if err != nil {
		return nil, err
	}
	if seed == nil {
		return nil, fmt.Errorf("fragrance %s: %w", fragranceID, errs.ErrNotFound)
	}

	key := CacheKey{Scope: fragranceID, RecType: types.RecTypeSimilar, Limit: limit}
	return s.cache.GetOrCompute(ctx, uuid.Nil, key, func(ctx context.Context) (*RankedList, error) {
		query, err := seed.EmbeddingVector()
		if err != nil {
			return nil, err
		}
		list := &RankedList{RecType: types.RecTypeSimilar}
		if query == nil {
			// Seed has no embedding yet; an empty list is the correct
			// answer, not an error.
			return list, nil
		}
		pool, err := s.fragRepo.ListWithEmbeddings(ctx, repos.FragranceFilter{
			Limit:      s.cfg.PoolLimit,
			ExcludeIDs: []uuid.UUID{seed.ID},
		})
		if err != nil {
			return nil, err
		}
		hits, err := s.similarity.TopK(ctx, query, pool, limit*s.cfg.CandidateMultiplier, s.cfg.MinSimilarity)
		if err != nil {
			return nil, err
		}
		return s.ranker.Rank(ctx, uuid.Nil, types.RecTypeSimilar, hits, nil, limit)
	})
}

func (s *recommendationService) SubmitFeedback(ctx context.Context, userID uuid.UUID, req FeedbackRequest) (*FeedbackAck, error) {
	return s.learning.Apply(ctx, userID, req)
}

// popularityHits substitutes the similarity stage when no query vector is
// available (cold start, degraded embedding service). Similarity is zero so
// the ranker's trending and novelty terms decide the order.
func popularityHits(pool []types.Fragrance, k int) []SimilarityHit {
	if k <= 0 || k > MaxTopK {
		k = MaxTopK
	}
	sorted := make([]types.Fragrance, len(pool))
	copy(sorted, pool)
	sort.Slice(sorted, func(i, j int) bool {
		pi, pj := priorityScore(&sorted[i]), priorityScore(&sorted[j])
		if pi != pj {
			return pi > pj
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	hits := make([]SimilarityHit, 0, len(sorted))
	for i := range sorted {
		hits = append(hits, SimilarityHit{Fragrance: sorted[i]})
	}
	return hits
}
