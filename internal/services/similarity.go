package services

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	errs "github.com/scentmatch/scentmatch-backend/internal/pkg/errors"
	"github.com/scentmatch/scentmatch-backend/internal/types"
)

// MaxTopK bounds K for any similarity query regardless of what the caller
// asks for.
const MaxTopK = 50

type SimilarityHit struct {
	Fragrance  types.Fragrance
	Similarity float64
}

// SimilarityService ranks a candidate pool against a query vector by cosine
// similarity. It is the hot path for every recommendation request, so the
// caller is expected to pre-filter the pool via FragranceFilter rather than
// hand over the entire catalog.
type SimilarityService interface {
	TopK(ctx context.Context, query []float32, pool []types.Fragrance, k int, minSim float64) ([]SimilarityHit, error)
}

type similarityService struct {
	dim int
	log *logger.Logger
}

// NewSimilarityService pins the catalog embedding dimensionality. Any query
// or candidate vector that disagrees indicates a stale embedding model
// version and fails loudly instead of producing garbage scores.
func NewSimilarityService(dim int, baseLog *logger.Logger) SimilarityService {
	return &similarityService{
		dim: dim,
		log: baseLog.With("service", "SimilarityService"),
	}
}

func (s *similarityService) TopK(ctx context.Context, query []float32, pool []types.Fragrance, k int, minSim float64) ([]SimilarityHit, error) {
	if len(query) != s.dim {
		return nil, &errs.DimensionMismatchError{Want: s.dim, Got: len(query)}
	}
	if len(pool) == 0 {
		return nil, nil
	}
	if k <= 0 || k > MaxTopK {
		k = MaxTopK
	}

	hits := make([]SimilarityHit, 0, len(pool))
	for i := range pool {
		emb, err := pool[i].EmbeddingVector()
		if err != nil {
			return nil, err
		}
		if emb == nil {
			continue
		}
		if len(emb) != s.dim {
			return nil, &errs.DimensionMismatchError{Want: s.dim, Got: len(emb)}
		}
		sim := cosine(query, emb)
		if sim < minSim {
			continue
		}
		hits = append(hits, SimilarityHit{Fragrance: pool[i], Similarity: sim})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		pi, pj := priorityScore(&hits[i].Fragrance), priorityScore(&hits[j].Fragrance)
		if pi != pj {
			return pi > pj
		}
		return hits[i].Fragrance.ID.String() < hits[j].Fragrance.ID.String()
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// priorityScore is the catalog popularity signal: rating quality weighted by
// review volume, with the import pipeline's bestseller and recency boosts.
func priorityScore(f *types.Fragrance) float64 {
	if f.RatingCount <= 0 || f.RatingValue <= 0 {
		return 0
	}
	score := f.RatingValue * math.Log(float64(f.RatingCount)+1)
	if f.IsBestseller {
		score *= 1.3
	}
	if f.LaunchYear > 0 && f.LaunchYear >= time.Now().Year()-2 {
		score *= 1.15
	}
	return score
}
