package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/scentmatch/scentmatch-backend/internal/clients/openai"
	"github.com/scentmatch/scentmatch-backend/internal/logger"
	errs "github.com/scentmatch/scentmatch-backend/internal/pkg/errors"
	"github.com/scentmatch/scentmatch-backend/internal/repos"
	"github.com/scentmatch/scentmatch-backend/internal/types"
)

// EmbeddingService projects a trait profile into the catalog embedding
// space. The projection is cached on the profile snapshot, so the external
// embedding service is hit once per quiz completion, not per request.
type EmbeddingService interface {
	ProfileVector(ctx context.Context, profile *types.TraitProfile) ([]float32, error)
}

type embeddingService struct {
	client      openai.Client
	profileRepo repos.TraitProfileRepo
	dim         int
	timeout     time.Duration
	log         *logger.Logger
}

func NewEmbeddingService(client openai.Client, profileRepo repos.TraitProfileRepo, dim int, timeout time.Duration, baseLog *logger.Logger) EmbeddingService {
	return &embeddingService{
		client:      client,
		profileRepo: profileRepo,
		dim:         dim,
		timeout:     timeout,
		log:         baseLog.With("service", "EmbeddingService"),
	}
}

func (s *embeddingService) ProfileVector(ctx context.Context, profile *types.TraitProfile) ([]float32, error) {
	if profile == nil {
		return nil, fmt.Errorf("nil profile: %w", errs.ErrInvalidArgument)
	}
	if cached, err := profile.EmbeddingVector(); err == nil && len(cached) > 0 {
		return cached, nil
	}

	text, err := profileText(profile)
	if err != nil {
		return nil, err
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	vectors, err := s.client.Embed(embedCtx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding service returned %d vectors for one input", len(vectors))
	}
	vec := vectors[0]
	if len(vec) != s.dim {
		return nil, &errs.DimensionMismatchError{Want: s.dim, Got: len(vec)}
	}

	if err := s.profileRepo.SetProfileEmbedding(ctx, profile.ID, vec); err != nil {
		s.log.Warn("Failed to cache profile embedding", "profile_id", profile.ID, "error", err)
	}
	return vec, nil
}

// profileText renders the trait snapshot as the attribute text sent to the
// embedding collaborator. Dimensions are ordered score-descending so equal
// profiles always produce the same text.
func profileText(profile *types.TraitProfile) (string, error) {
	scores, err := profile.ScoreMap()
	if err != nil {
		return "", err
	}
	tags, err := profile.Tags()
	if err != nil {
		return "", err
	}

	type dimScore struct {
		dim   string
		score float64
	}
	dims := make([]dimScore, 0, len(scores))
	for d, v := range scores {
		dims = append(dims, dimScore{dim: d, score: v})
	}
	sort.Slice(dims, func(i, j int) bool {
		if dims[i].score != dims[j].score {
			return dims[i].score > dims[j].score
		}
		return dims[i].dim < dims[j].dim
	})
	if len(dims) > 8 {
		dims = dims[:8]
	}

	var b strings.Builder
	b.WriteString("Fragrance taste profile. ")
	if len(tags) > 0 {
		b.WriteString("Dominant traits: ")
		b.WriteString(strings.Join(tags, ", "))
		b.WriteString(". ")
	}
	b.WriteString("Trait affinities:")
	for _, d := range dims {
		fmt.Fprintf(&b, " %s (%.2f)", strings.ReplaceAll(d.dim, "_", " "), d.score)
	}
	return b.String(), nil
}
