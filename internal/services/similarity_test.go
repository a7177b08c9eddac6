package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	errs "github.com/scentmatch/scentmatch-backend/internal/pkg/errors"
	"github.com/scentmatch/scentmatch-backend/internal/types"
)

const testDim = 4

func testFragrance(t *testing.T, name string, emb []float32) types.Fragrance {
	t.Helper()
	f := types.Fragrance{
		ID:   uuid.New(),
		Name: name,
		Slug: name,
	}
	if emb != nil {
		j, err := types.VectorToJSON(emb)
		if err != nil {
			t.Fatalf("VectorToJSON: %v", err)
		}
		f.Embedding = j
	}
	return f
}

func TestTopKOrdering(t *testing.T) {
	svc := NewSimilarityService(testDim, logger.NewNop())
	query := []float32{1, 0, 0, 0}

	exact := testFragrance(t, "exact", []float32{2, 0, 0, 0})
	close_ := testFragrance(t, "close", []float32{1, 0.5, 0, 0})
	far := testFragrance(t, "far", []float32{0.2, 1, 1, 0})
	orthogonal := testFragrance(t, "orthogonal", []float32{0, 1, 0, 0})
	noEmbedding := testFragrance(t, "pending", nil)

	hits, err := svc.TopK(context.Background(), query, []types.Fragrance{far, orthogonal, noEmbedding, close_, exact}, 10, 0.1)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	got := make([]string, 0, len(hits))
	for _, h := range hits {
		got = append(got, h.Fragrance.Name)
	}
	want := []string{"exact", "close", "far"}
	if len(got) != len(want) {
		t.Fatalf("hits = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("hits = %v, want %v", got, want)
		}
	}
	if math.Abs(hits[0].Similarity-1.0) > 1e-9 {
		t.Fatalf("exact match similarity = %v, want 1.0", hits[0].Similarity)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Similarity > hits[i-1].Similarity {
			t.Fatalf("hits out of order at %d: %v > %v", i, hits[i].Similarity, hits[i-1].Similarity)
		}
	}
}

func TestTopKThresholdAndCap(t *testing.T) {
	svc := NewSimilarityService(testDim, logger.NewNop())
	query := []float32{1, 0, 0, 0}

	pool := []types.Fragrance{
		testFragrance(t, "a", []float32{1, 0, 0, 0}),
		testFragrance(t, "b", []float32{1, 0.1, 0, 0}),
		testFragrance(t, "c", []float32{0, 1, 0, 0}), // sim 0, below threshold
	}

	hits, err := svc.TopK(context.Background(), query, pool, 1, 0.5)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits with k=1, want 1", len(hits))
	}
	if hits[0].Fragrance.Name != "a" {
		t.Fatalf("top hit = %s, want a", hits[0].Fragrance.Name)
	}
}

func TestTopKPopularityTieBreak(t *testing.T) {
	svc := NewSimilarityService(testDim, logger.NewNop())
	query := []float32{1, 0, 0, 0}

	popular := testFragrance(t, "popular", []float32{1, 0, 0, 0})
	popular.RatingValue = 4.5
	popular.RatingCount = 1000
	obscure := testFragrance(t, "obscure", []float32{3, 0, 0, 0})
	obscure.RatingValue = 3.0
	obscure.RatingCount = 5

	hits, err := svc.TopK(context.Background(), query, []types.Fragrance{obscure, popular}, 10, 0)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	// Identical cosine, so catalog popularity decides.
	if hits[0].Fragrance.Name != "popular" {
		t.Fatalf("top hit = %s, want popular", hits[0].Fragrance.Name)
	}
}

func TestTopKDimensionMismatch(t *testing.T) {
	svc := NewSimilarityService(testDim, logger.NewNop())
	pool := []types.Fragrance{testFragrance(t, "a", []float32{1, 0, 0, 0})}

	_, err := svc.TopK(context.Background(), []float32{1, 0}, pool, 10, 0)
	var dimErr *errs.DimensionMismatchError
	if !errors.As(err, &dimErr) {
		t.Fatalf("query dim mismatch: got %v, want DimensionMismatchError", err)
	}
	if dimErr.Want != testDim || dimErr.Got != 2 {
		t.Fatalf("dim error = want %d got %d", dimErr.Want, dimErr.Got)
	}

	badPool := []types.Fragrance{testFragrance(t, "b", []float32{1, 0})}
	_, err = svc.TopK(context.Background(), []float32{1, 0, 0, 0}, badPool, 10, 0)
	if !errors.As(err, &dimErr) {
		t.Fatalf("candidate dim mismatch: got %v, want DimensionMismatchError", err)
	}
}

func TestTopKEmptyPool(t *testing.T) {
	svc := NewSimilarityService(testDim, logger.NewNop())
	hits, err := svc.TopK(context.Background(), []float32{1, 0, 0, 0}, nil, 10, 0)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("got %d hits from empty pool", len(hits))
	}
}

func TestPriorityScoreBoosts(t *testing.T) {
	base := types.Fragrance{RatingValue: 4.0, RatingCount: 100}
	plain := priorityScore(&base)
	if plain <= 0 {
		t.Fatalf("priorityScore = %v, want positive", plain)
	}

	boosted := base
	boosted.IsBestseller = true
	if got := priorityScore(&boosted); math.Abs(got-plain*1.3) > 1e-9 {
		t.Fatalf("bestseller score = %v, want %v", got, plain*1.3)
	}

	unrated := types.Fragrance{RatingValue: 0, RatingCount: 0}
	if got := priorityScore(&unrated); got != 0 {
		t.Fatalf("unrated score = %v, want 0", got)
	}
}
