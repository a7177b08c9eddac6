package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	"github.com/scentmatch/scentmatch-backend/internal/types"
)

// FragranceFilter bounds the candidate pool before similarity runs so the
// hot path never scores the whole catalog when the surface is narrower.
type FragranceFilter struct {
	Gender        string
	Family        string
	Concentration string
	SampleOnly    bool
	ExcludeIDs    []uuid.UUID
	Limit         int
}

type FragranceRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*types.Fragrance, error)
	// ListWithEmbeddings returns candidates that already have a generated
	// embedding, with Brand preloaded for diversity constraints.
	ListWithEmbeddings(ctx context.Context, filter FragranceFilter) ([]types.Fragrance, error)
}

type fragranceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFragranceRepo(db *gorm.DB, baseLog *logger.Logger) FragranceRepo {
	return &fragranceRepo{
		db:  db,
		log: baseLog.With("repo", "FragranceRepo"),
	}
}

func (r *fragranceRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.Fragrance, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Fragrance
	err := r.db.WithContext(ctx).
		Preload("Brand").
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *fragranceRepo) ListWithEmbeddings(ctx context.Context, filter FragranceFilter) ([]types.Fragrance, error) {
	q := r.db.WithContext(ctx).
		Preload("Brand").
		Where("embedding IS NOT NULL")
	if filter.Gender != "" {
		q = q.Where("gender = ?", filter.Gender)
	}
	if filter.Family != "" {
		q = q.Where("family = ?", filter.Family)
	}
	if filter.Concentration != "" {
		q = q.Where("concentration = ?", filter.Concentration)
	}
	if filter.SampleOnly {
		q = q.Where("sample_available = ?", true)
	}
	if len(filter.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN ?", filter.ExcludeIDs)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []types.Fragrance
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
