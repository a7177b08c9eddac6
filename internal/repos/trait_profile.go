package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	"github.com/scentmatch/scentmatch-backend/internal/types"
)

type TraitProfileRepo interface {
	// Create inserts a new snapshot and moves the active flag off any
	// previous one in the same transaction. Old snapshots are kept.
	Create(ctx context.Context, profile *types.TraitProfile) error
	GetActive(ctx context.Context, userID uuid.UUID) (*types.TraitProfile, error)
	// SetProfileEmbedding backfills the derived embedding on a snapshot
	// after the embedding service returns. The snapshot's trait content
	// never changes; the embedding is a cached projection of it.
	SetProfileEmbedding(ctx context.Context, profileID uuid.UUID, embedding []float32) error
}

type traitProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTraitProfileRepo(db *gorm.DB, baseLog *logger.Logger) TraitProfileRepo {
	return &traitProfileRepo{
		db:  db,
		log: baseLog.With("repo", "TraitProfileRepo"),
	}
}

func (r *traitProfileRepo) Create(ctx context.Context, profile *types.TraitProfile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&types.TraitProfile{}).
			Where("user_id = ? AND active", profile.UserID).
			Update("active", false).Error; err != nil {
			return err
		}
		profile.Active = true
		return tx.Create(profile).Error
	})
}

func (r *traitProfileRepo) GetActive(ctx context.Context, userID uuid.UUID) (*types.TraitProfile, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	var row types.TraitProfile
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active", userID).
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

func (r *traitProfileRepo) SetProfileEmbedding(ctx context.Context, profileID uuid.UUID, embedding []float32) error {
	j, err := types.VectorToJSON(embedding)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&types.TraitProfile{}).
		Where("id = ?", profileID).
		Update("profile_embedding", j).Error
}
