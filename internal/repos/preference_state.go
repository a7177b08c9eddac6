package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	"github.com/scentmatch/scentmatch-backend/internal/types"
)

type PreferenceStateRepo interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*types.PreferenceState, error)
	// Save upserts the single active row per user. Callers hold the
	// per-user update lease, so last-write-wins here is safe.
	Save(ctx context.Context, state *types.PreferenceState) error
}

type preferenceStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPreferenceStateRepo(db *gorm.DB, baseLog *logger.Logger) PreferenceStateRepo {
	return &preferenceStateRepo{
		db:  db,
		log: baseLog.With("repo", "PreferenceStateRepo"),
	}
}

func (r *preferenceStateRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*types.PreferenceState, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	var row types.PreferenceState
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
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

func (r *preferenceStateRepo) Save(ctx context.Context, state *types.PreferenceState) error {
	now := time.Now().UTC()
	if state.ID == uuid.Nil {
		state.ID = uuid.New()
		state.CreatedAt = now
	}
	state.UpdatedAt = now
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"preference_embedding", "anti_embedding", "explore_embedding",
				"trait_adjustments", "sample_size", "version",
				"last_computed_at", "updated_at",
			}),
		}).
		Create(state).Error
}
