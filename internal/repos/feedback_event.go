package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	"github.com/scentmatch/scentmatch-backend/internal/types"
)

type FeedbackEventRepo interface {
	// Insert appends the event. Returns false when the event id was seen
	// before (duplicate delivery), in which case nothing was written.
	Insert(ctx context.Context, ev *types.FeedbackEvent) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]types.FeedbackEvent, error)
}

type feedbackEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFeedbackEventRepo(db *gorm.DB, baseLog *logger.Logger) FeedbackEventRepo {
	return &feedbackEventRepo{
		db:  db,
		log: baseLog.With("repo", "FeedbackEventRepo"),
	}
}

func (r *feedbackEventRepo) Insert(ctx context.Context, ev *types.FeedbackEvent) (bool, error) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *feedbackEventRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]types.FeedbackEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []types.FeedbackEvent
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
