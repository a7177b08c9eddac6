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

type RecommendationEntryRepo interface {
	// UpsertActive writes a freshly ranked batch. An existing active row
	// for the same (user, fragrance, rec_type) is refreshed in place so the
	// uniqueness invariant holds under concurrent recomputes.
	UpsertActive(ctx context.Context, entries []types.RecommendationEntry) error
	// CountSurfaced returns how many times each fragrance has appeared in
	// any list served to the user, active or expired. Feeds the novelty
	// term.
	CountSurfaced(ctx context.Context, userID uuid.UUID, fragranceIDs []uuid.UUID) (map[uuid.UUID]int, error)
	SetInteraction(ctx context.Context, userID, fragranceID uuid.UUID, recType, state string) error
	SetFeedbackLabel(ctx context.Context, userID, fragranceID uuid.UUID, label string) error
	// MarkExpiredInactive flips rows past their expiry. Idempotent; safe
	// for overlapping sweeps since the predicate excludes already-flipped
	// rows.
	MarkExpiredInactive(ctx context.Context, now time.Time) (int64, error)
	// DeleteInactiveBefore garbage-collects rows that have been inactive
	// longer than the retention window.
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type recommendationEntryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecommendationEntryRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationEntryRepo {
	return &recommendationEntryRepo{
		db:  db,
		log: baseLog.With("repo", "RecommendationEntryRepo"),
	}
}

func (r *recommendationEntryRepo) UpsertActive(ctx context.Context, entries []types.RecommendationEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range entries {
		if entries[i].ID == uuid.Nil {
			entries[i].ID = uuid.New()
		}
		entries[i].IsActive = true
		entries[i].CreatedAt = now
		entries[i].UpdatedAt = now
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "fragrance_id"}, {Name: "rec_type"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: `"is_active" AND "deleted_at" IS NULL`},
			}},
			DoUpdates: clause.AssignmentColumns([]string{
				"score", "similarity_score", "novelty_score", "trending_score",
				"alignment_score", "reason", "generated_at", "expires_at", "updated_at",
			}),
		}).
		Create(&entries).Error
}

func (r *recommendationEntryRepo) CountSurfaced(ctx context.Context, userID uuid.UUID, fragranceIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(fragranceIDs))
	if userID == uuid.Nil || len(fragranceIDs) == 0 {
		return counts, nil
	}
	type row struct {
		FragranceID uuid.UUID
		N           int
	}
	var out []row
	err := r.db.WithContext(ctx).
		Model(&types.RecommendationEntry{}).
		Unscoped().
		Select("fragrance_id, COUNT(*) AS n").
		Where("user_id = ? AND fragrance_id IN ?", userID, fragranceIDs).
		Group("fragrance_id").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	for _, o := range out {
		counts[o.FragranceID] = o.N
	}
	return counts, nil
}

func (r *recommendationEntryRepo) SetInteraction(ctx context.Context, userID, fragranceID uuid.UUID, recType, state string) error {
	q := r.db.WithContext(ctx).
		Model(&types.RecommendationEntry{}).
		Where("user_id = ? AND fragrance_id = ? AND is_active", userID, fragranceID)
	if recType != "" {
		q = q.Where("rec_type = ?", recType)
	}
	return q.Updates(map[string]any{
		"interaction_state": state,
		"updated_at":        time.Now().UTC(),
	}).Error
}

func (r *recommendationEntryRepo) SetFeedbackLabel(ctx context.Context, userID, fragranceID uuid.UUID, label string) error {
	return r.db.WithContext(ctx).
		Model(&types.RecommendationEntry{}).
		Where("user_id = ? AND fragrance_id = ? AND is_active", userID, fragranceID).
		Updates(map[string]any{
			"feedback_label": label,
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *recommendationEntryRepo) MarkExpiredInactive(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&types.RecommendationEntry{}).
		Where("is_active AND expires_at < ?", now).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": now.UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *recommendationEntryRepo) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Unscoped().
		Where("NOT is_active AND updated_at < ?", cutoff).
		Delete(&types.RecommendationEntry{})
	return res.RowsAffected, res.Error
}
