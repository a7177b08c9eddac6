package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Recommendation types served by the engine. Weights and cache TTLs vary
// per type.
const (
	RecTypeSimilar     = "similar"
	RecTypeAdventurous = "adventurous"
	RecTypeTrending    = "trending"
	RecTypeSeasonal    = "seasonal"
)

// Interaction states, in escalation order.
const (
	InteractionNone      = ""
	InteractionViewed    = "viewed"
	InteractionClicked   = "clicked"
	InteractionDismissed = "dismissed"
	InteractionPurchased = "purchased"
)

// RecommendationEntry is one scored item in a served list. At most one
// active row may exist per (user, fragrance, rec_type); the partial unique
// index enforcing that is created in db.AutoMigrateAll. Expiry marks rows
// inactive, garbage collection removes them later.
type RecommendationEntry struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_rec_entry_user_type,priority:1" json:"user_id"`
	User             *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	FragranceID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"fragrance_id"`
	Fragrance        *Fragrance     `gorm:"constraint:OnDelete:CASCADE;foreignKey:FragranceID;references:ID" json:"fragrance,omitempty"`
	RecType          string         `gorm:"column:rec_type;not null;index:idx_rec_entry_user_type,priority:2" json:"rec_type"`
	Score            float64        `gorm:"column:score;not null" json:"score"`
	SimilarityScore  float64        `gorm:"column:similarity_score;not null" json:"similarity_score"`
	NoveltyScore     float64        `gorm:"column:novelty_score;not null" json:"novelty_score"`
	TrendingScore    float64        `gorm:"column:trending_score;not null" json:"trending_score"`
	AlignmentScore   float64        `gorm:"column:alignment_score;not null" json:"alignment_score"`
	Reason           string         `gorm:"column:reason" json:"reason"`
	InteractionState string         `gorm:"column:interaction_state;default:''" json:"interaction_state"`
	FeedbackLabel    string         `gorm:"column:feedback_label;default:''" json:"feedback_label"`
	IsActive         bool           `gorm:"column:is_active;not null;default:true;index" json:"is_active"`
	GeneratedAt      time.Time      `gorm:"column:generated_at;not null" json:"generated_at"`
	ExpiresAt        time.Time      `gorm:"column:expires_at;not null;index" json:"expires_at"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (RecommendationEntry) TableName() string { return "recommendation_entry" }
