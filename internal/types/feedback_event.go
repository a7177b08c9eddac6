package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Signal taxonomy for FeedbackEvent rows.
const (
	SignalExplicit = "explicit"
	SignalImplicit = "implicit"

	ExplicitLike     = "like"
	ExplicitDislike  = "dislike"
	ExplicitRating   = "rating"
	ExplicitPurchase = "sample_purchase"

	ImplicitView    = "view"
	ImplicitClick   = "click"
	ImplicitDismiss = "dismiss"
)

// FeedbackEvent is append-only: rows are inserted once and never updated.
// EventID is supplied by the client so retried submissions dedupe on the
// unique index instead of double-counting.
type FeedbackEvent struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EventID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"event_id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User           *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	FragranceID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"fragrance_id"`
	SignalType     string         `gorm:"column:signal_type;not null" json:"signal_type"`
	Action         string         `gorm:"column:action;not null" json:"action"`
	Value          float64        `gorm:"column:value" json:"value"`
	DurationMillis int64          `gorm:"column:duration_millis" json:"duration_millis"`
	Context        datatypes.JSON `gorm:"type:jsonb;column:context" json:"context"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (FeedbackEvent) TableName() string { return "feedback_event" }
