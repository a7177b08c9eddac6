package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PreferenceState is the per-user online-learning accumulator. One active
// row per user, mutated in place by the learning loop under the per-user
// lease lock and never deleted. Version increments on every committed
// update; recommendation cache keys embed it, so a bump makes every cached
// list for the user unreachable.
type PreferenceState struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID              uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	User                *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	PreferenceEmbedding datatypes.JSON `gorm:"type:jsonb;column:preference_embedding" json:"preference_embedding"`
	AntiEmbedding       datatypes.JSON `gorm:"type:jsonb;column:anti_embedding" json:"anti_embedding"`
	ExploreEmbedding    datatypes.JSON `gorm:"type:jsonb;column:explore_embedding" json:"explore_embedding"`
	TraitAdjustments    datatypes.JSON `gorm:"type:jsonb;column:trait_adjustments" json:"trait_adjustments"`
	SampleSize          int            `gorm:"column:sample_size;not null;default:0" json:"sample_size"`
	Version             int64          `gorm:"column:version;not null;default:0" json:"version"`
	LastComputedAt      time.Time      `gorm:"column:last_computed_at;not null;default:now()" json:"last_computed_at"`
	CreatedAt           time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (PreferenceState) TableName() string { return "preference_state" }

func (s *PreferenceState) PreferenceVector() ([]float32, error) {
	return VectorFromJSON(s.PreferenceEmbedding)
}

func (s *PreferenceState) AntiVector() ([]float32, error) {
	return VectorFromJSON(s.AntiEmbedding)
}

func (s *PreferenceState) ExploreVector() ([]float32, error) {
	return VectorFromJSON(s.ExploreEmbedding)
}

func (s *PreferenceState) SetVectors(pref, anti, explore []float32) error {
	var err error
	if s.PreferenceEmbedding, err = VectorToJSON(pref); err != nil {
		return err
	}
	if s.AntiEmbedding, err = VectorToJSON(anti); err != nil {
		return err
	}
	if s.ExploreEmbedding, err = VectorToJSON(explore); err != nil {
		return err
	}
	return nil
}

func (s *PreferenceState) TraitAdjustmentMap() (map[string]float64, error) {
	if len(s.TraitAdjustments) == 0 {
		return map[string]float64{}, nil
	}
	var m map[string]float64
	if err := jsonUnmarshal(s.TraitAdjustments, &m); err != nil {
		return nil, err
	}
	return m, nil
}
