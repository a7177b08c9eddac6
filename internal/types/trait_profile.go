package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TraitProfile is an immutable snapshot produced by one quiz completion.
// Retaking the quiz inserts a new row and moves the active flag; old rows
// are never mutated.
type TraitProfile struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User             *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Scores           datatypes.JSON `gorm:"type:jsonb;column:scores" json:"scores"`
	DominantTags     datatypes.JSON `gorm:"type:jsonb;column:dominant_tags" json:"dominant_tags"`
	Confidence       float64        `gorm:"column:confidence;not null" json:"confidence"`
	ColdStart        bool           `gorm:"column:cold_start;not null;default:false" json:"cold_start"`
	QuizVersion      string         `gorm:"column:quiz_version;not null" json:"quiz_version"`
	ProfileEmbedding datatypes.JSON `gorm:"type:jsonb;column:profile_embedding" json:"profile_embedding"`
	Active           bool           `gorm:"column:active;not null;default:true;index" json:"active"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (TraitProfile) TableName() string { return "trait_profile" }

func (p *TraitProfile) ScoreMap() (map[string]float64, error) {
	if len(p.Scores) == 0 {
		return map[string]float64{}, nil
	}
	var m map[string]float64
	if err := jsonUnmarshal(p.Scores, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *TraitProfile) Tags() ([]string, error) {
	if len(p.DominantTags) == 0 {
		return nil, nil
	}
	var tags []string
	if err := jsonUnmarshal(p.DominantTags, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (p *TraitProfile) EmbeddingVector() ([]float32, error) {
	return VectorFromJSON(p.ProfileEmbedding)
}
