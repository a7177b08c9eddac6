package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Brand struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name         string         `gorm:"uniqueIndex;not null" json:"name"`
	Slug         string         `gorm:"uniqueIndex;not null" json:"slug"`
	PrestigeTier string         `gorm:"column:prestige_tier" json:"prestige_tier"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Brand) TableName() string { return "brand" }

// Fragrance mirrors the catalog import schema. Rows are written by the data
// pipeline and read-only from the engine's perspective.
type Fragrance struct {
	ID                   uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BrandID              uuid.UUID      `gorm:"type:uuid;not null;index" json:"brand_id"`
	Brand                *Brand         `gorm:"constraint:OnDelete:CASCADE;foreignKey:BrandID;references:ID" json:"brand,omitempty"`
	Name                 string         `gorm:"not null" json:"name"`
	Slug                 string         `gorm:"uniqueIndex;not null" json:"slug"`
	Gender               string         `gorm:"index" json:"gender"`
	Family               string         `gorm:"index" json:"family"`
	Concentration        string         `gorm:"index" json:"concentration"`
	MainAccords          datatypes.JSON `gorm:"type:jsonb;column:main_accords" json:"main_accords"`
	Notes                datatypes.JSON `gorm:"type:jsonb;column:notes" json:"notes"`
	Embedding            datatypes.JSON `gorm:"type:jsonb;column:embedding" json:"embedding"`
	EmbeddingGeneratedAt *time.Time     `gorm:"column:embedding_generated_at" json:"embedding_generated_at,omitempty"`
	RatingValue          float64        `gorm:"column:rating_value" json:"rating_value"`
	RatingCount          int            `gorm:"column:rating_count" json:"rating_count"`
	PriceBand            string         `gorm:"column:price_band" json:"price_band"`
	LaunchYear           int            `gorm:"column:launch_year" json:"launch_year"`
	IsBestseller         bool           `gorm:"column:is_bestseller;default:false" json:"is_bestseller"`
	SampleAvailable      bool           `gorm:"column:sample_available;default:false" json:"sample_available"`
	IsVerified           bool           `gorm:"column:is_verified;default:false" json:"is_verified"`
	DataSource           string         `gorm:"column:data_source" json:"data_source"`
	CreatedAt            time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Fragrance) TableName() string { return "fragrance" }

// EmbeddingVector decodes the stored jsonb embedding. Returns nil when the
// pipeline has not generated one yet.
func (f *Fragrance) EmbeddingVector() ([]float32, error) {
	return VectorFromJSON(f.Embedding)
}
