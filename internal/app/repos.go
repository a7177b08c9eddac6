package app

import (
	"gorm.io/gorm"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	"github.com/scentmatch/scentmatch-backend/internal/repos"
)

type Repos struct {
	Fragrance           repos.FragranceRepo
	TraitProfile        repos.TraitProfileRepo
	PreferenceState     repos.PreferenceStateRepo
	FeedbackEvent       repos.FeedbackEventRepo
	RecommendationEntry repos.RecommendationEntryRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Fragrance:           repos.NewFragranceRepo(db, log),
		TraitProfile:        repos.NewTraitProfileRepo(db, log),
		PreferenceState:     repos.NewPreferenceStateRepo(db, log),
		FeedbackEvent:       repos.NewFeedbackEventRepo(db, log),
		RecommendationEntry: repos.NewRecommendationEntryRepo(db, log),
	}
}
