package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	errs "github.com/scentmatch/scentmatch-backend/internal/pkg/errors"
	"github.com/scentmatch/scentmatch-backend/internal/repos"
	"github.com/scentmatch/scentmatch-backend/internal/types"
)

// FeedbackSignal is the tagged variant for the two feedback shapes. The
// learning loop switches over it exhaustively; an unknown shape is a
// programming error, not a soft default.
type FeedbackSignal interface {
	isSignal()
}

type ExplicitSignal struct {
	Action string  // like | dislike | rating | sample_purchase
	Value  float64 // rating value in [0,5] when Action == rating
}

func (ExplicitSignal) isSignal() {}

type ImplicitSignal struct {
	Kind           string // view | click | dismiss
	DurationMillis int64  // for view
}

func (ImplicitSignal) isSignal() {}

type FeedbackRequest struct {
	EventID     uuid.UUID
	FragranceID uuid.UUID
	Signal      FeedbackSignal
	// Context records which surface produced the impression.
	Context map[string]any
}

const (
	AckAccepted  = "accepted"
	AckDuplicate = "duplicate"
	AckDropped   = "dropped"
)

type FeedbackAck struct {
	Status string `json:"status"`
}

type LearningConfig struct {
	LearningRate float64
	// ViewSaturationMillis is where view-duration confidence tops out; a
	// 25s view moves the needle, a 3s glance barely does.
	ViewSaturationMillis int64
	// DriftThreshold is the cosine between old and new preference
	// embeddings under which a drift flag is logged. Informational only.
	DriftThreshold float64
	LockTTL        time.Duration
	LockWait       time.Duration
}

func DefaultLearningConfig() LearningConfig {
	return LearningConfig{
		LearningRate:         0.15,
		ViewSaturationMillis: 25000,
		DriftThreshold:       0.85,
		LockTTL:              10 * time.Second,
		LockWait:             5 * time.Second,
	}
}

// LeaseLocker is the mutual-exclusion primitive shared state updates run
// under. Implemented by clients/redis.
type LeaseLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	AcquireWait(ctx context.Context, key string, ttl, maxWait time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// CacheInvalidator lets the learning loop drop a user's cached lists after
// a committed update without importing the cache service directly.
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}

// LearningService ingests feedback events and incrementally updates the
// user's PreferenceState. Updates for one user are serialized behind a
// per-user lease lock; concurrent events block in arrival order rather
// than getting dropped or applied out of order.
type LearningService interface {
	Apply(ctx context.Context, userID uuid.UUID, req FeedbackRequest) (*FeedbackAck, error)
}

type learningService struct {
	cfg         LearningConfig
	fragRepo    repos.FragranceRepo
	prefRepo    repos.PreferenceStateRepo
	fbRepo      repos.FeedbackEventRepo
	recRepo     repos.RecommendationEntryRepo
	locker      LeaseLocker
	invalidator CacheInvalidator
	log         *logger.Logger
}

func NewLearningService(
	cfg LearningConfig,
	fragRepo repos.FragranceRepo,
	prefRepo repos.PreferenceStateRepo,
	fbRepo repos.FeedbackEventRepo,
	recRepo repos.RecommendationEntryRepo,
	locker LeaseLocker,
	invalidator CacheInvalidator,
	baseLog *logger.Logger,
) LearningService {
	return &learningService{
		cfg:         cfg,
		fragRepo:    fragRepo,
		prefRepo:    prefRepo,
		fbRepo:      fbRepo,
		recRepo:     recRepo,
		locker:      locker,
		invalidator: invalidator,
		log:         baseLog.With("service", "LearningService"),
	}
}

// signalEffect is the normalized learning step derived from a signal.
type signalEffect struct {
	signalType  string
	action      string
	value       float64
	duration    int64
	positive    bool
	weight      float64 // confidence-scaled step fraction in (0,1]
	interaction string  // recommendation entry interaction state, if any
	label       string  // recommendation entry feedback label, if any
}

func (s *learningService) effectFor(sig FeedbackSignal) (*signalEffect, error) {
	switch v := sig.(type) {
	case ExplicitSignal:
		switch v.Action {
		case types.ExplicitLike:
			return &signalEffect{signalType: types.SignalExplicit, action: v.Action, positive: true, weight: 1.0, label: types.ExplicitLike}, nil
		case types.ExplicitDislike:
			return &signalEffect{signalType: types.SignalExplicit, action: v.Action, positive: false, weight: 1.0, label: types.ExplicitDislike}, nil
		case types.ExplicitRating:
			if v.Value < 0 || v.Value > 5 {
				return nil, fmt.Errorf("rating %.1f out of range: %w", v.Value, errs.ErrInvalidArgument)
			}
			// Center on 2.5: above pulls the preference embedding, below
			// pushes the anti-preference embedding.
			norm := (v.Value - 2.5) / 2.5
			eff := &signalEffect{signalType: types.SignalExplicit, action: v.Action, value: v.Value}
			if norm >= 0 {
				eff.positive, eff.weight = true, norm
			} else {
				eff.positive, eff.weight = false, -norm
			}
			return eff, nil
		case types.ExplicitPurchase:
			return &signalEffect{signalType: types.SignalExplicit, action: v.Action, positive: true, weight: 1.0, interaction: types.InteractionPurchased}, nil
		default:
			return nil, fmt.Errorf("unknown explicit action %q: %w", v.Action, errs.ErrInvalidArgument)
		}
	case ImplicitSignal:
		switch v.Kind {
		case types.ImplicitView:
			frac := float64(v.DurationMillis) / float64(s.cfg.ViewSaturationMillis)
			return &signalEffect{
				signalType:  types.SignalImplicit,
				action:      v.Kind,
				duration:    v.DurationMillis,
				positive:    true,
				weight:      0.3 * clamp01(frac),
				interaction: types.InteractionViewed,
			}, nil
		case types.ImplicitClick:
			return &signalEffect{signalType: types.SignalImplicit, action: v.Kind, positive: true, weight: 0.2, interaction: types.InteractionClicked}, nil
		case types.ImplicitDismiss:
			return &signalEffect{signalType: types.SignalImplicit, action: v.Kind, positive: false, weight: 0.3, interaction: types.InteractionDismissed}, nil
		default:
			return nil, fmt.Errorf("unknown implicit kind %q: %w", v.Kind, errs.ErrInvalidArgument)
		}
	default:
		return nil, fmt.Errorf("unknown signal shape %T: %w", sig, errs.ErrInvalidArgument)
	}
}

func (s *learningService) Apply(ctx context.Context, userID uuid.UUID, req FeedbackRequest) (*FeedbackAck, error) {
	if userID == uuid.Nil || req.EventID == uuid.Nil || req.FragranceID == uuid.Nil {
		return nil, fmt.Errorf("feedback requires user, event and fragrance ids: %w", errs.ErrInvalidArgument)
	}
	eff, err := s.effectFor(req.Signal)
	if err != nil {
		return nil, err
	}

	frag, err := s.fragRepo.GetByID(ctx, req.FragranceID)
	if err != nil {
		return nil, err
	}
	if frag == nil {
		// Unknown item: log and discard, never fail the caller.
		s.log.Warn("Feedback references unknown fragrance, dropping event",
			"user_id", userID, "fragrance_id", req.FragranceID, "event_id", req.EventID)
		return &FeedbackAck{Status: AckDropped}, nil
	}
	emb, err := frag.EmbeddingVector()
	if err != nil {
		return nil, err
	}
	if emb == nil {
		s.log.Warn("Feedback references fragrance without embedding, dropping event",
			"user_id", userID, "fragrance_id", req.FragranceID)
		return &FeedbackAck{Status: AckDropped}, nil
	}

	lockKey := fmt.Sprintf("pref:lock:%s", userID)
	token, ok, err := s.locker.AcquireWait(ctx, lockKey, s.cfg.LockTTL, s.cfg.LockWait)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("preference update for user %s is busy, retry", userID)
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.log.Warn("Failed to release preference lock", "key", lockKey, "error", err)
		}
	}()

	event := &types.FeedbackEvent{
		EventID:        req.EventID,
		UserID:         userID,
		FragranceID:    req.FragranceID,
		SignalType:     eff.signalType,
		Action:         eff.action,
		Value:          eff.value,
		DurationMillis: eff.duration,
		CreatedAt:      time.Now().UTC(),
	}
	if req.Context != nil {
		if b, err := json.Marshal(req.Context); err == nil {
			event.Context = datatypes.JSON(b)
		}
	}
	inserted, err := s.fbRepo.Insert(ctx, event)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return &FeedbackAck{Status: AckDuplicate}, nil
	}

	state, err := s.prefRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &types.PreferenceState{UserID: userID}
	}
	if err := s.applyStep(state, frag, emb, eff); err != nil {
		return nil, err
	}
	if err := s.prefRepo.Save(ctx, state); err != nil {
		return nil, err
	}

	if eff.interaction != "" {
		if err := s.recRepo.SetInteraction(ctx, userID, req.FragranceID, "", eff.interaction); err != nil {
			s.log.Warn("Failed to record interaction state", "error", err)
		}
	}
	if eff.label != "" {
		if err := s.recRepo.SetFeedbackLabel(ctx, userID, req.FragranceID, eff.label); err != nil {
			s.log.Warn("Failed to record feedback label", "error", err)
		}
	}

	// Version already moved, so stale keys are unreachable either way; the
	// explicit drop just frees them early.
	if err := s.invalidator.InvalidateUser(ctx, userID); err != nil {
		s.log.Warn("Cache invalidation failed after preference update", "user_id", userID, "error", err)
	}
	return &FeedbackAck{Status: AckAccepted}, nil
}

func (s *learningService) applyStep(state *types.PreferenceState, frag *types.Fragrance, emb []float32, eff *signalEffect) error {
	pref, err := state.PreferenceVector()
	if err != nil {
		return err
	}
	anti, err := state.AntiVector()
	if err != nil {
		return err
	}
	explore, err := state.ExploreVector()
	if err != nil {
		return err
	}
	oldPref := pref

	step := s.cfg.LearningRate * eff.weight
	if eff.positive {
		pref = stepToward(pref, emb, step)
	} else {
		anti = stepToward(anti, emb, step)
	}
	// The exploration embedding tracks everything the user has engaged
	// with, signed or not; the adventurous surface samples away from it.
	explore = stepToward(explore, emb, s.cfg.LearningRate*0.25*eff.weight)

	if err := state.SetVectors(pref, anti, explore); err != nil {
		return err
	}

	adjustments, err := state.TraitAdjustmentMap()
	if err != nil {
		return err
	}
	if frag.Family != "" {
		delta := 0.05 * eff.weight
		if !eff.positive {
			delta = -delta
		}
		adj := adjustments[frag.Family] + delta
		if adj > 1 {
			adj = 1
		}
		if adj < -1 {
			adj = -1
		}
		adjustments[frag.Family] = adj
	}
	if b, err := json.Marshal(adjustments); err == nil {
		state.TraitAdjustments = datatypes.JSON(b)
	}

	state.SampleSize++
	state.Version++
	state.LastComputedAt = time.Now().UTC()

	if eff.positive && len(oldPref) > 0 && !isZeroVector(oldPref) {
		if shift := cosine(oldPref, pref); shift < s.cfg.DriftThreshold {
			// Drift is informational; the update commits regardless.
			s.log.Warn("preference_drift_detected",
				"user_id", state.UserID, "cosine_to_previous", shift, "sample_size", state.SampleSize)
		}
	}
	return nil
}
