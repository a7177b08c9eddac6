package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	errs "github.com/scentmatch/scentmatch-backend/internal/pkg/errors"
	"github.com/scentmatch/scentmatch-backend/internal/types"
)

// KVStore is the shared cache surface the engine needs from redis.
// Implemented by clients/redis.
type KVStore interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, key string, ttl time.Duration, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

type CacheConfig struct {
	// TTL per recommendation type; volatile surfaces expire sooner.
	TTL map[string]time.Duration
	// StaleGrace keeps expired values around as a last-known-good fallback.
	StaleGrace     time.Duration
	ComputeTimeout time.Duration
	LockTTL        time.Duration
	// Losers of the computation lock poll for the winner's value.
	WaitPoll time.Duration
	WaitMax  time.Duration
	// KeySetTTL bounds the per-user key bookkeeping set.
	KeySetTTL time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL: map[string]time.Duration{
			types.RecTypeSimilar:     1 * time.Hour,
			types.RecTypeAdventurous: 30 * time.Minute,
			types.RecTypeTrending:    10 * time.Minute,
			types.RecTypeSeasonal:    1 * time.Hour,
		},
		StaleGrace:     24 * time.Hour,
		ComputeTimeout: 10 * time.Second,
		LockTTL:        15 * time.Second,
		WaitPoll:       100 * time.Millisecond,
		WaitMax:        10 * time.Second,
		KeySetTTL:      48 * time.Hour,
	}
}

func (c CacheConfig) ttlFor(recType string) time.Duration {
	if ttl, ok := c.TTL[recType]; ok {
		return ttl
	}
	return 30 * time.Minute
}

// CacheKey identifies one computed list. PrefVersion is baked in, so a
// committed preference update makes every previously cached list for the
// user unreachable without any coordination.
type CacheKey struct {
	Scope       uuid.UUID // user id, or fragrance id for item-seeded lists
	RecType     string
	Limit       int
	PrefVersion int64
}

func (k CacheKey) String() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d", k.Scope, k.RecType, k.Limit, k.PrefVersion)))
	return "rec:v1:" + hex.EncodeToString(sum[:16])
}

type cachedList struct {
	List      RankedList `json:"list"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// RecCacheService guards every recommendation computation: at most one
// computation per key runs at a time across the deployment, concurrent
// readers wait for the in-flight result, and expired values are served as
// marked-stale fallbacks when recomputation fails or is slow.
type RecCacheService interface {
	GetOrCompute(ctx context.Context, userID uuid.UUID, key CacheKey, compute func(ctx context.Context) (*RankedList, error)) (*RankedList, error)
	InvalidateUser(ctx context.Context, userID uuid.UUID) error
}

type recCacheService struct {
	cfg    CacheConfig
	kv     KVStore
	locker LeaseLocker
	sf     singleflight.Group
	log    *logger.Logger
}

func NewRecCacheService(cfg CacheConfig, kv KVStore, locker LeaseLocker, baseLog *logger.Logger) RecCacheService {
	return &recCacheService{
		cfg:    cfg,
		kv:     kv,
		locker: locker,
		log:    baseLog.With("service", "RecCacheService"),
	}
}

func (s *recCacheService) GetOrCompute(ctx context.Context, userID uuid.UUID, key CacheKey, compute func(ctx context.Context) (*RankedList, error)) (*RankedList, error) {
	keyStr := key.String()

	if list, fresh, err := s.read(ctx, keyStr); err != nil {
		s.log.Warn("Cache read failed, recomputing", "key", keyStr, "error", err)
	} else if list != nil && fresh {
		return list, nil
	}

	// Singleflight collapses concurrent misses within this process; the
	// lease lock collapses them across processes. The shared computation is
	// detached from the first caller's context so its cancellation does not
	// fail every collapsed waiter; ComputeTimeout and WaitMax still bound it.
	v, err, _ := s.sf.Do(keyStr, func() (any, error) {
		return s.computeLocked(context.WithoutCancel(ctx), userID, key, keyStr, compute)
	})
	if err != nil {
		return nil, err
	}
	return v.(*RankedList), nil
}

func (s *recCacheService) computeLocked(ctx context.Context, userID uuid.UUID, key CacheKey, keyStr string, compute func(ctx context.Context) (*RankedList, error)) (*RankedList, error) {
	// A winner may have landed a value between our miss and here.
	if list, fresh, err := s.read(ctx, keyStr); err == nil && list != nil && fresh {
		return list, nil
	}

	lockKey := "rec:lock:" + keyStr
	token, ok, err := s.locker.Acquire(ctx, lockKey, s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.awaitWinner(ctx, keyStr)
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.log.Warn("Failed to release computation lock", "key", lockKey, "error", err)
		}
	}()

	computeCtx, cancel := context.WithTimeout(ctx, s.cfg.ComputeTimeout)
	defer cancel()
	list, err := compute(computeCtx)
	if err != nil {
		return s.fallbackStale(ctx, keyStr, err)
	}

	ttl := s.cfg.ttlFor(key.RecType)
	entry := cachedList{List: *list, ExpiresAt: time.Now().UTC().Add(ttl)}
	if err := s.kv.SetJSON(ctx, keyStr, entry, ttl+s.cfg.StaleGrace); err != nil {
		s.log.Warn("Failed to store computed list", "key", keyStr, "error", err)
	} else if userID != uuid.Nil {
		if err := s.kv.SAdd(ctx, userKeySet(userID), s.cfg.KeySetTTL, keyStr); err != nil {
			s.log.Warn("Failed to track cache key for user", "user_id", userID, "error", err)
		}
	}
	return list, nil
}

// awaitWinner polls for the value the current lock holder is computing.
// If the winner is too slow, the last-known-good value is served marked
// stale rather than blocking the caller indefinitely.
func (s *recCacheService) awaitWinner(ctx context.Context, keyStr string) (*RankedList, error) {
	deadline := time.Now().Add(s.cfg.WaitMax)
	for {
		list, fresh, err := s.read(ctx, keyStr)
		if err == nil && list != nil {
			if fresh {
				return list, nil
			}
			list.Stale = true
			return list, nil
		}
		if time.Now().After(deadline) {
			return s.fallbackStale(ctx, keyStr, fmt.Errorf("timed out waiting for in-flight computation"))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.WaitPoll):
		}
	}
}

func (s *recCacheService) fallbackStale(ctx context.Context, keyStr string, cause error) (*RankedList, error) {
	var entry cachedList
	found, err := s.kv.GetJSON(context.WithoutCancel(ctx), keyStr, &entry)
	if err == nil && found {
		s.log.Warn("Serving stale recommendations after failed recompute", "key", keyStr, "error", cause)
		list := entry.List
		list.Stale = true
		return &list, nil
	}
	return nil, &errs.ComputationFailedError{Key: keyStr, Err: cause}
}

func (s *recCacheService) read(ctx context.Context, keyStr string) (*RankedList, bool, error) {
	var entry cachedList
	found, err := s.kv.GetJSON(ctx, keyStr, &entry)
	if err != nil || !found {
		return nil, false, err
	}
	list := entry.List
	return &list, time.Now().Before(entry.ExpiresAt), nil
}

func (s *recCacheService) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	setKey := userKeySet(userID)
	keys, err := s.kv.SMembers(ctx, setKey)
	if err != nil {
		return err
	}
	return s.kv.Del(ctx, append(keys, setKey)...)
}

func userKeySet(userID uuid.UUID) string {
	return "rec:keys:" + userID.String()
}
