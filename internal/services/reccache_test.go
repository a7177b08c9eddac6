package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	errs "github.com/scentmatch/scentmatch-backend/internal/pkg/errors"
	"github.com/scentmatch/scentmatch-backend/internal/types"
)

func testCacheConfig() CacheConfig {
	cfg := DefaultCacheConfig()
	cfg.WaitPoll = 5 * time.Millisecond
	cfg.WaitMax = 2 * time.Second
	cfg.ComputeTimeout = 1 * time.Second
	return cfg
}

func rankedListFixture(recType string) *RankedList {
	return &RankedList{
		RecType:     recType,
		GeneratedAt: time.Now().UTC(),
		Entries: []RankedItem{
			{FragranceID: uuid.New(), Name: "fixture", Score: 0.9},
		},
	}
}

func TestGetOrComputeSingleComputation(t *testing.T) {
	kv := newMemKV()
	svc := NewRecCacheService(testCacheConfig(), kv, newMemLocker(), logger.NewNop())
	userID := uuid.New()
	key := CacheKey{Scope: userID, RecType: types.RecTypeSimilar, Limit: 10, PrefVersion: 1}

	var computed int32
	compute := func(ctx context.Context) (*RankedList, error) {
		atomic.AddInt32(&computed, 1)
		time.Sleep(20 * time.Millisecond) // hold the lock so peers must wait
		return rankedListFixture(types.RecTypeSimilar), nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]*RankedList, n)
	errsCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			list, err := svc.GetOrCompute(context.Background(), userID, key, compute)
			results[i] = list
			errsCh <- err
		}(i)
	}
	wg.Wait()
	close(errsCh)
	for err := range errsCh {
		if err != nil {
			t.Fatalf("GetOrCompute: %v", err)
		}
	}

	if got := atomic.LoadInt32(&computed); got != 1 {
		t.Fatalf("compute ran %d times for %d concurrent requests, want 1", got, n)
	}
	for i, list := range results {
		if list == nil || len(list.Entries) != 1 {
			t.Fatalf("request %d got list %+v", i, list)
		}
	}
}

func TestGetOrComputeSurvivesFirstCallerCancel(t *testing.T) {
	kv := newMemKV()
	svc := NewRecCacheService(testCacheConfig(), kv, newMemLocker(), logger.NewNop())
	userID := uuid.New()
	key := CacheKey{Scope: userID, RecType: types.RecTypeSimilar, Limit: 10, PrefVersion: 1}

	started := make(chan struct{})
	var computed int32
	compute := func(ctx context.Context) (*RankedList, error) {
		atomic.AddInt32(&computed, 1)
		close(started)
		time.Sleep(40 * time.Millisecond)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return rankedListFixture(types.RecTypeSimilar), nil
	}

	// The first caller starts the computation and then walks away.
	firstCtx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.GetOrCompute(firstCtx, userID, key, compute)
		firstDone <- err
	}()
	<-started
	cancel()

	// A collapsed waiter must still receive the result, not the first
	// caller's cancellation.
	list, err := svc.GetOrCompute(context.Background(), userID, key, compute)
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if list == nil || len(list.Entries) != 1 {
		t.Fatalf("collapsed waiter got %+v", list)
	}
	if err := <-firstDone; err != nil {
		t.Fatalf("first caller: %v", err)
	}
	if got := atomic.LoadInt32(&computed); got != 1 {
		t.Fatalf("compute ran %d times, want 1", got)
	}
}

func TestGetOrComputeFreshHitSkipsCompute(t *testing.T) {
	kv := newMemKV()
	svc := NewRecCacheService(testCacheConfig(), kv, newMemLocker(), logger.NewNop())
	userID := uuid.New()
	key := CacheKey{Scope: userID, RecType: types.RecTypeSimilar, Limit: 10, PrefVersion: 1}

	var computed int32
	compute := func(ctx context.Context) (*RankedList, error) {
		atomic.AddInt32(&computed, 1)
		return rankedListFixture(types.RecTypeSimilar), nil
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.GetOrCompute(context.Background(), userID, key, compute); err != nil {
			t.Fatalf("GetOrCompute #%d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&computed); got != 1 {
		t.Fatalf("compute ran %d times across repeated hits, want 1", got)
	}
}

func TestVersionBumpChangesKey(t *testing.T) {
	userID := uuid.New()
	before := CacheKey{Scope: userID, RecType: types.RecTypeSimilar, Limit: 10, PrefVersion: 1}
	after := before
	after.PrefVersion = 2
	if before.String() == after.String() {
		t.Fatal("preference version bump must produce a different cache key")
	}

	// And a fresh value under the old key is simply never consulted again.
	kv := newMemKV()
	svc := NewRecCacheService(testCacheConfig(), kv, newMemLocker(), logger.NewNop())
	var computed int32
	compute := func(ctx context.Context) (*RankedList, error) {
		atomic.AddInt32(&computed, 1)
		return rankedListFixture(types.RecTypeSimilar), nil
	}
	if _, err := svc.GetOrCompute(context.Background(), userID, before, compute); err != nil {
		t.Fatalf("GetOrCompute(before): %v", err)
	}
	if _, err := svc.GetOrCompute(context.Background(), userID, after, compute); err != nil {
		t.Fatalf("GetOrCompute(after): %v", err)
	}
	if got := atomic.LoadInt32(&computed); got != 2 {
		t.Fatalf("compute ran %d times across two versions, want 2", got)
	}
}

func TestGetOrComputeServesStaleOnFailure(t *testing.T) {
	kv := newMemKV()
	cfg := testCacheConfig()
	svc := NewRecCacheService(cfg, kv, newMemLocker(), logger.NewNop())
	userID := uuid.New()
	key := CacheKey{Scope: userID, RecType: types.RecTypeTrending, Limit: 10, PrefVersion: 3}

	// Seed an already-expired value inside the stale grace window.
	stale := cachedList{
		List:      *rankedListFixture(types.RecTypeTrending),
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}
	if err := kv.SetJSON(context.Background(), key.String(), stale, cfg.StaleGrace); err != nil {
		t.Fatalf("seed stale: %v", err)
	}

	list, err := svc.GetOrCompute(context.Background(), userID, key, func(ctx context.Context) (*RankedList, error) {
		return nil, fmt.Errorf("catalog store unavailable")
	})
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if !list.Stale {
		t.Fatal("fallback list must be marked stale")
	}
	if len(list.Entries) != 1 {
		t.Fatalf("stale fallback lost entries: %+v", list)
	}
}

func TestGetOrComputeFailsWithoutFallback(t *testing.T) {
	svc := NewRecCacheService(testCacheConfig(), newMemKV(), newMemLocker(), logger.NewNop())
	key := CacheKey{Scope: uuid.New(), RecType: types.RecTypeSimilar, Limit: 10, PrefVersion: 1}

	_, err := svc.GetOrCompute(context.Background(), key.Scope, key, func(ctx context.Context) (*RankedList, error) {
		return nil, fmt.Errorf("boom")
	})
	var cfErr *errs.ComputationFailedError
	if !errors.As(err, &cfErr) {
		t.Fatalf("got %v, want ComputationFailedError", err)
	}
}

func TestInvalidateUserDropsTrackedKeys(t *testing.T) {
	kv := newMemKV()
	svc := NewRecCacheService(testCacheConfig(), kv, newMemLocker(), logger.NewNop())
	userID := uuid.New()
	key := CacheKey{Scope: userID, RecType: types.RecTypeSimilar, Limit: 10, PrefVersion: 1}

	var computed int32
	compute := func(ctx context.Context) (*RankedList, error) {
		atomic.AddInt32(&computed, 1)
		return rankedListFixture(types.RecTypeSimilar), nil
	}
	if _, err := svc.GetOrCompute(context.Background(), userID, key, compute); err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if err := svc.InvalidateUser(context.Background(), userID); err != nil {
		t.Fatalf("InvalidateUser: %v", err)
	}
	if _, err := svc.GetOrCompute(context.Background(), userID, key, compute); err != nil {
		t.Fatalf("GetOrCompute after invalidate: %v", err)
	}
	if got := atomic.LoadInt32(&computed); got != 2 {
		t.Fatalf("compute ran %d times, want 2 after invalidation", got)
	}
}

func TestAwaitWinnerReturnsWinnersValue(t *testing.T) {
	kv := newMemKV()
	locker := newMemLocker()
	svc := NewRecCacheService(testCacheConfig(), kv, locker, logger.NewNop())
	userID := uuid.New()
	key := CacheKey{Scope: userID, RecType: types.RecTypeSimilar, Limit: 10, PrefVersion: 1}

	// Hold the distributed lock externally, as a peer process would, and
	// publish the value shortly after.
	lockKey := "rec:lock:" + key.String()
	token, ok, err := locker.Acquire(context.Background(), lockKey, time.Minute)
	if err != nil || !ok {
		t.Fatalf("external lock acquire: ok=%v err=%v", ok, err)
	}
	go func() {
		time.Sleep(30 * time.Millisecond)
		entry := cachedList{List: *rankedListFixture(types.RecTypeSimilar), ExpiresAt: time.Now().UTC().Add(time.Hour)}
		_ = kv.SetJSON(context.Background(), key.String(), entry, time.Hour)
		_ = locker.Release(context.Background(), lockKey, token)
	}()

	list, err := svc.GetOrCompute(context.Background(), userID, key, func(ctx context.Context) (*RankedList, error) {
		t.Error("loser must not compute while the lock is held elsewhere")
		return nil, fmt.Errorf("unexpected compute")
	})
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if list == nil || len(list.Entries) != 1 {
		t.Fatalf("got %+v, want the winner's list", list)
	}
	if list.Stale {
		t.Fatal("winner's fresh value must not be marked stale")
	}
}
