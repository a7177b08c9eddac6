package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scentmatch/scentmatch-backend/internal/repos"
	"github.com/scentmatch/scentmatch-backend/internal/types"
)

// In-memory stand-ins for the repo, cache and lock collaborators so the
// service tests exercise real logic without postgres or redis.

type fakeRecEntryRepo struct {
	mu           sync.Mutex
	surfaced     map[uuid.UUID]int
	upserted     [][]types.RecommendationEntry
	interactions []string
	labels       []string
	markedAt     []time.Time
	deletedAt    []time.Time
	markReturn   int64
	deleteReturn int64
}

func newFakeRecEntryRepo() *fakeRecEntryRepo {
	return &fakeRecEntryRepo{surfaced: map[uuid.UUID]int{}}
}

func (f *fakeRecEntryRepo) UpsertActive(ctx context.Context, entries []types.RecommendationEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, entries)
	return nil
}

func (f *fakeRecEntryRepo) CountSurfaced(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uuid.UUID]int{}
	for _, id := range ids {
		if n, ok := f.surfaced[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

func (f *fakeRecEntryRepo) SetInteraction(ctx context.Context, userID, fragranceID uuid.UUID, recType, state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interactions = append(f.interactions, state)
	return nil
}

func (f *fakeRecEntryRepo) SetFeedbackLabel(ctx context.Context, userID, fragranceID uuid.UUID, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels = append(f.labels, label)
	return nil
}

func (f *fakeRecEntryRepo) MarkExpiredInactive(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedAt = append(f.markedAt, now)
	return f.markReturn, nil
}

func (f *fakeRecEntryRepo) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedAt = append(f.deletedAt, cutoff)
	return f.deleteReturn, nil
}

var _ repos.RecommendationEntryRepo = (*fakeRecEntryRepo)(nil)

type fakeFragranceRepo struct {
	byID map[uuid.UUID]*types.Fragrance
}

func (f *fakeFragranceRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.Fragrance, error) {
	return f.byID[id], nil
}

func (f *fakeFragranceRepo) ListWithEmbeddings(ctx context.Context, filter repos.FragranceFilter) ([]types.Fragrance, error) {
	excluded := map[uuid.UUID]bool{}
	for _, id := range filter.ExcludeIDs {
		excluded[id] = true
	}
	var out []types.Fragrance
	for _, frag := range f.byID {
		if len(frag.Embedding) == 0 || excluded[frag.ID] {
			continue
		}
		out = append(out, *frag)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

var _ repos.FragranceRepo = (*fakeFragranceRepo)(nil)

type fakePrefRepo struct {
	mu     sync.Mutex
	byUser map[uuid.UUID]*types.PreferenceState
	saves  int
}

func newFakePrefRepo() *fakePrefRepo {
	return &fakePrefRepo{byUser: map[uuid.UUID]*types.PreferenceState{}}
}

func (f *fakePrefRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*types.PreferenceState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.byUser[userID]
	if !ok {
		return nil, nil
	}
	cp := *state
	return &cp, nil
}

func (f *fakePrefRepo) Save(ctx context.Context, state *types.PreferenceState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *state
	f.byUser[state.UserID] = &cp
	f.saves++
	return nil
}

var _ repos.PreferenceStateRepo = (*fakePrefRepo)(nil)

type fakeFeedbackRepo struct {
	mu     sync.Mutex
	seen   map[uuid.UUID]bool
	events []types.FeedbackEvent
}

func newFakeFeedbackRepo() *fakeFeedbackRepo {
	return &fakeFeedbackRepo{seen: map[uuid.UUID]bool{}}
}

func (f *fakeFeedbackRepo) Insert(ctx context.Context, ev *types.FeedbackEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[ev.EventID] {
		return false, nil
	}
	f.seen[ev.EventID] = true
	f.events = append(f.events, *ev)
	return true, nil
}

func (f *fakeFeedbackRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]types.FeedbackEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.FeedbackEvent
	for _, ev := range f.events {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	return out, nil
}

var _ repos.FeedbackEventRepo = (*fakeFeedbackRepo)(nil)

// memLocker is a process-local LeaseLocker with the same acquire/release
// contract as the redis implementation.
type memLocker struct {
	mu       sync.Mutex
	held     map[string]string
	acquires int
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]string{}}
}

func (l *memLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[key]; taken {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = token
	l.acquires++
	return token, true, nil
}

func (l *memLocker) AcquireWait(ctx context.Context, key string, ttl, maxWait time.Duration) (string, bool, error) {
	deadline := time.Now().Add(maxWait)
	for {
		token, ok, err := l.Acquire(ctx, key, ttl)
		if err != nil || ok {
			return token, ok, err
		}
		if time.Now().After(deadline) {
			return "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (l *memLocker) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

var _ LeaseLocker = (*memLocker)(nil)

type fakeInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeInvalidator) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

var _ CacheInvalidator = (*fakeInvalidator)(nil)

// memKV mirrors the redis JSON/set surface with TTL expiry.
type memKV struct {
	mu   sync.Mutex
	vals map[string]memKVEntry
	sets map[string]map[string]bool
}

type memKVEntry struct {
	data     []byte
	expireAt time.Time
}

func newMemKV() *memKV {
	return &memKV{vals: map[string]memKVEntry{}, sets: map[string]map[string]bool{}}
}

func (m *memKV) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.vals[key]
	if !ok || time.Now().After(entry.expireAt) {
		return false, nil
	}
	return true, json.Unmarshal(entry.data, dst)
}

func (m *memKV) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = memKVEntry{data: b, expireAt: time.Now().Add(ttl)}
	return nil
}

func (m *memKV) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.vals, k)
		delete(m.sets, k)
	}
	return nil
}

func (m *memKV) SAdd(ctx context.Context, key string, ttl time.Duration, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		set = map[string]bool{}
		m.sets[key] = set
	}
	for _, member := range members {
		set[member] = true
	}
	return nil
}

func (m *memKV) SMembers(ctx context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for member := range m.sets[key] {
		out = append(out, member)
	}
	return out, nil
}

var _ KVStore = (*memKV)(nil)
