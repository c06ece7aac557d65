package users

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]Record
	now     func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]Record), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, id int64) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) Create(_ context.Context, id int64, displayName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; ok {
		return false, nil
	}
	now := s.now()
	s.records[id] = Record{ID: id, DisplayName: displayName, Step: StepVerify, CreatedAt: now, UpdatedAt: now}
	return true, nil
}

func (s *MemoryStore) Apply(_ context.Context, id int64, muts ...Mutation) (Record, error) {
	if err := checkMutations(muts); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	for _, m := range muts {
		m.apply(&r)
	}
	r.UpdatedAt = s.now()
	s.records[id] = r
	return r, nil
}

func (s *MemoryStore) ListIDs(context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) Aggregate(context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, r := range s.records {
		st.Users++
		st.Referrals += r.Referrals
		st.Balance += r.Balance
	}
	return st, nil
}

func (s *MemoryStore) CountByStep(context.Context) (map[Step]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Step]int64, len(Steps))
	for _, st := range Steps {
		out[st] = 0
	}
	for _, r := range s.records {
		out[r.Step]++
	}
	return out, nil
}
