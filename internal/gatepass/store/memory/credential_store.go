package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string]store.CredentialRecord

	// FailGet, when set, is returned by Get. Used to simulate an unavailable store.
	FailGet error
	// FailUpdate, when set, is returned by UpdateLifecycleStatus.
	FailUpdate error
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{creds: make(map[string]store.CredentialRecord)}
}

func (s *CredentialStore) Create(_ context.Context, rec store.CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.creds[rec.ID]; ok {
		return store.ErrDuplicate
	}
	if rec.Lifecycle == "" {
		rec.Lifecycle = types.LifecycleActive
	}
	s.creds[rec.ID] = rec
	return nil
}

func (s *CredentialStore) Get(_ context.Context, id string) (store.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailGet != nil {
		return store.CredentialRecord{}, s.FailGet
	}
	rec, ok := s.creds[id]
	if !ok {
		return store.CredentialRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *CredentialStore) UpdateLifecycleStatus(_ context.Context, id string, status types.Lifecycle, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdate != nil {
		return s.FailUpdate
	}
	rec, ok := s.creds[id]
	if !ok {
		return store.ErrNotFound
	}
	if !rec.Lifecycle.CanTransitionTo(status) {
		return store.ErrIllegalTransition
	}
	if rec.Lifecycle == status {
		return nil
	}
	rec.Lifecycle = status
	t := at.UTC()
	rec.CheckedOutAt = &t
	s.creds[id] = rec
	return nil
}

func (s *CredentialStore) List(_ context.Context, f store.CredentialFilter) ([]store.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.CredentialRecord
	for _, rec := range s.creds {
		if !f.From.IsZero() && rec.Window.End.Before(store.DateOf(f.From)) {
			continue
		}
		if !f.To.IsZero() && rec.Window.Start.After(store.DateOf(f.To)) {
			continue
		}
		if f.Lifecycle != "" && rec.Lifecycle != f.Lifecycle {
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
