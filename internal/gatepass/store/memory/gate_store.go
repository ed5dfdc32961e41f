package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/scango-office/gatepass/server/internal/gatepass/store"
)

type GateStore struct {
	mu    sync.RWMutex
	gates map[string]store.GateRecord

	// FailMarkSeen, when set, is returned by MarkSeen without writing.
	FailMarkSeen error
}

// NewGateStore registers every listed gate as enabled with no fixed action.
func NewGateStore(knownGates []string) *GateStore {
	g := make(map[string]store.GateRecord, len(knownGates))
	for _, id := range knownGates {
		id = strings.TrimSpace(id)
		if id != "" {
			g[id] = store.GateRecord{GateID: id, Name: id, Enabled: true}
		}
	}
	return &GateStore{gates: g}
}

// Put inserts or replaces a gate record.
func (s *GateStore) Put(rec store.GateRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gates[rec.GateID] = rec
}

func (s *GateStore) Get(_ context.Context, gateID string) (store.GateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.gates[gateID]
	if !ok {
		return store.GateRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *GateStore) MarkSeen(_ context.Context, gateID string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailMarkSeen != nil {
		return s.FailMarkSeen
	}
	rec, ok := s.gates[gateID]
	if !ok {
		return nil
	}
	rec.LastSeen = t
	s.gates[gateID] = rec
	return nil
}
