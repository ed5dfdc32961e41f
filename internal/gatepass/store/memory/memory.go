package memory

import (
	"context"
	"sync"
	"time"

	"github.com/scango-office/gatepass/server/internal/gatepass/store"
)

// Store keeps gate heartbeats in memory, newest record per gate plus history
// for pruning.
type Store struct {
	mu   sync.RWMutex
	data map[string][]store.HeartbeatRecord
}

func New() *Store {
	return &Store{
		data: make(map[string][]store.HeartbeatRecord),
	}
}

func (s *Store) UpsertHeartbeat(_ context.Context, gateID string, rec store.HeartbeatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	s.data[gateID] = append(s.data[gateID], rec)
	return nil
}

func (s *Store) PruneOlderThan(_ context.Context, cutoff time.Time) (store.PruneCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := store.PruneCounts{}
	for id, recs := range s.data {
		kept := recs[:0]
		for _, r := range recs {
			if r.ReceivedAt.Before(cutoff) {
				deleted[id]++
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(s.data, id)
			continue
		}
		s.data[id] = kept
	}
	return deleted, nil
}

// Latest returns the most recent heartbeat for a gate. Test-only helper.
func (s *Store) Latest(gateID string) (store.HeartbeatRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.data[gateID]
	if len(recs) == 0 {
		return store.HeartbeatRecord{}, false
	}
	return recs[len(recs)-1], true
}
