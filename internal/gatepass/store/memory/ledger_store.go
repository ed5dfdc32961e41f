package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

// LedgerStore is an in-memory append-only access ledger.
type LedgerStore struct {
	mu      sync.Mutex
	seq     int64
	entries map[string][]store.LedgerEntry
	closed  map[string]bool

	// FailAppend, when set, is returned by Append without writing.
	FailAppend error
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		entries: make(map[string][]store.LedgerEntry),
		closed:  make(map[string]bool),
	}
}

func (s *LedgerStore) Append(_ context.Context, e store.LedgerEntry) (store.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailAppend != nil {
		return store.LedgerEntry{}, s.FailAppend
	}
	if s.closed[e.CredentialID] {
		return store.LedgerEntry{}, store.ErrCredentialClosed
	}

	s.seq++
	e.Seq = s.seq
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	s.entries[e.CredentialID] = append(s.entries[e.CredentialID], e)
	if e.Action == types.ActionCheckout {
		s.closed[e.CredentialID] = true
	}
	return e, nil
}

func (s *LedgerStore) ListByCredential(_ context.Context, credentialID string) ([]store.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.entries[credentialID]
	out := make([]store.LedgerEntry, len(src))
	copy(out, src)
	return out, nil
}

func (s *LedgerStore) LastDirectionByCredentialAndGate(_ context.Context, credentialID, gateID string) (store.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.entries[credentialID]
	for i := len(src) - 1; i >= 0; i-- {
		if src[i].GateID == gateID && src[i].Action.Directional() {
			return src[i], nil
		}
	}
	return store.LedgerEntry{}, store.ErrNotFound
}

// Len returns the total number of entries. Test-only helper.
func (s *LedgerStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, es := range s.entries {
		n += len(es)
	}
	return n
}
