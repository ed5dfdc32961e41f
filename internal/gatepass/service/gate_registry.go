package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/scango-office/gatepass/server/internal/gatepass/store"
)

// GateRegistry resolves gate ids against gate master data.
type GateRegistry struct {
	store store.GateStore
}

func NewGateRegistry(st store.GateStore) *GateRegistry {
	return &GateRegistry{store: st}
}

// Lookup returns the gate record and whether the gate may be used for scans.
// Unknown and disabled gates are reported as not known; only store failures
// are errors.
func (r *GateRegistry) Lookup(ctx context.Context, gateID string) (store.GateRecord, bool, error) {
	gateID = strings.TrimSpace(gateID)
	if gateID == "" {
		return store.GateRecord{}, false, nil
	}
	rec, err := r.store.Get(ctx, gateID)
	if errors.Is(err, store.ErrNotFound) {
		return store.GateRecord{GateID: gateID}, false, nil
	}
	if err != nil {
		return store.GateRecord{}, false, err
	}
	return rec, rec.Enabled, nil
}

func (r *GateRegistry) IsKnown(ctx context.Context, gateID string) (bool, error) {
	_, known, err := r.Lookup(ctx, gateID)
	return known, err
}

func (r *GateRegistry) NoteSeen(ctx context.Context, gateID string) error {
	gateID = strings.TrimSpace(gateID)
	if gateID == "" {
		return nil
	}
	return r.store.MarkSeen(ctx, gateID, time.Now().UTC())
}
