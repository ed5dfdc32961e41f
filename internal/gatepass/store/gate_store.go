package store

import (
	"context"
	"time"

	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

// GateRecord is gate master data. UseFor is empty when the gate machine lets
// the ledger decide direction.
type GateRecord struct {
	GateID       string
	Name         string
	BuildingGate string
	UseFor       types.Action
	Enabled      bool
	LastSeen     time.Time
}

type GateStore interface {
	Get(ctx context.Context, gateID string) (GateRecord, error)
	MarkSeen(ctx context.Context, gateID string, t time.Time) error
}
