package store

import (
	"context"
	"time"

	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

// LedgerEntry is one committed gate scan. Entries are never updated or deleted.
// Seq is assigned by the store and reflects commit order.
type LedgerEntry struct {
	ID           string
	Seq          int64
	CredentialID string
	GateID       string
	BuildingGate string
	Action       types.Action
	ScannedAt    time.Time
	Actor        string
	VisitorName  string
}

// LedgerStore is the append-only access history.
//
// Append refuses any entry for a credential that already has a Checkout entry
// and returns ErrCredentialClosed. ListByCredential returns entries in commit
// order. LastDirectionByCredentialAndGate returns the newest In or Out entry for
// the pair, skipping status checks and checkouts, or ErrNotFound when there is none.
type LedgerStore interface {
	Append(ctx context.Context, e LedgerEntry) (LedgerEntry, error)
	ListByCredential(ctx context.Context, credentialID string) ([]LedgerEntry, error)
	LastDirectionByCredentialAndGate(ctx context.Context, credentialID, gateID string) (LedgerEntry, error)
}
