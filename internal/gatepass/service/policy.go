package service

import (
	"context"
	"errors"

	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

// DirectionPolicy decides which action a scan performs.
//
// ExplicitPolicy trusts the action the caller asked for. AlternatingPolicy
// ignores it and flips the last direction recorded at the same gate. They
// answer different questions and are kept apart on purpose: the first asks
// "may this credential do X", the second "which way did they just go".
type DirectionPolicy interface {
	Resolve(ctx context.Context, credentialID, gateID string, requested types.Action) (types.Action, error)
}

type ExplicitPolicy struct{}

func (ExplicitPolicy) Resolve(_ context.Context, _, _ string, requested types.Action) (types.Action, error) {
	if !requested.Valid() {
		return "", ErrInvalidAction
	}
	return requested, nil
}

// AlternatingPolicy infers direction from the most recent In or Out entry for
// the exact (credential, gate) pair: after In comes Out, otherwise In.
// Recorded status checks are not directions and are skipped.
type AlternatingPolicy struct {
	Ledger store.LedgerStore
}

func (p AlternatingPolicy) Resolve(ctx context.Context, credentialID, gateID string, _ types.Action) (types.Action, error) {
	last, err := p.Ledger.LastDirectionByCredentialAndGate(ctx, credentialID, gateID)
	if errors.Is(err, store.ErrNotFound) {
		return types.ActionIn, nil
	}
	if err != nil {
		return "", err
	}
	return last.Action.Opposite(), nil
}
