package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
	"github.com/scango-office/gatepass/server/internal/gatepass/validity"
)

var (
	ErrMalformedInput = errors.New("malformed input")

	ErrInvalidCredentialID = fmt.Errorf("%w: credential_id is required", ErrMalformedInput)
	ErrInvalidGateID       = fmt.Errorf("%w: gate_id is required", ErrMalformedInput)
	ErrInvalidAction       = fmt.Errorf("%w: action must be one of In, Out, CheckStatus, Checkout", ErrMalformedInput)

	// ErrStore reports that the credential store (or a ledger read) failed.
	// Callers may retry; the engine never does.
	ErrStore = errors.New("credential store unavailable")
	// ErrLedgerWrite reports that a scan passed its checks but could not be
	// committed. No lifecycle change was made.
	ErrLedgerWrite = errors.New("ledger write failed")
)

// Reason codes carried on rejected and reported outcomes.
const (
	ReasonNotFound    = string(types.ValidityNotFound)
	ReasonUnknownGate = "unknown_gate"
	ReasonNotStarted  = string(types.ValidityNotStarted)
	ReasonExpired     = string(types.ValidityExpired)
	ReasonCheckedOut  = string(types.ValidityCheckedOut)
)

type OutcomeKind string

const (
	OutcomeAccepted OutcomeKind = "accepted"
	OutcomeRejected OutcomeKind = "rejected"
	OutcomeReported OutcomeKind = "reported"
)

// ScanOutcome is the typed result of a scan. Precondition failures are
// outcomes, not errors.
type ScanOutcome struct {
	Kind     OutcomeKind
	Action   types.Action
	Reason   string
	Validity validity.Result

	Gate       store.GateRecord
	Credential *store.CredentialRecord // nil when the credential did not resolve
	Entry      *store.LedgerEntry      // set when a ledger entry was written
}

func (o ScanOutcome) Granted() bool { return o.Kind == OutcomeAccepted }

type ScanCommand struct {
	CredentialID string
	GateID       string
	Action       types.Action
	Actor        string
}

type GateScanCommand struct {
	CredentialID string
	GateID       string
	Actor        string
}

type EngineOptions struct {
	// RecordStatusChecks makes CheckStatus scans on status-check gate machines
	// write a ledger entry. The primary scan path never records them.
	RecordStatusChecks bool

	// StrictPairing applies the visit window to direction-inferred scans. The
	// checkout rule applies regardless.
	StrictPairing bool

	Logger *slog.Logger
}

// Engine is the gate decision state machine. Every mutating entry point holds
// the per-credential lock across resolve, evaluate, append and lifecycle update.
type Engine struct {
	gates  *GateRegistry
	creds  store.CredentialStore
	ledger store.LedgerStore
	locks  *keyLock
	opts   EngineOptions

	explicit    DirectionPolicy
	alternating DirectionPolicy
}

func NewEngine(gates *GateRegistry, creds store.CredentialStore, ledger store.LedgerStore, opts EngineOptions) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		gates:       gates,
		creds:       creds,
		ledger:      ledger,
		locks:       newKeyLock(),
		opts:        opts,
		explicit:    ExplicitPolicy{},
		alternating: AlternatingPolicy{Ledger: ledger},
	}
}

// ProcessScan runs an explicit-action scan.
func (e *Engine) ProcessScan(ctx context.Context, cmd ScanCommand, now time.Time) (ScanOutcome, error) {
	credentialID := strings.TrimSpace(cmd.CredentialID)
	gateID := strings.TrimSpace(cmd.GateID)
	if credentialID == "" {
		return ScanOutcome{}, ErrInvalidCredentialID
	}
	if gateID == "" {
		return ScanOutcome{}, ErrInvalidGateID
	}
	if !cmd.Action.Valid() {
		return ScanOutcome{}, ErrInvalidAction
	}

	gate, known, err := e.resolveGate(ctx, gateID)
	if err != nil {
		return ScanOutcome{}, err
	}
	if !known {
		return unknownGate(gate, cmd.Action), nil
	}

	unlock := e.locks.Lock(credentialID)
	defer unlock()

	return e.run(ctx, scanPlan{
		gate:          gate,
		credentialID:  credentialID,
		actor:         cmd.Actor,
		policy:        e.explicit,
		requested:     cmd.Action,
		enforceWindow: true,
	}, now)
}

// Pair runs a direction-inferred scan (see AlternatingPolicy).
func (e *Engine) Pair(ctx context.Context, cmd GateScanCommand, now time.Time) (ScanOutcome, error) {
	credentialID, gate, known, err := e.prepareGateScan(ctx, cmd)
	if err != nil {
		return ScanOutcome{}, err
	}
	if !known {
		return unknownGate(gate, ""), nil
	}

	unlock := e.locks.Lock(credentialID)
	defer unlock()

	return e.run(ctx, e.pairingPlan(gate, credentialID, cmd.Actor), now)
}

// ScanAtGate runs a scan from a gate machine that sends only the credential.
// A gate configured for a fixed action behaves like ProcessScan with that
// action; other gates pair directions.
func (e *Engine) ScanAtGate(ctx context.Context, cmd GateScanCommand, now time.Time) (ScanOutcome, error) {
	credentialID, gate, known, err := e.prepareGateScan(ctx, cmd)
	if err != nil {
		return ScanOutcome{}, err
	}
	if !known {
		return unknownGate(gate, gate.UseFor), nil
	}

	unlock := e.locks.Lock(credentialID)
	defer unlock()

	if gate.UseFor == "" {
		return e.run(ctx, e.pairingPlan(gate, credentialID, cmd.Actor), now)
	}
	return e.run(ctx, scanPlan{
		gate:          gate,
		credentialID:  credentialID,
		actor:         cmd.Actor,
		policy:        e.explicit,
		requested:     gate.UseFor,
		enforceWindow: true,
		recordStatus:  e.opts.RecordStatusChecks,
	}, now)
}

// Evaluate reports the current validity of a credential without side effects.
// An unknown id yields a NotFound result, not an error.
func (e *Engine) Evaluate(ctx context.Context, credentialID string, now time.Time) (validity.Result, store.CredentialRecord, error) {
	credentialID = strings.TrimSpace(credentialID)
	if credentialID == "" {
		return validity.Result{}, store.CredentialRecord{}, ErrInvalidCredentialID
	}
	cred, entries, err := e.load(ctx, credentialID)
	if errors.Is(err, store.ErrNotFound) {
		return validity.NotFound(now), store.CredentialRecord{}, nil
	}
	if err != nil {
		return validity.Result{}, store.CredentialRecord{}, err
	}
	return validity.Evaluate(cred, entries, now), cred, nil
}

// History returns the ledger of a credential in commit order. It returns an
// error wrapping store.ErrNotFound for an unknown credential.
func (e *Engine) History(ctx context.Context, credentialID string) ([]store.LedgerEntry, error) {
	credentialID = strings.TrimSpace(credentialID)
	if credentialID == "" {
		return nil, ErrInvalidCredentialID
	}
	_, entries, err := e.load(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []store.LedgerEntry{}
	}
	return entries, nil
}

type scanPlan struct {
	gate         store.GateRecord
	credentialID string
	actor        string

	policy    DirectionPolicy
	requested types.Action

	// enforceWindow rejects NotStarted and Expired credentials. CheckedOut is
	// always rejected.
	enforceWindow bool
	recordStatus  bool
}

func (e *Engine) pairingPlan(gate store.GateRecord, credentialID, actor string) scanPlan {
	return scanPlan{
		gate:          gate,
		credentialID:  credentialID,
		actor:         actor,
		policy:        e.alternating,
		enforceWindow: e.opts.StrictPairing,
	}
}

// run is the state machine body. The caller must hold the credential lock.
func (e *Engine) run(ctx context.Context, p scanPlan, now time.Time) (ScanOutcome, error) {
	out := ScanOutcome{Gate: p.gate, Action: p.requested}

	cred, entries, err := e.load(ctx, p.credentialID)
	if errors.Is(err, store.ErrNotFound) {
		out.Kind = OutcomeRejected
		out.Reason = ReasonNotFound
		out.Validity = validity.NotFound(now)
		return out, nil
	}
	if err != nil {
		return ScanOutcome{}, err
	}

	res := validity.Evaluate(cred, entries, now)
	out.Validity = res
	out.Credential = &cred

	action, err := p.policy.Resolve(ctx, p.credentialID, p.gate.GateID, p.requested)
	if err != nil {
		if errors.Is(err, ErrMalformedInput) {
			return ScanOutcome{}, err
		}
		return ScanOutcome{}, fmt.Errorf("%w: resolve direction: %w", ErrStore, err)
	}
	out.Action = action

	if action == types.ActionCheckStatus {
		out.Kind = OutcomeReported
		out.Reason = string(res.Status)
		if p.recordStatus && res.Status != types.ValidityCheckedOut {
			entry, err := e.append(ctx, p, cred, action, now)
			if err != nil {
				if errors.Is(err, store.ErrCredentialClosed) {
					out.Validity.Status = types.ValidityCheckedOut
					out.Reason = ReasonCheckedOut
					return out, nil
				}
				return ScanOutcome{}, err
			}
			out.Entry = &entry
		}
		return out, nil
	}

	if blocked(res.Status, p.enforceWindow) {
		out.Kind = OutcomeRejected
		out.Reason = string(res.Status)
		return out, nil
	}

	entry, err := e.append(ctx, p, cred, action, now)
	if err != nil {
		if errors.Is(err, store.ErrCredentialClosed) {
			// Another writer committed a checkout between our read and write.
			out.Kind = OutcomeRejected
			out.Reason = ReasonCheckedOut
			out.Validity.Status = types.ValidityCheckedOut
			return out, nil
		}
		return ScanOutcome{}, err
	}
	out.Entry = &entry

	if action == types.ActionCheckout {
		// The ledger entry is durable at this point and already makes the
		// credential evaluate as checked out; the lifecycle column follows it.
		if err := e.creds.UpdateLifecycleStatus(ctx, cred.ID, types.LifecycleCheckedOut, now); err != nil {
			e.opts.Logger.Error("checkout committed but lifecycle update failed",
				"credential_id", cred.ID, "entry_id", entry.ID, "error", err)
			return ScanOutcome{}, fmt.Errorf("%w: mark checked out: %w", ErrStore, err)
		}
		cred.Lifecycle = types.LifecycleCheckedOut
		at := now.UTC()
		cred.CheckedOutAt = &at
	}

	out.Kind = OutcomeAccepted
	return out, nil
}

func blocked(status types.Validity, enforceWindow bool) bool {
	if status == types.ValidityCheckedOut {
		return true
	}
	return enforceWindow && status != types.ValidityActive
}

func (e *Engine) append(ctx context.Context, p scanPlan, cred store.CredentialRecord, action types.Action, now time.Time) (store.LedgerEntry, error) {
	entry, err := e.ledger.Append(ctx, store.LedgerEntry{
		CredentialID: cred.ID,
		GateID:       p.gate.GateID,
		BuildingGate: p.gate.BuildingGate,
		Action:       action,
		ScannedAt:    now.UTC(),
		Actor:        strings.TrimSpace(p.actor),
		VisitorName:  cred.Visitor.DisplayName(),
	})
	if errors.Is(err, store.ErrCredentialClosed) {
		return store.LedgerEntry{}, err
	}
	if err != nil {
		return store.LedgerEntry{}, fmt.Errorf("%w: %w", ErrLedgerWrite, err)
	}
	return entry, nil
}

// load reads the credential and its history. A missing credential comes back
// wrapping store.ErrNotFound; other failures wrap ErrStore.
func (e *Engine) load(ctx context.Context, credentialID string) (store.CredentialRecord, []store.LedgerEntry, error) {
	cred, err := e.creds.Get(ctx, credentialID)
	if errors.Is(err, store.ErrNotFound) {
		return store.CredentialRecord{}, nil, fmt.Errorf("credential %s: %w", credentialID, store.ErrNotFound)
	}
	if err != nil {
		return store.CredentialRecord{}, nil, fmt.Errorf("%w: get credential: %w", ErrStore, err)
	}
	entries, err := e.ledger.ListByCredential(ctx, credentialID)
	if err != nil {
		return store.CredentialRecord{}, nil, fmt.Errorf("%w: list ledger: %w", ErrStore, err)
	}
	return cred, entries, nil
}

func (e *Engine) resolveGate(ctx context.Context, gateID string) (store.GateRecord, bool, error) {
	gate, known, err := e.gates.Lookup(ctx, gateID)
	if err != nil {
		return store.GateRecord{}, false, fmt.Errorf("%w: lookup gate: %w", ErrStore, err)
	}
	if known {
		// last-seen is advisory; the scan proceeds without it
		if err := e.gates.NoteSeen(ctx, gateID); err != nil {
			e.opts.Logger.Warn("gate last-seen update failed", "gate_id", gateID, "error", err)
		}
	}
	return gate, known, nil
}

func (e *Engine) prepareGateScan(ctx context.Context, cmd GateScanCommand) (string, store.GateRecord, bool, error) {
	credentialID := strings.TrimSpace(cmd.CredentialID)
	gateID := strings.TrimSpace(cmd.GateID)
	if credentialID == "" {
		return "", store.GateRecord{}, false, ErrInvalidCredentialID
	}
	if gateID == "" {
		return "", store.GateRecord{}, false, ErrInvalidGateID
	}
	gate, known, err := e.resolveGate(ctx, gateID)
	return credentialID, gate, known, err
}

func unknownGate(gate store.GateRecord, action types.Action) ScanOutcome {
	return ScanOutcome{
		Kind:   OutcomeRejected,
		Action: action,
		Reason: ReasonUnknownGate,
		Gate:   gate,
	}
}
