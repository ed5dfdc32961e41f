package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scango-office/gatepass/server/internal/gatepass/service"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

func (f fixture) pair(t *testing.T, gateID string, now time.Time) service.ScanOutcome {
	t.Helper()
	out, err := f.engine.Pair(context.Background(), service.GateScanCommand{
		CredentialID: credID,
		GateID:       gateID,
	}, now)
	require.NoError(t, err)
	return out
}

func (f fixture) atGate(t *testing.T, gateID string, now time.Time) service.ScanOutcome {
	t.Helper()
	out, err := f.engine.ScanAtGate(context.Background(), service.GateScanCommand{
		CredentialID: credID,
		GateID:       gateID,
		Actor:        "kiosk",
	}, now)
	require.NoError(t, err)
	return out
}

func TestPair_AlternatesPerGate(t *testing.T) {
	f := newFixture(t, service.EngineOptions{})
	now := day(2024, 6, 3)

	assert.Equal(t, types.ActionIn, f.pair(t, "gate-a", now).Action)
	assert.Equal(t, types.ActionOut, f.pair(t, "gate-a", now).Action)

	// gate-b has its own history
	assert.Equal(t, types.ActionIn, f.pair(t, "gate-b", now).Action)

	assert.Equal(t, types.ActionIn, f.pair(t, "gate-a", now).Action)
	assert.Equal(t, types.ActionOut, f.pair(t, "gate-b", now).Action)

	assert.Equal(t, 5, f.ledger.Len())
}

func TestPair_IgnoresWindowByDefault(t *testing.T) {
	f := newFixture(t, service.EngineOptions{})

	out := f.pair(t, "gate-a", day(2024, 6, 10))

	assert.Equal(t, service.OutcomeAccepted, out.Kind)
	assert.Equal(t, types.ValidityExpired, out.Validity.Status)
	assert.Equal(t, 1, f.ledger.Len())
}

func TestPair_StrictPairingAppliesWindow(t *testing.T) {
	f := newFixture(t, service.EngineOptions{StrictPairing: true})

	out := f.pair(t, "gate-a", day(2024, 6, 10))

	assert.Equal(t, service.OutcomeRejected, out.Kind)
	assert.Equal(t, service.ReasonExpired, out.Reason)
	assert.Equal(t, 0, f.ledger.Len())
}

func TestPair_RejectsAfterCheckout(t *testing.T) {
	f := newFixture(t, service.EngineOptions{})
	now := day(2024, 6, 3)
	require.Equal(t, service.OutcomeAccepted, f.scan(t, "gate-a", types.ActionCheckout, now).Kind)

	out := f.pair(t, "gate-b", now)

	assert.Equal(t, service.OutcomeRejected, out.Kind)
	assert.Equal(t, service.ReasonCheckedOut, out.Reason)
}

func TestPair_UnknownGate(t *testing.T) {
	f := newFixture(t, service.EngineOptions{})

	out := f.pair(t, "rogue-gate", day(2024, 6, 3))

	assert.Equal(t, service.OutcomeRejected, out.Kind)
	assert.Equal(t, service.ReasonUnknownGate, out.Reason)
}

func TestScanAtGate_NoFixedActionPairs(t *testing.T) {
	f := newFixture(t, service.EngineOptions{})
	now := day(2024, 6, 3)

	first := f.atGate(t, "gate-a", now)
	second := f.atGate(t, "gate-a", now)

	assert.Equal(t, types.ActionIn, first.Action)
	assert.Equal(t, types.ActionOut, second.Action)
	require.NotNil(t, second.Entry)
	assert.Equal(t, "kiosk", second.Entry.Actor)
}

func TestScanAtGate_StatusGateReportsWithoutWriting(t *testing.T) {
	f := newFixture(t, service.EngineOptions{})

	out := f.atGate(t, "status-gate", day(2024, 6, 3))

	assert.Equal(t, service.OutcomeReported, out.Kind)
	assert.Equal(t, types.ActionCheckStatus, out.Action)
	assert.Nil(t, out.Entry)
	assert.Equal(t, 0, f.ledger.Len())
}

func TestScanAtGate_StatusGateRecordsWhenEnabled(t *testing.T) {
	f := newFixture(t, service.EngineOptions{RecordStatusChecks: true})
	now := day(2024, 6, 3)

	out := f.atGate(t, "status-gate", now)
	require.NotNil(t, out.Entry)
	assert.Equal(t, types.ActionCheckStatus, out.Entry.Action)

	// the primary path still never records status checks
	f.scan(t, "gate-a", types.ActionCheckStatus, now)
	assert.Equal(t, 1, f.ledger.Len())

	// recorded status checks do not influence pairing
	assert.Equal(t, types.ActionIn, f.pair(t, "status-gate", now).Action)
}

func TestScanAtGate_StatusGateAfterCheckoutDoesNotWrite(t *testing.T) {
	f := newFixture(t, service.EngineOptions{RecordStatusChecks: true})
	now := day(2024, 6, 3)
	require.Equal(t, service.OutcomeAccepted, f.scan(t, "gate-a", types.ActionCheckout, now).Kind)

	out := f.atGate(t, "status-gate", now)

	assert.Equal(t, service.OutcomeReported, out.Kind)
	assert.Equal(t, types.ValidityCheckedOut, out.Validity.Status)
	assert.Nil(t, out.Entry)
	assert.Equal(t, 1, f.ledger.Len())
}

func TestScanAtGate_CheckoutGate(t *testing.T) {
	f := newFixture(t, service.EngineOptions{})
	now := day(2024, 6, 3)

	out := f.atGate(t, "exit-gate", now)
	require.Equal(t, service.OutcomeAccepted, out.Kind)
	assert.Equal(t, types.ActionCheckout, out.Action)
	require.NotNil(t, out.Entry)
	assert.Equal(t, "B1", out.Entry.BuildingGate)

	again := f.atGate(t, "exit-gate", now)
	assert.Equal(t, service.OutcomeRejected, again.Kind)
	assert.Equal(t, service.ReasonCheckedOut, again.Reason)
}

func TestScanAtGate_CheckoutGateHonoursWindow(t *testing.T) {
	f := newFixture(t, service.EngineOptions{})

	out := f.atGate(t, "exit-gate", day(2024, 5, 30))

	assert.Equal(t, service.OutcomeRejected, out.Kind)
	assert.Equal(t, service.ReasonNotStarted, out.Reason)
}

func TestScanAtGate_MarksGateSeen(t *testing.T) {
	f := newFixture(t, service.EngineOptions{})

	f.atGate(t, "gate-b", day(2024, 6, 3))

	g, err := f.gates.Get(context.Background(), "gate-b")
	require.NoError(t, err)
	assert.False(t, g.LastSeen.IsZero())
}

func TestPair_RecordedStatusCheckKeepsDirection(t *testing.T) {
	f := newFixture(t, service.EngineOptions{RecordStatusChecks: true})
	now := day(2024, 6, 3)

	require.Equal(t, types.ActionIn, f.pair(t, "status-gate", now).Action)

	status := f.atGate(t, "status-gate", now)
	require.NotNil(t, status.Entry)
	require.Equal(t, types.ActionCheckStatus, status.Entry.Action)

	assert.Equal(t, types.ActionOut, f.pair(t, "status-gate", now).Action)
	assert.Equal(t, types.ActionIn, f.pair(t, "status-gate", now).Action)
	assert.Equal(t, 4, f.ledger.Len())
}
