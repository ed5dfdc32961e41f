package validity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
	"github.com/scango-office/gatepass/server/internal/gatepass/validity"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func juneVisit() store.CredentialRecord {
	return store.CredentialRecord{
		ID:        "cred-1",
		Window:    store.Window{Start: day(2024, 6, 1), End: day(2024, 6, 5)},
		Lifecycle: types.LifecycleActive,
	}
}

func TestEvaluate_BeforeWindow_NotStarted(t *testing.T) {
	r := validity.Evaluate(juneVisit(), nil, day(2024, 5, 30))

	assert.Equal(t, types.ValidityNotStarted, r.Status)
	assert.Equal(t, 2, r.DaysUntilStart)
	assert.Equal(t, 5, r.TotalDays)
}

func TestEvaluate_AfterWindow_Expired(t *testing.T) {
	r := validity.Evaluate(juneVisit(), nil, day(2024, 6, 10))

	assert.Equal(t, types.ValidityExpired, r.Status)
	assert.Equal(t, 5, r.DaysSinceEnd)
}

func TestEvaluate_InsideWindow_Active(t *testing.T) {
	r := validity.Evaluate(juneVisit(), nil, day(2024, 6, 3))

	assert.Equal(t, types.ValidityActive, r.Status)
	assert.Equal(t, 3, r.DaysRemaining)
}

func TestEvaluate_WindowBoundsAreInclusive(t *testing.T) {
	cred := juneVisit()

	first := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, 6, 5, 23, 59, 59, 0, time.UTC)

	assert.Equal(t, types.ValidityActive, validity.Evaluate(cred, nil, first).Status)
	assert.Equal(t, types.ValidityActive, validity.Evaluate(cred, nil, last).Status)
	assert.Equal(t, 1, validity.Evaluate(cred, nil, last).DaysRemaining)
}

func TestEvaluate_UsesCivilDateOfNowLocation(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*3600)
	// 2024-06-05 20:00 UTC is already 2024-06-06 in Bangkok.
	now := time.Date(2024, 6, 6, 3, 0, 0, 0, bangkok)

	r := validity.Evaluate(juneVisit(), nil, now)

	assert.Equal(t, types.ValidityExpired, r.Status)
	assert.Equal(t, day(2024, 6, 6), r.Today)
}

func TestEvaluate_CheckoutEntryWinsOverWindow(t *testing.T) {
	cred := juneVisit()
	entries := []store.LedgerEntry{
		{CredentialID: cred.ID, GateID: "gate-a", Action: types.ActionIn},
		{CredentialID: cred.ID, GateID: "gate-a", Action: types.ActionCheckout},
	}

	for _, now := range []time.Time{day(2024, 5, 30), day(2024, 6, 3), day(2024, 6, 10)} {
		assert.Equal(t, types.ValidityCheckedOut, validity.Evaluate(cred, entries, now).Status, now)
	}
}

func TestEvaluate_CheckedOutLifecycleWithoutEntries(t *testing.T) {
	cred := juneVisit()
	cred.Lifecycle = types.LifecycleCheckedOut

	r := validity.Evaluate(cred, nil, day(2024, 6, 3))

	assert.Equal(t, types.ValidityCheckedOut, r.Status)
}

func TestEvaluate_IgnoresOtherCredentialsEntries(t *testing.T) {
	entries := []store.LedgerEntry{
		{CredentialID: "someone-else", Action: types.ActionCheckout},
	}

	r := validity.Evaluate(juneVisit(), entries, day(2024, 6, 3))

	assert.Equal(t, types.ValidityActive, r.Status)
}

func TestEvaluate_Deterministic(t *testing.T) {
	cred := juneVisit()
	entries := []store.LedgerEntry{{CredentialID: cred.ID, Action: types.ActionIn}}
	now := day(2024, 6, 2)

	first := validity.Evaluate(cred, entries, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, validity.Evaluate(cred, entries, now))
	}
	assert.Len(t, entries, 1)
}

func TestNotFound(t *testing.T) {
	r := validity.NotFound(day(2024, 6, 2))
	assert.Equal(t, types.ValidityNotFound, r.Status)
}
