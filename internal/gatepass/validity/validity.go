// Package validity decides whether a visitor credential is usable at a given
// moment. It has no side effects and reads nothing but its arguments.
package validity

import (
	"time"

	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

// Result is the evaluated state of a credential plus the day counts shown on
// the gate status screen.
type Result struct {
	Status types.Validity
	Today  time.Time // civil date the evaluation used, midnight UTC

	TotalDays      int // inclusive length of the visit window
	DaysUntilStart int // > 0 only when NotStarted
	DaysRemaining  int // inclusive days left, > 0 only when Active
	DaysSinceEnd   int // > 0 only when Expired
}

// NotFound is the result callers report when a credential id does not resolve.
func NotFound(now time.Time) Result {
	return Result{Status: types.ValidityNotFound, Today: store.DateOf(now)}
}

// Evaluate computes the validity of cred at now. entries must be the ledger
// history of cred; entries for other credentials are ignored.
//
// A checkout, recorded either in the ledger or on the credential, wins over any
// window state. The window is compared by calendar date only, using the date of
// now in now's location.
func Evaluate(cred store.CredentialRecord, entries []store.LedgerEntry, now time.Time) Result {
	today := store.DateOf(now)
	start := store.DateOf(cred.Window.Start)
	end := store.DateOf(cred.Window.End)

	r := Result{
		Today:     today,
		TotalDays: daysBetween(start, end) + 1,
	}

	if checkedOut(cred, entries) {
		r.Status = types.ValidityCheckedOut
		return r
	}

	switch {
	case today.Before(start):
		r.Status = types.ValidityNotStarted
		r.DaysUntilStart = daysBetween(today, start)
	case today.After(end):
		r.Status = types.ValidityExpired
		r.DaysSinceEnd = daysBetween(end, today)
	default:
		r.Status = types.ValidityActive
		r.DaysRemaining = daysBetween(today, end) + 1
	}
	return r
}

func checkedOut(cred store.CredentialRecord, entries []store.LedgerEntry) bool {
	if cred.Lifecycle == types.LifecycleCheckedOut {
		return true
	}
	for _, e := range entries {
		if e.CredentialID == cred.ID && e.Action == types.ActionCheckout {
			return true
		}
	}
	return false
}

// daysBetween counts whole days from a to b. Both must be midnight UTC.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
