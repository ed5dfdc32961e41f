package types

import (
	"fmt"
	"strings"
)

// Action is what a gate scan asks to do with a credential.
type Action string

const (
	ActionIn          Action = "In"
	ActionOut         Action = "Out"
	ActionCheckStatus Action = "CheckStatus"
	ActionCheckout    Action = "Checkout"
)

// Directional reports whether the action moves the visitor across a gate.
func (a Action) Directional() bool {
	return a == ActionIn || a == ActionOut
}

// Mutates reports whether a successful scan with this action writes to the ledger
// on the primary scan path.
func (a Action) Mutates() bool {
	return a == ActionIn || a == ActionOut || a == ActionCheckout
}

func (a Action) Valid() bool {
	switch a {
	case ActionIn, ActionOut, ActionCheckStatus, ActionCheckout:
		return true
	}
	return false
}

// Opposite returns the other direction. Non-directional actions map to In,
// matching "no known side" being treated as outside.
func (a Action) Opposite() Action {
	if a == ActionIn {
		return ActionOut
	}
	return ActionIn
}

// ParseAction accepts the canonical names plus the aliases gate firmware and the
// legacy kiosk pages send. "check_out" is a direction; "checkout" is terminal.
func ParseAction(s string) (Action, error) {
	raw := strings.TrimSpace(s)
	switch raw {
	case "เข้า":
		return ActionIn, nil
	case "ออก":
		return ActionOut, nil
	}

	switch strings.ToLower(raw) {
	case "in", "check_in", "checkin":
		return ActionIn, nil
	case "out", "check_out":
		return ActionOut, nil
	case "checkstatus", "check_status", "status":
		return ActionCheckStatus, nil
	case "checkout":
		return ActionCheckout, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Validity is the evaluated usability of a credential at a point in time.
type Validity string

const (
	ValidityActive     Validity = "active"
	ValidityNotStarted Validity = "not_started"
	ValidityExpired    Validity = "expired"
	ValidityCheckedOut Validity = "checked_out"
	ValidityNotFound   Validity = "not_found"
)

// Lifecycle is the stored lifecycle of a credential. The only legal transition
// is Active -> CheckedOut.
type Lifecycle string

const (
	LifecycleActive     Lifecycle = "active"
	LifecycleCheckedOut Lifecycle = "checked_out"
)

func (l Lifecycle) Valid() bool {
	return l == LifecycleActive || l == LifecycleCheckedOut
}

// CanTransitionTo reports whether moving from l to next is allowed.
// Re-applying CheckedOut is reported as allowed so callers can treat it as a no-op.
func (l Lifecycle) CanTransitionTo(next Lifecycle) bool {
	switch {
	case l == next:
		return l == LifecycleCheckedOut
	case l == LifecycleActive && next == LifecycleCheckedOut:
		return true
	}
	return false
}
