package store

import (
	"context"
	"strings"
	"time"

	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

// Visitor is the identity carried on a credential. The access logic never
// interprets these fields.
type Visitor struct {
	FirstName      string
	MiddleName     string
	LastName       string
	Phone          string
	Purpose        string
	IDType         string
	NationalID     string
	PassportNumber string
	BirthDate      *time.Time
	HasPhoto       bool
	TermsAccepted  bool
}

// DisplayName joins the non-empty name parts.
func (v Visitor) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{v.FirstName, v.MiddleName, v.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Window is an inclusive range of calendar dates. Start and End are stored as
// midnight UTC of the civil date they represent.
type Window struct {
	Start time.Time
	End   time.Time
}

// CredentialRecord is the canonical visitor credential.
type CredentialRecord struct {
	ID           string
	Visitor      Visitor
	Window       Window
	Lifecycle    types.Lifecycle
	CheckedOutAt *time.Time
	CreatedAt    time.Time
}

// CredentialFilter selects credentials for the visitor report. Zero values
// disable the corresponding condition.
type CredentialFilter struct {
	From      time.Time // window must end on or after From
	To        time.Time // window must start on or before To
	Lifecycle types.Lifecycle
	Limit     int
}

// CredentialStore holds visitor credentials. Get returns ErrNotFound for an
// unknown id; UpdateLifecycleStatus returns ErrIllegalTransition for anything
// other than Active -> CheckedOut (repeating CheckedOut is a no-op).
type CredentialStore interface {
	Create(ctx context.Context, rec CredentialRecord) error
	Get(ctx context.Context, id string) (CredentialRecord, error)
	UpdateLifecycleStatus(ctx context.Context, id string, status types.Lifecycle, at time.Time) error
	List(ctx context.Context, f CredentialFilter) ([]CredentialRecord, error)
}

// DateOf returns the civil date of t, in t's own location, as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
