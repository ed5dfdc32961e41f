package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

// ErrValidation wraps every registration input failure. The wrapped message is
// safe to show to the visitor.
var ErrValidation = errors.New("validation error")

const (
	dateLayout = "2006-01-02"

	IDTypeNationalID = "national_id"
	IDTypePassport   = "passport"

	maxReportRows = 1000
)

var namePattern = regexp.MustCompile(`^[a-zA-Zก-๙ ]+$`)

type RegistrationPolicy struct {
	// RequireStartToday restricts new credentials to visits starting on the
	// registration date. When false any window that has not already ended is accepted.
	RequireStartToday bool
}

// Registrar creates visitor credentials and serves the visitor report.
type Registrar struct {
	creds  store.CredentialStore
	policy RegistrationPolicy
}

func NewRegistrar(creds store.CredentialStore, policy RegistrationPolicy) *Registrar {
	return &Registrar{creds: creds, policy: policy}
}

// Registration is a created credential plus the payload to encode in its QR code.
type Registration struct {
	Credential store.CredentialRecord
	QRPayload  string
}

// Register validates the form, persists an Active credential and builds its
// QR payload. now supplies both the creation time and "today".
func (r *Registrar) Register(ctx context.Context, req types.RegisterRequest, now time.Time) (Registration, error) {
	visitor, window, err := r.validate(req, now)
	if err != nil {
		return Registration{}, err
	}

	rec := store.CredentialRecord{
		ID:        uuid.NewString(),
		Visitor:   visitor,
		Window:    window,
		Lifecycle: types.LifecycleActive,
		CreatedAt: now.UTC(),
	}
	if err := r.creds.Create(ctx, rec); err != nil {
		return Registration{}, fmt.Errorf("Registrar.Register: %w", err)
	}

	payload, err := qrPayload(rec, now)
	if err != nil {
		return Registration{}, fmt.Errorf("Registrar.Register: qr payload: %w", err)
	}
	return Registration{Credential: rec, QRPayload: payload}, nil
}

// Report lists credentials whose visit window overlaps the filter range,
// newest first. The row count is capped.
func (r *Registrar) Report(ctx context.Context, f store.CredentialFilter) ([]store.CredentialRecord, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, fmt.Errorf("%w: to must not be before from", ErrValidation)
	}
	if f.Lifecycle != "" && !f.Lifecycle.Valid() {
		return nil, fmt.Errorf("%w: unknown lifecycle %q", ErrValidation, f.Lifecycle)
	}
	if f.Limit <= 0 || f.Limit > maxReportRows {
		f.Limit = maxReportRows
	}
	recs, err := r.creds.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("Registrar.Report: %w", err)
	}
	if recs == nil {
		return []store.CredentialRecord{}, nil
	}
	return recs, nil
}

func (r *Registrar) validate(req types.RegisterRequest, now time.Time) (store.Visitor, store.Window, error) {
	v := store.Visitor{
		Phone:    strings.TrimSpace(req.Phone),
		Purpose:  strings.TrimSpace(req.Purpose),
		HasPhoto: req.HasPhoto,
	}
	if req.TermsAccepted != nil {
		v.TermsAccepted = *req.TermsAccepted
	}

	var err error
	if v.FirstName, err = cleanName("first_name", req.FirstName, true); err != nil {
		return store.Visitor{}, store.Window{}, err
	}
	if v.MiddleName, err = cleanName("middle_name", req.MiddleName, false); err != nil {
		return store.Visitor{}, store.Window{}, err
	}
	if v.LastName, err = cleanName("last_name", req.LastName, false); err != nil {
		return store.Visitor{}, store.Window{}, err
	}

	switch strings.TrimSpace(req.IDType) {
	case "":
	case IDTypeNationalID:
		v.IDType = IDTypeNationalID
		id := strings.NewReplacer("-", "", " ", "").Replace(req.NationalID)
		if !ValidThaiNationalID(id) {
			return store.Visitor{}, store.Window{}, fmt.Errorf("%w: national_id must be 13 digits with a valid check digit", ErrValidation)
		}
		v.NationalID = id
	case IDTypePassport:
		v.IDType = IDTypePassport
		v.PassportNumber = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(req.PassportNumber), " ", ""))
		if v.PassportNumber == "" {
			return store.Visitor{}, store.Window{}, fmt.Errorf("%w: passport_number is required", ErrValidation)
		}
	default:
		return store.Visitor{}, store.Window{}, fmt.Errorf("%w: id_type must be national_id or passport", ErrValidation)
	}

	today := store.DateOf(now)

	if strings.TrimSpace(req.BirthDate) != "" {
		bd, err := ParseDate(req.BirthDate)
		if err != nil {
			return store.Visitor{}, store.Window{}, fmt.Errorf("%w: birth_date: %v", ErrValidation, err)
		}
		if bd.After(today) {
			return store.Visitor{}, store.Window{}, fmt.Errorf("%w: birth_date must not be in the future", ErrValidation)
		}
		v.BirthDate = &bd
	}

	if v.HasPhoto && !v.TermsAccepted {
		return store.Visitor{}, store.Window{}, fmt.Errorf("%w: terms must be accepted", ErrValidation)
	}

	start, err := ParseDate(req.VisitStart)
	if err != nil {
		return store.Visitor{}, store.Window{}, fmt.Errorf("%w: visit_start: %v", ErrValidation, err)
	}
	end, err := ParseDate(req.VisitEnd)
	if err != nil {
		return store.Visitor{}, store.Window{}, fmt.Errorf("%w: visit_end: %v", ErrValidation, err)
	}
	if end.Before(start) {
		return store.Visitor{}, store.Window{}, fmt.Errorf("%w: visit_end must not be before visit_start", ErrValidation)
	}
	if r.policy.RequireStartToday && !start.Equal(today) {
		return store.Visitor{}, store.Window{}, fmt.Errorf("%w: visit_start must be today (%s)", ErrValidation, today.Format(dateLayout))
	}
	if end.Before(today) {
		return store.Visitor{}, store.Window{}, fmt.Errorf("%w: visit window has already ended", ErrValidation)
	}

	return v, store.Window{Start: start, End: end}, nil
}

// cleanName trims the value and checks it holds only Thai or Latin letters
// separated by single spaces.
func cleanName(field, value string, required bool) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if required {
			return "", fmt.Errorf("%w: %s is required", ErrValidation, field)
		}
		return "", nil
	}
	if !namePattern.MatchString(value) {
		return "", fmt.Errorf("%w: %s may contain only Thai or English letters", ErrValidation, field)
	}
	if strings.Contains(value, "  ") {
		return "", fmt.Errorf("%w: %s must not contain repeated spaces", ErrValidation, field)
	}
	return value, nil
}

// ValidThaiNationalID checks length, digits and the mod-11 check digit.
func ValidThaiNationalID(id string) bool {
	if len(id) != 13 {
		return false
	}
	sum := 0
	for i := 0; i < 13; i++ {
		c := id[i]
		if c < '0' || c > '9' {
			return false
		}
		if i < 12 {
			sum += int(c-'0') * (13 - i)
		}
	}
	check := (11 - sum%11) % 10
	return int(id[12]-'0') == check
}

// ParseDate parses a YYYY-MM-DD calendar date into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return t, nil
}

func qrPayload(rec store.CredentialRecord, now time.Time) (string, error) {
	name := strings.TrimSpace(rec.Visitor.FirstName + " " + rec.Visitor.LastName)
	days := int(rec.Window.End.Sub(rec.Window.Start).Hours()/24) + 1

	b, err := json.Marshal(struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Phone     string `json:"phone"`
		Purpose   string `json:"purpose"`
		Start     string `json:"start"`
		End       string `json:"end"`
		Days      int    `json:"days"`
		Generated string `json:"gen"`
		Status    string `json:"status"`
	}{
		ID:        rec.ID,
		Name:      name,
		Phone:     rec.Visitor.Phone,
		Purpose:   rec.Visitor.Purpose,
		Start:     rec.Window.Start.Format(dateLayout),
		End:       rec.Window.End.Format(dateLayout),
		Days:      days,
		Generated: now.Format("2006-01-02 15:04:05"),
		Status:    string(rec.Lifecycle),
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
