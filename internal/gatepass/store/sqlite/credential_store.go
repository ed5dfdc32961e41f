package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/scango-office/gatepass/server/internal/db"
	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

const dateLayout = "2006-01-02"

type CredentialStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewCredentialStore(db *sql.DB, writer *dbpkg.Worker) *CredentialStore {
	return &CredentialStore{db: db, writer: writer}
}

const credentialColumns = `
  credential_id, first_name, middle_name, last_name, phone, purpose,
  id_type, national_id, passport_number, birth_date, has_photo, terms_accepted,
  visit_start, visit_end, lifecycle, checked_out_at_ms, created_at_ms`

func (s *CredentialStore) Create(ctx context.Context, rec store.CredentialRecord) error {
	if rec.Lifecycle == "" {
		rec.Lifecycle = types.LifecycleActive
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var birth any
	if rec.Visitor.BirthDate != nil {
		birth = rec.Visitor.BirthDate.Format(dateLayout)
	}
	var checkedOut any
	if rec.CheckedOutAt != nil {
		checkedOut = rec.CheckedOutAt.UTC().UnixMilli()
	}
	v := rec.Visitor

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM credentials WHERE credential_id = ?;`, rec.ID,
		).Scan(&exists)
		if err == nil {
			return store.ErrDuplicate
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("CredentialStore.Create lookup: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO credentials(`+credentialColumns+`
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.ID, v.FirstName, v.MiddleName, v.LastName, v.Phone, v.Purpose,
			v.IDType, v.NationalID, v.PassportNumber, birth, boolInt(v.HasPhoto), boolInt(v.TermsAccepted),
			rec.Window.Start.Format(dateLayout), rec.Window.End.Format(dateLayout),
			string(rec.Lifecycle), checkedOut, rec.CreatedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("CredentialStore.Create insert: %w", err)
		}
		return nil
	})
}

func (s *CredentialStore) Get(ctx context.Context, id string) (store.CredentialRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE credential_id = ?;`, id)
	rec, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.CredentialRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.CredentialRecord{}, fmt.Errorf("CredentialStore.Get: %w", err)
	}
	return rec, nil
}

func (s *CredentialStore) UpdateLifecycleStatus(ctx context.Context, id string, status types.Lifecycle, at time.Time) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT lifecycle FROM credentials WHERE credential_id = ?;`, id,
		).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("CredentialStore.UpdateLifecycleStatus lookup: %w", err)
		}

		from := types.Lifecycle(current)
		if !from.CanTransitionTo(status) {
			return store.ErrIllegalTransition
		}
		if from == status {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE credentials
SET lifecycle = ?,
    checked_out_at_ms = ?
WHERE credential_id = ?;
`, string(status), at.UTC().UnixMilli(), id); err != nil {
			return fmt.Errorf("CredentialStore.UpdateLifecycleStatus update: %w", err)
		}
		return nil
	})
}

func (s *CredentialStore) List(ctx context.Context, f store.CredentialFilter) ([]store.CredentialRecord, error) {
	var (
		where []string
		args  []any
	)
	if !f.From.IsZero() {
		where = append(where, "visit_end >= ?")
		args = append(args, store.DateOf(f.From).Format(dateLayout))
	}
	if !f.To.IsZero() {
		where = append(where, "visit_start <= ?")
		args = append(args, store.DateOf(f.To).Format(dateLayout))
	}
	if f.Lifecycle != "" {
		where = append(where, "lifecycle = ?")
		args = append(args, string(f.Lifecycle))
	}

	q := `SELECT ` + credentialColumns + ` FROM credentials`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at_ms DESC, credential_id ASC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("CredentialStore.List: %w", err)
	}
	defer rows.Close()

	var out []store.CredentialRecord
	for rows.Next() {
		rec, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("CredentialStore.List scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(r rowScanner) (store.CredentialRecord, error) {
	var (
		rec                store.CredentialRecord
		birth              sql.NullString
		hasPhoto, terms    int
		start, end, status string
		checkedOut         sql.NullInt64
		createdMs          int64
	)
	v := &rec.Visitor
	if err := r.Scan(
		&rec.ID, &v.FirstName, &v.MiddleName, &v.LastName, &v.Phone, &v.Purpose,
		&v.IDType, &v.NationalID, &v.PassportNumber, &birth, &hasPhoto, &terms,
		&start, &end, &status, &checkedOut, &createdMs,
	); err != nil {
		return store.CredentialRecord{}, err
	}

	var err error
	if rec.Window.Start, err = time.Parse(dateLayout, start); err != nil {
		return store.CredentialRecord{}, fmt.Errorf("visit_start %q: %w", start, err)
	}
	if rec.Window.End, err = time.Parse(dateLayout, end); err != nil {
		return store.CredentialRecord{}, fmt.Errorf("visit_end %q: %w", end, err)
	}
	if birth.Valid {
		bd, err := time.Parse(dateLayout, birth.String)
		if err != nil {
			return store.CredentialRecord{}, fmt.Errorf("birth_date %q: %w", birth.String, err)
		}
		v.BirthDate = &bd
	}
	if checkedOut.Valid {
		t := time.UnixMilli(checkedOut.Int64).UTC()
		rec.CheckedOutAt = &t
	}
	v.HasPhoto = hasPhoto == 1
	v.TermsAccepted = terms == 1
	rec.Lifecycle = types.Lifecycle(status)
	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	return rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
