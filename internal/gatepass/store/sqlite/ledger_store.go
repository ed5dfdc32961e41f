package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	dbpkg "github.com/scango-office/gatepass/server/internal/db"
	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

// LedgerStore is the append-only access ledger. Writes go through the
// single-writer worker, so the closed-credential check and the insert happen
// in one serialized transaction. The partial unique index on Checkout rows
// backs this up at the schema level.
type LedgerStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewLedgerStore(db *sql.DB, writer *dbpkg.Worker) *LedgerStore {
	return &LedgerStore{db: db, writer: writer}
}

const ledgerColumns = `
  seq, entry_id, credential_id, gate_id, building_gate, action,
  scanned_at_ms, actor, visitor_name`

func (s *LedgerStore) Append(ctx context.Context, e store.LedgerEntry) (store.LedgerEntry, error) {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.ScannedAt.IsZero() {
		e.ScannedAt = time.Now().UTC()
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var closed int
		err := tx.QueryRowContext(ctx, `
SELECT 1 FROM access_ledger
WHERE credential_id = ? AND action = 'Checkout'
LIMIT 1;
`, e.CredentialID).Scan(&closed)
		if err == nil {
			return store.ErrCredentialClosed
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("LedgerStore.Append check closed: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO access_ledger(
  entry_id, credential_id, gate_id, building_gate, action,
  scanned_at_ms, actor, visitor_name
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			e.ID, e.CredentialID, e.GateID, e.BuildingGate, string(e.Action),
			e.ScannedAt.UTC().UnixMilli(), e.Actor, e.VisitorName,
		)
		if err != nil {
			return fmt.Errorf("LedgerStore.Append insert: %w", err)
		}
		if e.Seq, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("LedgerStore.Append seq: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.LedgerEntry{}, err
	}
	e.ScannedAt = time.UnixMilli(e.ScannedAt.UTC().UnixMilli()).UTC()
	return e, nil
}

func (s *LedgerStore) ListByCredential(ctx context.Context, credentialID string) ([]store.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM access_ledger WHERE credential_id = ? ORDER BY seq ASC;`,
		credentialID)
	if err != nil {
		return nil, fmt.Errorf("LedgerStore.ListByCredential: %w", err)
	}
	defer rows.Close()

	out := []store.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("LedgerStore.ListByCredential scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *LedgerStore) LastDirectionByCredentialAndGate(ctx context.Context, credentialID, gateID string) (store.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+ledgerColumns+` FROM access_ledger
WHERE credential_id = ? AND gate_id = ? AND action IN ('In', 'Out')
ORDER BY seq DESC
LIMIT 1;
`, credentialID, gateID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.LedgerEntry{}, store.ErrNotFound
	}
	if err != nil {
		return store.LedgerEntry{}, fmt.Errorf("LedgerStore.LastDirectionByCredentialAndGate: %w", err)
	}
	return e, nil
}

func scanEntry(r rowScanner) (store.LedgerEntry, error) {
	var (
		e         store.LedgerEntry
		action    string
		scannedMs int64
	)
	if err := r.Scan(
		&e.Seq, &e.ID, &e.CredentialID, &e.GateID, &e.BuildingGate, &action,
		&scannedMs, &e.Actor, &e.VisitorName,
	); err != nil {
		return store.LedgerEntry{}, err
	}
	e.Action = types.Action(action)
	e.ScannedAt = time.UnixMilli(scannedMs).UTC()
	return e, nil
}
