package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/scango-office/gatepass/server/internal/db"
	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

type GateStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewGateStore(db *sql.DB, writer *dbpkg.Worker) *GateStore {
	return &GateStore{db: db, writer: writer}
}

func (s *GateStore) Get(ctx context.Context, gateID string) (store.GateRecord, error) {
	var (
		rec      store.GateRecord
		useFor   string
		enabled  int
		lastSeen sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT gate_id, name, building_gate, use_for, enabled, last_seen_at_ms
FROM gates WHERE gate_id = ?;
`, gateID).Scan(&rec.GateID, &rec.Name, &rec.BuildingGate, &useFor, &enabled, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return store.GateRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.GateRecord{}, fmt.Errorf("GateStore.Get: %w", err)
	}
	rec.UseFor = types.Action(useFor)
	rec.Enabled = enabled == 1
	if lastSeen.Valid {
		rec.LastSeen = time.UnixMilli(lastSeen.Int64).UTC()
	}
	return rec, nil
}

// MarkSeen updates last_seen for a registered gate. Unknown gates are ignored.
func (s *GateStore) MarkSeen(ctx context.Context, gateID string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE gates SET last_seen_at_ms = ?, updated_at_ms = ? WHERE gate_id = ?;
`, ms, ms, gateID); err != nil {
			return fmt.Errorf("GateStore.MarkSeen: %w", err)
		}
		return nil
	})
}

// Upsert inserts or replaces gate master data.
func (s *GateStore) Upsert(ctx context.Context, rec store.GateRecord) error {
	if rec.UseFor != "" && !rec.UseFor.Valid() {
		return fmt.Errorf("GateStore.Upsert: invalid use_for %q", rec.UseFor)
	}
	now := time.Now().UTC().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO gates(
  gate_id, name, building_gate, use_for, enabled, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(gate_id) DO UPDATE SET
  name = excluded.name,
  building_gate = excluded.building_gate,
  use_for = excluded.use_for,
  enabled = excluded.enabled,
  updated_at_ms = excluded.updated_at_ms;
`, rec.GateID, rec.Name, rec.BuildingGate, string(rec.UseFor), boolInt(rec.Enabled), now, now); err != nil {
			return fmt.Errorf("GateStore.Upsert: %w", err)
		}
		return nil
	})
}
