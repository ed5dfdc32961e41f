package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type SeedDevOptions struct {
	// KnownGates are pre-created as enabled pairing gates.
	KnownGates []string
}

// SeedDev inserts a starter gate set for local development: one gate per
// fixed action plus any configured known gates.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	starter := []struct {
		id, name, building, useFor string
	}{
		{"gate-lobby-in", "Lobby entrance", "A", "In"},
		{"gate-lobby-out", "Lobby exit", "A", "Out"},
		{"kiosk-status", "Reception kiosk", "A", "CheckStatus"},
		{"gate-checkout", "Visitor checkout", "A", "Checkout"},
	}
	for _, g := range starter {
		if err := upsertGate(ctx, db, g.id, g.name, g.building, g.useFor, now); err != nil {
			return err
		}
	}

	for _, id := range opt.KnownGates {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if err := upsertGate(ctx, db, id, id, "", "", now); err != nil {
			return err
		}
	}

	return nil
}

func upsertGate(ctx context.Context, db *sql.DB, id, name, building, useFor string, nowMs int64) error {
	if _, err := db.ExecContext(ctx, `
INSERT INTO gates(
  gate_id, name, building_gate, use_for, enabled, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, 1, ?, ?)
ON CONFLICT(gate_id) DO UPDATE SET
  name = excluded.name,
  building_gate = excluded.building_gate,
  use_for = excluded.use_for,
  enabled = 1,
  updated_at_ms = excluded.updated_at_ms;
`, id, name, building, useFor, nowMs, nowMs); err != nil {
		return fmt.Errorf("seed gate %s: %w", id, err)
	}
	return nil
}
