package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/scango-office/gatepass/server/internal/db"
	"github.com/scango-office/gatepass/server/internal/gatepass/store"
)

type HeartbeatStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewHeartbeatStore(db *sql.DB, writer *dbpkg.Worker) *HeartbeatStore {
	return &HeartbeatStore{db: db, writer: writer}
}

// UpsertHeartbeat appends a heartbeat row and refreshes the gate snapshot.
func (s *HeartbeatStore) UpsertHeartbeat(ctx context.Context, gateID string, rec store.HeartbeatRecord) error {
	gateID = strings.TrimSpace(gateID)
	if gateID == "" {
		return nil
	}

	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	recvMs := rec.ReceivedAt.UTC().UnixMilli()

	fw := strings.TrimSpace(rec.Request.FirmwareVersion)
	ip := strings.TrimSpace(rec.Request.IP)

	var uptimeMs any
	if rec.Request.UptimeSeconds != 0 {
		uptimeMs = int64(rec.Request.UptimeSeconds) * 1000
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureGate(ctx, tx, gateID, recvMs); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO gate_heartbeats(
  gate_id, received_at_ms, uptime_ms, fw_version, ip
) VALUES (?, ?, ?, ?, ?);
`, gateID, recvMs, uptimeMs, fw, ip); err != nil {
			return fmt.Errorf("UpsertHeartbeat insert heartbeat: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE gates
SET last_seen_at_ms = ?,
    last_ip = ?,
    last_fw_version = ?,
    updated_at_ms = ?
WHERE gate_id = ?;
`, recvMs, ip, fw, recvMs, gateID); err != nil {
			return fmt.Errorf("UpsertHeartbeat update gate snapshot: %w", err)
		}

		return nil
	})
}

// PruneOlderThan deletes heartbeat rows received before cutoff and returns the
// count removed per gate. The access ledger is not touched.
func (s *HeartbeatStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (store.PruneCounts, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	counts := store.PruneCounts{}
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
SELECT gate_id, COUNT(*) FROM gate_heartbeats
WHERE received_at_ms < ?
GROUP BY gate_id;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan count: %w", err)
		}
		for rows.Next() {
			var (
				gateID string
				n      int64
			)
			if err := rows.Scan(&gateID, &n); err != nil {
				rows.Close()
				return fmt.Errorf("PruneOlderThan scan: %w", err)
			}
			counts[gateID] = n
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("PruneOlderThan rows: %w", err)
		}
		rows.Close()

		if len(counts) == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
DELETE FROM gate_heartbeats
WHERE received_at_ms < ?;
`, cutoffMs); err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.PruneCounts{}, err
	}
	return counts, nil
}
