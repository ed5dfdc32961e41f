package db_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scango-office/gatepass/server/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenDSN(context.Background(), db.MemoryDSN("db_"+t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func tableExists(t *testing.T, conn *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := conn.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestMigrations_UpAndDown(t *testing.T) {
	conn := openTestDB(t)
	tables := []string{"gates", "credentials", "access_ledger", "gate_heartbeats"}

	for _, table := range tables {
		assert.True(t, tableExists(t, conn, table), table)
	}

	p, err := db.NewMigrationProvider(conn)
	require.NoError(t, err)
	_, err = p.DownTo(context.Background(), 0)
	require.NoError(t, err)

	for _, table := range tables {
		assert.False(t, tableExists(t, conn, table), table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	conn := openTestDB(t)

	assert.NoError(t, db.Migrate(context.Background(), conn))
}

func TestLedger_AppendOnlyTriggers(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	_, err := conn.ExecContext(ctx, `
INSERT INTO credentials(credential_id, first_name, visit_start, visit_end, created_at_ms)
VALUES ('c1', 'A', '2024-06-01', '2024-06-05', 0);`)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `
INSERT INTO access_ledger(entry_id, credential_id, gate_id, action, scanned_at_ms)
VALUES ('e1', 'c1', 'gate-a', 'In', 0);`)
	require.NoError(t, err)

	_, err = conn.ExecContext(ctx, `UPDATE access_ledger SET action = 'Out'`)
	assert.Error(t, err)
	_, err = conn.ExecContext(ctx, `DELETE FROM access_ledger`)
	assert.Error(t, err)
}

func TestLedger_OneCheckoutPerCredential(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	_, err := conn.ExecContext(ctx, `
INSERT INTO credentials(credential_id, first_name, visit_start, visit_end, created_at_ms)
VALUES ('c1', 'A', '2024-06-01', '2024-06-05', 0);`)
	require.NoError(t, err)

	insert := `INSERT INTO access_ledger(entry_id, credential_id, gate_id, action, scanned_at_ms) VALUES (?, 'c1', 'gate-a', 'Checkout', 0)`
	_, err = conn.ExecContext(ctx, insert, "e1")
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, insert, "e2")
	assert.Error(t, err)
}

func TestSeedDev(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SeedDev(ctx, conn, db.SeedDevOptions{KnownGates: []string{"gate-7", " "}}))
	require.NoError(t, db.SeedDev(ctx, conn, db.SeedDevOptions{KnownGates: []string{"gate-7"}}))

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM gates WHERE enabled = 1`).Scan(&n))
	assert.Equal(t, 5, n)

	var useFor string
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT use_for FROM gates WHERE gate_id = 'gate-checkout'`).Scan(&useFor))
	assert.Equal(t, "Checkout", useFor)
}

func TestWorker_SerializesAndRollsBack(t *testing.T) {
	conn := openTestDB(t)
	w := db.NewWorker(conn)
	defer w.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
				_, err := tx.ExecContext(ctx, `
INSERT INTO gates(gate_id, created_at_ms, updated_at_ms)
SELECT 'g' || (COUNT(*) + 1), 0, 0 FROM gates;`)
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	boom := errors.New("boom")
	err := w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM gates`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM gates`).Scan(&n))
	assert.Equal(t, 20, n)
}

func TestWorker_ClosedRejectsJobs(t *testing.T) {
	conn := openTestDB(t)
	w := db.NewWorker(conn)
	w.Close()
	w.Close()

	err := w.Do(context.Background(), func(context.Context, *sql.Tx) error { return nil })

	assert.ErrorIs(t, err, db.ErrWorkerClosed)
}
