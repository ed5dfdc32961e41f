package sqlite_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scango-office/gatepass/server/internal/db"
	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	sqlitestore "github.com/scango-office/gatepass/server/internal/gatepass/store/sqlite"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

// openTestDB returns a migrated in-memory database unique to the test. It is
// closed automatically when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	name := "test_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.OpenDSN(context.Background(), db.MemoryDSN(name))
	require.NoError(t, err, "openTestDB")

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn, closed when the test ends.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedCredential(t *testing.T, cs *sqlitestore.CredentialStore, id string) store.CredentialRecord {
	t.Helper()
	rec := store.CredentialRecord{
		ID:        id,
		Visitor:   store.Visitor{FirstName: "Malee", LastName: "Sukjai", Phone: "0899999999"},
		Window:    store.Window{Start: date(2024, 6, 1), End: date(2024, 6, 5)},
		Lifecycle: types.LifecycleActive,
		CreatedAt: time.Date(2024, 5, 31, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, cs.Create(context.Background(), rec))
	return rec
}
