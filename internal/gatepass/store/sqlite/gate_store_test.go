package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	sqlitestore "github.com/scango-office/gatepass/server/internal/gatepass/store/sqlite"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

func TestGateStore_UpsertGetMarkSeen(t *testing.T) {
	conn := openTestDB(t)
	gs := sqlitestore.NewGateStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	_, err := gs.Get(ctx, "exit")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, gs.Upsert(ctx, store.GateRecord{
		GateID: "exit", Name: "Exit", BuildingGate: "B", UseFor: types.ActionCheckout, Enabled: true,
	}))

	seen := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	require.NoError(t, gs.MarkSeen(ctx, "exit", seen))
	require.NoError(t, gs.MarkSeen(ctx, "unknown", seen))

	got, err := gs.Get(ctx, "exit")
	require.NoError(t, err)
	assert.Equal(t, store.GateRecord{
		GateID: "exit", Name: "Exit", BuildingGate: "B", UseFor: types.ActionCheckout, Enabled: true, LastSeen: seen,
	}, got)

	assert.Error(t, gs.Upsert(ctx, store.GateRecord{GateID: "bad", UseFor: "Sideways"}))
}
