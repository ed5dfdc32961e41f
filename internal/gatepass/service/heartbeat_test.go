package service_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scango-office/gatepass/server/internal/gatepass/service"
	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	"github.com/scango-office/gatepass/server/internal/gatepass/store/memory"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHeartbeatService_KnownGate(t *testing.T) {
	hs := memory.New()
	gates := memory.NewGateStore([]string{"gate-a"})
	svc := service.NewHeartbeatService(hs, service.NewGateRegistry(gates))

	resp, err := svc.Record(context.Background(), types.HeartbeatRequest{
		GateID:          " gate-a ",
		FirmwareVersion: "1.4.2",
		UptimeSeconds:   3600,
	})
	require.NoError(t, err)

	assert.True(t, resp.OK)
	assert.True(t, resp.Known)
	assert.Equal(t, "gate-a", resp.GateID)
	assert.NotEmpty(t, resp.ServerTime)

	rec, ok := hs.Latest("gate-a")
	require.True(t, ok)
	assert.Equal(t, "1.4.2", rec.Request.FirmwareVersion)

	g, err := gates.Get(context.Background(), "gate-a")
	require.NoError(t, err)
	assert.False(t, g.LastSeen.IsZero())
}

func TestHeartbeatService_UnknownGateStillRecorded(t *testing.T) {
	hs := memory.New()
	svc := service.NewHeartbeatService(hs, service.NewGateRegistry(memory.NewGateStore(nil)))

	resp, err := svc.Record(context.Background(), types.HeartbeatRequest{GateID: "new-scanner"})
	require.NoError(t, err)

	assert.True(t, resp.OK)
	assert.False(t, resp.Known)
	_, ok := hs.Latest("new-scanner")
	assert.True(t, ok)
}

func TestHeartbeatService_MissingGateID(t *testing.T) {
	svc := service.NewHeartbeatService(memory.New(), service.NewGateRegistry(memory.NewGateStore(nil)))

	_, err := svc.Record(context.Background(), types.HeartbeatRequest{})

	assert.ErrorIs(t, err, service.ErrInvalidGateID)
}

func TestHeartbeatPruner_DisabledWhenRetentionZero(t *testing.T) {
	pruner := service.NewHeartbeatPruner(memory.New(), service.PrunerConfig{
		RetentionDays: 0,
		IntervalHours: 1,
	}, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pruner.Start(ctx)
	pruner.Stop()
}

func TestHeartbeatPruner_PrunesOnStart(t *testing.T) {
	ms := memory.New()
	ctx := context.Background()

	require.NoError(t, ms.UpsertHeartbeat(ctx, "gate-old", store.HeartbeatRecord{
		ReceivedAt: time.Now().UTC().AddDate(0, 0, -40),
		Request:    types.HeartbeatRequest{GateID: "gate-old"},
	}))
	require.NoError(t, ms.UpsertHeartbeat(ctx, "gate-recent", store.HeartbeatRecord{
		ReceivedAt: time.Now().UTC().AddDate(0, 0, -1),
		Request:    types.HeartbeatRequest{GateID: "gate-recent"},
	}))

	pruner := service.NewHeartbeatPruner(ms, service.PrunerConfig{
		RetentionDays: 30,
		IntervalHours: 1,
	}, silentLogger())
	pruner.Start(ctx)

	assert.Eventually(t, func() bool {
		_, ok := ms.Latest("gate-old")
		return !ok
	}, time.Second, 10*time.Millisecond)
	pruner.Stop()

	_, ok := ms.Latest("gate-recent")
	assert.True(t, ok)
}

func TestHeartbeatPruner_StopIsIdempotent(t *testing.T) {
	pruner := service.NewHeartbeatPruner(memory.New(), service.PrunerConfig{
		RetentionDays: 30,
		IntervalHours: 1,
	}, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	pruner.Start(ctx)

	cancel()
	pruner.Stop()
	pruner.Stop()
}

func TestHeartbeatPruner_PruneOnceUsesClockAndCountsPerGate(t *testing.T) {
	ms := memory.New()
	ctx := context.Background()
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	for _, hb := range []struct {
		gate string
		age  int
	}{{"gate-a", 40}, {"gate-a", 31}, {"gate-b", 45}, {"gate-b", 2}} {
		require.NoError(t, ms.UpsertHeartbeat(ctx, hb.gate, store.HeartbeatRecord{
			ReceivedAt: now.AddDate(0, 0, -hb.age),
			Request:    types.HeartbeatRequest{GateID: hb.gate},
		}))
	}

	pruner := service.NewHeartbeatPruner(ms, service.PrunerConfig{
		RetentionDays: 30,
		Now:           func() time.Time { return now },
	}, silentLogger())

	counts, err := pruner.PruneOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, store.PruneCounts{"gate-a": 2, "gate-b": 1}, counts)
	_, ok := ms.Latest("gate-a")
	assert.False(t, ok)
	_, ok = ms.Latest("gate-b")
	assert.True(t, ok)
}

func TestHeartbeatPruner_LogsPerGate(t *testing.T) {
	ms := memory.New()
	ctx := context.Background()
	require.NoError(t, ms.UpsertHeartbeat(ctx, "gate-old", store.HeartbeatRecord{
		ReceivedAt: time.Now().UTC().AddDate(0, 0, -90),
	}))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	pruner := service.NewHeartbeatPruner(ms, service.PrunerConfig{RetentionDays: 30}, logger)

	pruner.Start(ctx)
	pruner.Start(ctx)
	assert.Eventually(t, func() bool {
		_, ok := ms.Latest("gate-old")
		return !ok
	}, time.Second, 10*time.Millisecond)
	pruner.Stop()

	out := logs.String()
	assert.Contains(t, out, "gate_id=gate-old")
	assert.Contains(t, out, "msg=pruned")
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("msg=started")))
}
