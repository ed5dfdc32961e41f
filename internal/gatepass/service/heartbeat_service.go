package service

import (
	"context"
	"strings"
	"time"

	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

// HeartbeatService records liveness pings from gate machines. Heartbeats are
// accepted from unknown gates too so a newly installed scanner shows up before
// it is enabled.
type HeartbeatService struct {
	heartbeatStore store.HeartbeatStore
	registry       *GateRegistry
}

func NewHeartbeatService(hs store.HeartbeatStore, reg *GateRegistry) *HeartbeatService {
	return &HeartbeatService{heartbeatStore: hs, registry: reg}
}

func (s *HeartbeatService) Record(ctx context.Context, req types.HeartbeatRequest) (types.HeartbeatResponse, error) {
	gateID := strings.TrimSpace(req.GateID)
	if gateID == "" {
		return types.HeartbeatResponse{}, ErrInvalidGateID
	}

	known, err := s.registry.IsKnown(ctx, gateID)
	if err != nil {
		return types.HeartbeatResponse{}, err
	}
	_ = s.registry.NoteSeen(ctx, gateID)

	now := time.Now().UTC()
	rec := store.HeartbeatRecord{
		ReceivedAt: now,
		Request:    req,
	}

	if err := s.heartbeatStore.UpsertHeartbeat(ctx, gateID, rec); err != nil {
		return types.HeartbeatResponse{}, err
	}

	return types.HeartbeatResponse{
		OK:         true,
		Known:      known,
		GateID:     gateID,
		ServerTime: now.Format(time.RFC3339Nano),
	}, nil
}
