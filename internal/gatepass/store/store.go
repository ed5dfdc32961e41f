package store

import (
	"context"
	"errors"
	"time"

	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrCredentialClosed  = errors.New("credential already checked out")
	ErrIllegalTransition = errors.New("illegal lifecycle transition")
	ErrDuplicate         = errors.New("duplicate id")
)

type HeartbeatRecord struct {
	ReceivedAt time.Time
	Request    types.HeartbeatRequest
}

// PruneCounts maps a gate id to the number of heartbeats removed for it.
type PruneCounts map[string]int64

func (c PruneCounts) Total() int64 {
	var n int64
	for _, v := range c {
		n += v
	}
	return n
}

// HeartbeatStore keeps gate heartbeats. PruneOlderThan never returns a nil map.
type HeartbeatStore interface {
	UpsertHeartbeat(ctx context.Context, gateID string, rec HeartbeatRecord) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (PruneCounts, error)
}
