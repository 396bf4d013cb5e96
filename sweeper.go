package server

import (
	"context"
	"sync/atomic"
	"time"

	logduel "quickdraw/server/logging/duel"
)

// MaybeSweep runs a sweep pass unless one ran within the throttle window.
// The HTTP layer calls this ahead of normal request handling, so reclamation
// happens opportunistically without a dedicated timer.
func (h *Hub) MaybeSweep(ctx context.Context) {
	now := h.clock.Now()
	last := atomic.LoadInt64(&h.lastSweep)
	if now.UnixNano()-last < int64(sweepInterval) {
		return
	}
	if !atomic.CompareAndSwapInt64(&h.lastSweep, last, now.UnixNano()) {
		return
	}
	h.Sweep(ctx, now)
}

// Sweep prunes aged tracer events in every live room and deletes rooms whose
// scheduled expiry has passed. Safe to run concurrently with room mutation;
// each room is visited under its own lock.
func (h *Hub) Sweep(ctx context.Context, now time.Time) {
	h.roomsMu.RLock()
	live := make([]*DuelRoom, 0, len(h.rooms))
	for _, room := range h.rooms {
		live = append(live, room)
	}
	h.roomsMu.RUnlock()

	var expired []*DuelRoom
	for _, room := range live {
		pruned := room.pruneTraces(now, h.cfg.TracerMaxAge)
		if pruned > 0 {
			h.telemetry.RecordTracersPruned(pruned)
			logduel.RoomSwept(ctx, h.publisher, roomRef(room.ID), logduel.SweepPayload{
				TracersPruned: pruned,
			})
		}
		if room.expired(now) {
			expired = append(expired, room)
		}
	}

	if len(expired) == 0 {
		return
	}

	h.roomsMu.Lock()
	for _, room := range expired {
		delete(h.rooms, room.ID)
	}
	h.roomsMu.Unlock()

	for _, room := range expired {
		h.telemetry.RecordRoomSwept()
		logduel.RoomSwept(ctx, h.publisher, roomRef(room.ID), logduel.SweepPayload{Deleted: true})
	}
}
