package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TraceEvent is a short-lived visual record of a projectile or attack path.
type TraceEvent struct {
	Origin int64   `json:"origin"`
	Kind   string  `json:"kind"`
	X1     float64 `json:"x1"`
	Y1     float64 `json:"y1"`
	X2     float64 `json:"x2"`
	Y2     float64 `json:"y2"`
	At     int64   `json:"at"`

	at time.Time
}

// DuelRoom is the authoritative shared state of one two-player match. All
// mutable fields are guarded by mu; the identifying fields are immutable
// after creation.
type DuelRoom struct {
	ID      string
	Mode    string
	World   WorldID
	Players [2]int64

	mu        sync.Mutex
	live      map[int64]*playerSnapshot
	identity  map[int64]*identitySnapshot
	escorts   map[int64][]EscortRef
	quarters  map[int64]int
	cursors   map[int64]time.Time
	round     Round
	tracers   []TraceEvent
	expiresAt time.Time
}

func newDuelRoom(mode string, world WorldID, first, second int64, bestOf int, now time.Time) *DuelRoom {
	room := &DuelRoom{
		ID:       uuid.NewString(),
		Mode:     mode,
		World:    world,
		Players:  [2]int64{first, second},
		live:     make(map[int64]*playerSnapshot, 2),
		identity: make(map[int64]*identitySnapshot, 2),
		escorts:  make(map[int64][]EscortRef, 2),
		quarters: map[int64]int{
			first:  fullQuarterHealth,
			second: fullQuarterHealth,
		},
		cursors: map[int64]time.Time{
			first:  now,
			second: now,
		},
		round: newRound(bestOf),
	}
	return room
}

func (r *DuelRoom) isMember(uid int64) bool {
	return r.Players[0] == uid || r.Players[1] == uid
}

func (r *DuelRoom) opponentOf(uid int64) (int64, bool) {
	switch uid {
	case r.Players[0]:
		return r.Players[1], true
	case r.Players[1]:
		return r.Players[0], true
	default:
		return 0, false
	}
}

// submit upserts uid's live snapshot and records the identity snapshot the
// first time it is seen.
func (r *DuelRoom) submit(uid int64, username string, snap playerSnapshot, appearance Appearance, escort []EscortRef) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := snap
	copied.Inventory = append([]ItemStack(nil), snap.Inventory...)
	r.live[uid] = &copied

	if _, seen := r.identity[uid]; !seen {
		r.identity[uid] = &identitySnapshot{Username: username, Appearance: appearance}
	}

	r.escorts[uid] = truncateEscort(escort)
}

// appendTrace records a tracer with a server timestamp, dropping the oldest
// entry once the ring is full.
func (r *DuelRoom) appendTrace(event TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracers = append(r.tracers, event)
	if overflow := len(r.tracers) - tracerBufferCap; overflow > 0 {
		r.tracers = append(r.tracers[:0], r.tracers[overflow:]...)
	}
}

// pullView is one atomic read of everything a puller needs.
type pullView struct {
	opponent     *playerSnapshot
	oppIdentity  *identitySnapshot
	oppEscort    []EscortRef
	selfQuarters int
	round        Round
	traces       []TraceEvent
}

// pull assembles the caller's view and advances their tracer cursor in one
// critical section so a concurrent hit cannot tear the snapshot.
func (r *DuelRoom) pull(uid, opponent int64, now time.Time) pullView {
	r.mu.Lock()
	defer r.mu.Unlock()

	view := pullView{
		selfQuarters: r.quarters[uid],
		round:        r.roundCopyLocked(),
	}

	if snap, ok := r.live[opponent]; ok {
		copied := *snap
		copied.Inventory = append([]ItemStack(nil), snap.Inventory...)
		view.opponent = &copied
	}
	if identity, ok := r.identity[opponent]; ok {
		copied := *identity
		view.oppIdentity = &copied
	}
	view.oppEscort = append([]EscortRef(nil), r.escorts[opponent]...)

	cursor := r.cursors[uid]
	for _, event := range r.tracers {
		if event.Origin == uid {
			continue
		}
		if event.at.After(cursor) {
			view.traces = append(view.traces, event)
		}
	}
	r.cursors[uid] = now

	return view
}

// applyHit resolves quarters of damage against target and, when lethal, runs
// round-end inside the same critical section. The returned remaining value is
// the target's health after the damage, before any next-round reset.
func (r *DuelRoom) applyHit(attacker, target int64, quarters int, now time.Time, grace, countdown time.Duration) (int, roundOutcome, Round) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.round.MatchOver {
		return r.quarters[target], roundOutcome{}, r.roundCopyLocked()
	}

	remaining := r.quarters[target] - quarters
	if remaining < 0 {
		remaining = 0
	}
	r.quarters[target] = remaining

	var outcome roundOutcome
	if remaining == 0 {
		outcome = r.endRoundLocked(attacker, now, grace, countdown)
	}
	return remaining, outcome, r.roundCopyLocked()
}

// down awards the round to winner via the same idempotent round-end path a
// lethal hit uses.
func (r *DuelRoom) down(winner int64, now time.Time, grace, countdown time.Duration) (roundOutcome, Round) {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcome := r.endRoundLocked(winner, now, grace, countdown)
	return outcome, r.roundCopyLocked()
}

// roundCopyLocked returns a detached scoreboard copy. Callers hold r.mu.
func (r *DuelRoom) roundCopyLocked() Round {
	copied := r.round
	copied.Wins = make(map[int64]int, len(r.round.Wins))
	for uid, wins := range r.round.Wins {
		copied.Wins[uid] = wins
	}
	return copied
}

// pruneTraces drops tracer events older than maxAge; reports how many went.
func (r *DuelRoom) pruneTraces(now time.Time, maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-maxAge)
	kept := r.tracers[:0]
	for _, event := range r.tracers {
		if event.at.After(cutoff) {
			kept = append(kept, event)
		}
	}
	pruned := len(r.tracers) - len(kept)
	r.tracers = kept
	return pruned
}

// expired reports whether the room's scheduled destruction has passed.
func (r *DuelRoom) expired(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.expiresAt.IsZero() && now.After(r.expiresAt)
}
