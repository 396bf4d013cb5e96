package server

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"quickdraw/server/logging"
	logduel "quickdraw/server/logging/duel"
	logmatch "quickdraw/server/logging/match"
)

// RankRecorder is the external ledger collaborator. The hub issues exactly
// one call per finished match and does not own the ledger's persistence.
type RankRecorder interface {
	RecordResult(ctx context.Context, mode string, winner, loser int64) error
}

// AllowCheck answers whether two players may duel each other. The social
// collaborator provides the real implementation.
type AllowCheck interface {
	Allowed(a, b int64) bool
}

type allowAll struct{}

func (allowAll) Allowed(int64, int64) bool { return true }

// AllowAll accepts every pairing; used by tests and open deployments.
func AllowAll() AllowCheck { return allowAll{} }

type nopRecorder struct{}

func (nopRecorder) RecordResult(context.Context, string, int64, int64) error { return nil }

type HubConfig struct {
	BestOf       int
	GracePeriod  time.Duration
	Countdown    time.Duration
	TracerMaxAge time.Duration
	PresenceTTL  time.Duration
	InviteTTL    time.Duration
	Clock        logging.Clock
	Ledger       RankRecorder
	Allow        AllowCheck
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		BestOf:       defaultBestOf,
		GracePeriod:  roomGracePeriod,
		Countdown:    roundCountdown,
		TracerMaxAge: tracerMaxAge,
		PresenceTTL:  presenceTTL,
		InviteTTL:    2 * time.Minute,
		Clock:        logging.SystemClock{},
		Ledger:       nopRecorder{},
		Allow:        allowAll{},
	}
}

// Hub owns every piece of shared synchronization state: presence, world
// membership, queues, invites, mailboxes, and the room table. Each concern
// guards itself; the hub never holds two concern locks at once.
type Hub struct {
	cfg       HubConfig
	clock     logging.Clock
	publisher logging.Publisher
	telemetry *telemetryCounters

	presence  *presenceTracker
	worlds    *worldDirectory
	queues    *matchQueue
	invites   *inviteBroker
	mailboxes *mailboxTable

	namesMu sync.Mutex
	names   map[int64]string

	roomsMu sync.RWMutex
	rooms   map[string]*DuelRoom

	lastSweep int64 // unix nanos, accessed atomically in sweeper.go
}

func NewHub(publisher logging.Publisher) *Hub {
	return NewHubWithConfig(DefaultHubConfig(), publisher)
}

func NewHubWithConfig(cfg HubConfig, publisher logging.Publisher) *Hub {
	if cfg.Clock == nil {
		cfg.Clock = logging.SystemClock{}
	}
	if cfg.Ledger == nil {
		cfg.Ledger = nopRecorder{}
	}
	if cfg.Allow == nil {
		cfg.Allow = allowAll{}
	}
	if cfg.BestOf <= 0 || cfg.BestOf%2 == 0 {
		cfg.BestOf = defaultBestOf
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = roomGracePeriod
	}
	if cfg.Countdown <= 0 {
		cfg.Countdown = roundCountdown
	}
	if cfg.TracerMaxAge <= 0 {
		cfg.TracerMaxAge = tracerMaxAge
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}

	return &Hub{
		cfg:       cfg,
		clock:     cfg.Clock,
		publisher: publisher,
		telemetry: newTelemetryCounters(),
		presence:  newPresenceTracker(cfg.Clock, cfg.PresenceTTL),
		worlds:    newWorldDirectory(),
		queues:    newMatchQueue(),
		invites:   newInviteBroker(),
		mailboxes: newMailboxTable(),
		names:     make(map[int64]string),
		rooms:     make(map[string]*DuelRoom),
	}
}

func playerRef(uid int64) logging.EntityRef {
	return logging.EntityRef{ID: strconv.FormatInt(uid, 10), Kind: logging.EntityKindPlayer}
}

func roomRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindRoom}
}

func normalizeMode(mode string) string {
	mode = strings.TrimSpace(strings.ToLower(mode))
	if mode == "" {
		return defaultMode
	}
	return mode
}

// Touch refreshes presence and the display-name table. Called for every
// authenticated request.
func (h *Hub) Touch(uid int64, username string) {
	h.presence.MarkActive(uid)
	if username == "" {
		return
	}
	h.namesMu.Lock()
	h.names[uid] = username
	h.namesMu.Unlock()
}

func (h *Hub) IsActive(uid int64) bool {
	return h.presence.IsActive(uid)
}

// Username returns the last display name seen for uid.
func (h *Hub) Username(uid int64) string {
	h.namesMu.Lock()
	defer h.namesMu.Unlock()
	return h.names[uid]
}

// JoinWorld coerces the requested shard and moves the player there.
func (h *Hub) JoinWorld(uid int64, requested string) WorldID {
	world := CoerceWorld(requested)
	h.worlds.Set(uid, world)
	return world
}

func (h *Hub) CurrentWorld(uid int64) WorldID {
	return h.worlds.Current(uid)
}

func (h *Hub) WorldCounts() map[WorldID]int {
	return h.worlds.Counts()
}

// EnterQueue puts uid into their current world's queue for mode and attempts
// pairing. The returned start payload is non-nil when a match formed, either
// just now or on an earlier unobserved pairing.
func (h *Hub) EnterQueue(ctx context.Context, uid int64, mode string) (*StartPayload, WorldID) {
	mode = normalizeMode(mode)
	world := h.worlds.Current(uid)

	if start := h.mailboxes.Drain(uid); start != nil {
		return start, world
	}

	if h.queues.Enqueue(uid, world, mode) {
		logmatch.Queued(ctx, h.publisher, playerRef(uid), logmatch.QueuedPayload{
			World: string(world),
			Mode:  mode,
		})
	}
	h.tryMatch(ctx, world, mode)

	return h.mailboxes.Drain(uid), world
}

// LeaveQueue removes uid from every queue. Idempotent.
func (h *Hub) LeaveQueue(uid int64) {
	h.queues.Remove(uid)
}

// QueueLen reports the occupancy of one queue; used by diagnostics and tests.
func (h *Hub) QueueLen(world WorldID, mode string) int {
	return h.queues.Len(world, normalizeMode(mode))
}

// tryMatch pairs the two oldest waiters until fewer than two remain.
func (h *Hub) tryMatch(ctx context.Context, world WorldID, mode string) {
	for {
		first, second, ok := h.queues.PopPair(world, mode)
		if !ok {
			return
		}
		h.formMatch(ctx, mode, world, first, second)
	}
}

// formMatch creates the room and posts one-shot start payloads to both
// players' mailboxes.
func (h *Hub) formMatch(ctx context.Context, mode string, world WorldID, first, second int64) *DuelRoom {
	now := h.clock.Now()
	room := newDuelRoom(mode, world, first, second, h.cfg.BestOf, now)

	h.roomsMu.Lock()
	h.rooms[room.ID] = room
	h.roomsMu.Unlock()

	startedAt := now.UnixMilli()
	h.mailboxes.Post(first, &StartPayload{
		Ver:        ProtocolVersion,
		MatchID:    room.ID,
		Mode:       mode,
		World:      world,
		OpponentID: second,
		Opponent:   h.Username(second),
		StartedAt:  startedAt,
	})
	h.mailboxes.Post(second, &StartPayload{
		Ver:        ProtocolVersion,
		MatchID:    room.ID,
		Mode:       mode,
		World:      world,
		OpponentID: first,
		Opponent:   h.Username(first),
		StartedAt:  startedAt,
	})

	h.telemetry.RecordMatchFormed()
	logmatch.Formed(ctx, h.publisher, playerRef(first), playerRef(second), logmatch.FormedPayload{
		Room:  room.ID,
		World: string(world),
		Mode:  mode,
	})
	return room
}

// DrainStart hands out uid's pending start payload at most once.
func (h *Hub) DrainStart(uid int64) *StartPayload {
	return h.mailboxes.Drain(uid)
}

// CreateInvite opens a direct duel request from one player to another,
// bypassing the queue.
func (h *Hub) CreateInvite(ctx context.Context, from, to int64, mode string) (*Invite, error) {
	if from == to {
		return nil, ErrInvalidTarget
	}
	if !h.cfg.Allow.Allowed(from, to) {
		return nil, ErrForbidden
	}

	mode = normalizeMode(mode)
	invite := h.invites.Create(from, to, mode, h.cfg.InviteTTL, h.clock.Now())

	logmatch.Invite(ctx, h.publisher, playerRef(from), playerRef(to), logmatch.InvitePayload{
		Invite: invite.ID,
		Status: string(InviteStatusPending),
		Mode:   mode,
	})
	return invite, nil
}

// AcceptInvite resolves a pending invite and spawns the duel room in the
// inviter's current world. The acceptor's start payload is returned directly;
// the inviter picks theirs up on their next poll.
func (h *Hub) AcceptInvite(ctx context.Context, id string, acceptor int64) (*StartPayload, bool, error) {
	invite, noOp, err := h.invites.Accept(id, acceptor)
	if err != nil {
		return nil, false, err
	}
	if noOp {
		return nil, true, nil
	}

	world := h.worlds.Current(invite.From)
	h.formMatch(ctx, invite.Mode, world, invite.From, invite.To)

	logmatch.Invite(ctx, h.publisher, playerRef(acceptor), playerRef(invite.From), logmatch.InvitePayload{
		Invite: invite.ID,
		Status: string(InviteStatusAccepted),
		Mode:   invite.Mode,
	})
	return h.mailboxes.Drain(acceptor), false, nil
}

func (h *Hub) DeclineInvite(ctx context.Context, id string, acceptor int64) (bool, error) {
	invite, noOp, err := h.invites.Decline(id, acceptor)
	if err != nil || noOp {
		return noOp, err
	}
	logmatch.Invite(ctx, h.publisher, playerRef(acceptor), playerRef(invite.From), logmatch.InvitePayload{
		Invite: invite.ID,
		Status: string(InviteStatusDeclined),
	})
	return false, nil
}

func (h *Hub) CancelInvite(ctx context.Context, id string, sender int64) (bool, error) {
	invite, noOp, err := h.invites.Cancel(id, sender)
	if err != nil || noOp {
		return noOp, err
	}
	logmatch.Invite(ctx, h.publisher, playerRef(sender), playerRef(invite.To), logmatch.InvitePayload{
		Invite: invite.ID,
		Status: string(InviteStatusCancelled),
	})
	return false, nil
}

// PendingInvites lists the invites awaiting uid's response, oldest first.
func (h *Hub) PendingInvites(uid int64) []Invite {
	return h.invites.PendingFor(uid)
}

// roomFor resolves the room for a duel operation. Membership failures read as
// not-found; a member polling from the wrong shard gets the world conflict
// until they rejoin the room's world.
func (h *Hub) roomFor(uid int64, matchID string) (*DuelRoom, error) {
	h.roomsMu.RLock()
	room, ok := h.rooms[matchID]
	h.roomsMu.RUnlock()

	if !ok || !room.isMember(uid) {
		return nil, ErrRoomNotFound
	}
	if h.worlds.Current(uid) != room.World {
		return nil, ErrWrongWorld
	}
	return room, nil
}

// StateSubmission is a client push of its own live state. Optional fields
// arrive defaulted, never rejected.
type StateSubmission struct {
	MatchID    string
	X          float64
	Y          float64
	Facing     string
	Health     *float64
	Inventory  []ItemStack
	Appearance Appearance
	Escort     []EscortRef
}

// SubmitState upserts the caller's live snapshot in the room.
func (h *Hub) SubmitState(uid int64, sub StateSubmission) error {
	room, err := h.roomFor(uid, sub.MatchID)
	if err != nil {
		return err
	}

	health := defaultHUDHealth
	if sub.Health != nil && *sub.Health >= 0 {
		health = *sub.Health
	}

	room.submit(uid, h.Username(uid), playerSnapshot{
		X:         sub.X,
		Y:         sub.Y,
		Facing:    parseFacing(sub.Facing),
		Health:    health,
		Inventory: sub.Inventory,
		UpdatedAt: h.clock.Now(),
	}, sub.Appearance, sub.Escort)
	return nil
}

// PullState returns the opponent's view plus everything the caller has not
// yet seen: the scoreboard, the opponent's escort, and undelivered tracers.
func (h *Hub) PullState(uid int64, matchID string) (*DuelPullResponse, error) {
	room, err := h.roomFor(uid, matchID)
	if err != nil {
		return nil, err
	}

	opponentID, _ := room.opponentOf(uid)
	now := h.clock.Now()
	view := room.pull(uid, opponentID, now)

	resp := &DuelPullResponse{
		Ver:            ProtocolVersion,
		Me:             SelfView{QuarterHealth: view.selfQuarters},
		Round:          view.round.payload(),
		OpponentEscort: view.oppEscort,
		Traces:         view.traces,
		ServerNow:      now.UnixMilli(),
	}
	if view.opponent != nil {
		opponent := &OpponentView{
			ID:        opponentID,
			X:         view.opponent.X,
			Y:         view.opponent.Y,
			Facing:    view.opponent.Facing,
			Health:    view.opponent.Health,
			Equipped:  inferEquipped(view.opponent.Inventory),
			UpdatedAt: unixMilliOrZero(view.opponent.UpdatedAt),
		}
		if view.oppIdentity != nil {
			opponent.Username = view.oppIdentity.Username
			opponent.Appearance = view.oppIdentity.Appearance
		}
		resp.Opponent = opponent
	}
	return resp, nil
}

// ReportHit resolves damage against the reporter's opponent in quarter-heart
// units. A lethal hit runs round-end processing.
func (h *Hub) ReportHit(ctx context.Context, uid int64, matchID, weapon string) (*HitResponse, error) {
	room, err := h.roomFor(uid, matchID)
	if err != nil {
		return nil, err
	}

	opponentID, _ := room.opponentOf(uid)
	quarters := quarterDamage(weapon)
	now := h.clock.Now()

	remaining, outcome, round := room.applyHit(uid, opponentID, quarters, now, h.cfg.GracePeriod, h.cfg.Countdown)

	h.telemetry.RecordHit()
	logduel.Hit(ctx, h.publisher, playerRef(uid), playerRef(opponentID), roomRef(room.ID), logduel.HitPayload{
		Weapon:         weapon,
		Quarters:       quarters,
		TargetQuarters: remaining,
	})
	if outcome.Applied {
		h.finishRound(ctx, room, outcome, false)
	}

	return &HitResponse{
		Ver:            ProtocolVersion,
		OpponentHealth: remaining,
		RoundEnded:     outcome.Applied,
		Round:          round.payload(),
	}, nil
}

// ReportTrace appends a visual tracer event with the server's timestamp.
func (h *Hub) ReportTrace(uid int64, matchID, kind string, x1, y1, x2, y2 float64) error {
	room, err := h.roomFor(uid, matchID)
	if err != nil {
		return err
	}

	now := h.clock.Now()
	room.appendTrace(TraceEvent{
		Origin: uid,
		Kind:   kind,
		X1:     x1,
		Y1:     y1,
		X2:     x2,
		Y2:     y2,
		At:     now.UnixMilli(),
		at:     now,
	})
	h.telemetry.RecordTracer()
	return nil
}

// SelfDown reports elimination by a cause outside direct combat and awards
// the round to the opponent.
func (h *Hub) SelfDown(ctx context.Context, uid int64, matchID string) (*DownResponse, error) {
	room, err := h.roomFor(uid, matchID)
	if err != nil {
		return nil, err
	}

	opponentID, _ := room.opponentOf(uid)
	now := h.clock.Now()

	outcome, round := room.down(opponentID, now, h.cfg.GracePeriod, h.cfg.Countdown)
	if outcome.Applied {
		logduel.SelfDownEvent(ctx, h.publisher, playerRef(uid), roomRef(room.ID))
		h.finishRound(ctx, room, outcome, true)
	}

	return &DownResponse{
		Ver:   ProtocolVersion,
		OK:    true,
		Round: round.payload(),
	}, nil
}

// finishRound handles the side effects of an applied round-end: telemetry,
// events, and on match-over the single ledger call.
func (h *Hub) finishRound(ctx context.Context, room *DuelRoom, outcome roundOutcome, bySelfDown bool) {
	h.telemetry.RecordRoundEnded()

	wins := make(map[string]int, len(outcome.Wins))
	for uid, count := range outcome.Wins {
		wins[strconv.FormatInt(uid, 10)] = count
	}
	logduel.RoundEnd(ctx, h.publisher, playerRef(outcome.Winner), roomRef(room.ID), logduel.RoundEndPayload{
		Round:      outcome.Round,
		Wins:       wins,
		BySelfDown: bySelfDown,
	})

	if !outcome.MatchOver {
		return
	}

	logduel.MatchOver(ctx, h.publisher, playerRef(outcome.Winner), playerRef(outcome.Loser), roomRef(room.ID), logduel.MatchOverPayload{
		Mode:   room.Mode,
		Rounds: outcome.Round,
		Wins:   wins,
	})

	winner, loser, mode := outcome.Winner, outcome.Loser, room.Mode
	go func() {
		recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.cfg.Ledger.RecordResult(recordCtx, mode, winner, loser); err != nil {
			log.Printf("rank ledger update failed for room %s: %v", room.ID, err)
		}
	}()
}

// Room exposes a room by id for diagnostics and tests.
func (h *Hub) Room(id string) (*DuelRoom, bool) {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	room, ok := h.rooms[id]
	return room, ok
}

// RoomCount reports the number of live rooms.
func (h *Hub) RoomCount() int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms)
}

// TelemetrySnapshot exposes counters for the diagnostics endpoint.
func (h *Hub) TelemetrySnapshot() telemetrySnapshot {
	return h.telemetry.Snapshot()
}
