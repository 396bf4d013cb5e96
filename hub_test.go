package server

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestHub(clock *stubClock) *Hub {
	cfg := DefaultHubConfig()
	cfg.Clock = clock
	return NewHubWithConfig(cfg, nil)
}

// pairThroughQueue walks players 1 and 2 through world 1's default queue and
// returns their start payloads.
func pairThroughQueue(t *testing.T, h *Hub) (*StartPayload, *StartPayload) {
	t.Helper()
	ctx := context.Background()

	h.Touch(1, "tex")
	h.Touch(2, "dusty")
	h.JoinWorld(1, "1")
	h.JoinWorld(2, "1")

	if start, _ := h.EnterQueue(ctx, 1, ""); start != nil {
		t.Fatalf("expected the first waiter to queue without a match")
	}
	second, _ := h.EnterQueue(ctx, 2, "")
	if second == nil {
		t.Fatalf("expected the second waiter to be paired immediately")
	}
	first := h.DrainStart(1)
	if first == nil {
		t.Fatalf("expected the first waiter's start payload in their mailbox")
	}
	return first, second
}

func TestEnterQueuePairsAndEmptiesQueue(t *testing.T) {
	h := newTestHub(newStubClock())
	first, second := pairThroughQueue(t, h)

	if first.MatchID != second.MatchID {
		t.Fatalf("expected both players in the same room, got %q and %q", first.MatchID, second.MatchID)
	}
	if first.OpponentID != 2 || second.OpponentID != 1 {
		t.Fatalf("expected crossed opponent ids, got %d and %d", first.OpponentID, second.OpponentID)
	}
	if second.Opponent != "tex" {
		t.Fatalf("expected the opponent display name, got %q", second.Opponent)
	}
	if got := h.QueueLen("1", ""); got != 0 {
		t.Fatalf("expected the queue drained after pairing, got %d", got)
	}
	if got := h.RoomCount(); got != 1 {
		t.Fatalf("expected one live room, got %d", got)
	}
}

func TestStartPayloadDeliveredAtMostOnce(t *testing.T) {
	h := newTestHub(newStubClock())
	pairThroughQueue(t, h)

	if again := h.DrainStart(1); again != nil {
		t.Fatalf("expected the start payload to be one-shot, got %+v", again)
	}
	if again := h.DrainStart(2); again != nil {
		t.Fatalf("expected player 2's payload consumed by EnterQueue, got %+v", again)
	}
}

func TestQueueSeparatedByWorld(t *testing.T) {
	h := newTestHub(newStubClock())
	ctx := context.Background()

	h.JoinWorld(1, "1")
	h.JoinWorld(2, "2")
	h.EnterQueue(ctx, 1, "")
	if start, _ := h.EnterQueue(ctx, 2, ""); start != nil {
		t.Fatalf("expected no cross-world pairing")
	}
	if h.RoomCount() != 0 {
		t.Fatalf("expected no room across worlds")
	}
}

func TestLeaveQueueIsIdempotent(t *testing.T) {
	h := newTestHub(newStubClock())
	ctx := context.Background()

	h.JoinWorld(1, "1")
	h.EnterQueue(ctx, 1, "")
	h.LeaveQueue(1)
	h.LeaveQueue(1)

	if got := h.QueueLen("1", ""); got != 0 {
		t.Fatalf("expected the queue empty after leaving, got %d", got)
	}

	// A later waiter must not be paired against the departed player.
	h.JoinWorld(2, "1")
	if start, _ := h.EnterQueue(ctx, 2, ""); start != nil {
		t.Fatalf("expected no pairing with a departed player")
	}
}

func TestSubmitAndPullState(t *testing.T) {
	clock := newStubClock()
	h := newTestHub(clock)
	start, _ := pairThroughQueue(t, h)

	err := h.SubmitState(1, StateSubmission{
		MatchID: start.MatchID,
		X:       10, Y: 20,
		Facing: "left",
		Inventory: []ItemStack{
			{Slot: 0, Item: WeaponRevolver},
			{Slot: 1, Item: WeaponKnife, Equipped: true},
		},
		Appearance: Appearance{Outfit: "duster"},
		Escort:     []EscortRef{{Kind: "dog", X: 9, Y: 19}},
	})
	if err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	resp, err := h.PullState(2, start.MatchID)
	if err != nil {
		t.Fatalf("unexpected pull error: %v", err)
	}
	if resp.Opponent == nil {
		t.Fatalf("expected an opponent view after their push")
	}
	if resp.Opponent.X != 10 || resp.Opponent.Facing != FacingLeft {
		t.Fatalf("unexpected opponent snapshot: %+v", resp.Opponent)
	}
	if resp.Opponent.Health != defaultHUDHealth {
		t.Fatalf("expected omitted health to default, got %v", resp.Opponent.Health)
	}
	if resp.Opponent.Equipped != WeaponKnife {
		t.Fatalf("expected the equipped slot to win, got %q", resp.Opponent.Equipped)
	}
	if resp.Opponent.Username != "tex" || resp.Opponent.Appearance.Outfit != "duster" {
		t.Fatalf("expected identity fields, got %+v", resp.Opponent)
	}
	if len(resp.OpponentEscort) != 1 {
		t.Fatalf("expected the opponent's escort, got %d entries", len(resp.OpponentEscort))
	}
	if resp.Me.QuarterHealth != fullQuarterHealth {
		t.Fatalf("expected full quarter health, got %d", resp.Me.QuarterHealth)
	}
	if resp.Round.Number != 1 || resp.Round.BestOf != defaultBestOf {
		t.Fatalf("unexpected scoreboard: %+v", resp.Round)
	}

	// A puller whose opponent never pushed sees no opponent view.
	blank, err := h.PullState(1, start.MatchID)
	if err != nil {
		t.Fatalf("unexpected pull error: %v", err)
	}
	if blank.Opponent != nil {
		t.Fatalf("expected no opponent view before their first push")
	}
}

func TestTraceDeliveryThroughHub(t *testing.T) {
	clock := newStubClock()
	h := newTestHub(clock)
	start, _ := pairThroughQueue(t, h)

	clock.Advance(100 * time.Millisecond)
	if err := h.ReportTrace(1, start.MatchID, "shot", 0, 0, 5, 5); err != nil {
		t.Fatalf("unexpected trace error: %v", err)
	}

	clock.Advance(100 * time.Millisecond)
	own, _ := h.PullState(1, start.MatchID)
	if len(own.Traces) != 0 {
		t.Fatalf("expected no echo of the reporter's own trace, got %d", len(own.Traces))
	}

	other, _ := h.PullState(2, start.MatchID)
	if len(other.Traces) != 1 {
		t.Fatalf("expected one trace for the opponent, got %d", len(other.Traces))
	}
	if other.Traces[0].Kind != "shot" || other.Traces[0].Origin != 1 {
		t.Fatalf("unexpected trace: %+v", other.Traces[0])
	}

	clock.Advance(100 * time.Millisecond)
	again, _ := h.PullState(2, start.MatchID)
	if len(again.Traces) != 0 {
		t.Fatalf("expected no trace redelivery, got %d", len(again.Traces))
	}
}

func TestWrongWorldConflictUntilRejoin(t *testing.T) {
	h := newTestHub(newStubClock())
	start, _ := pairThroughQueue(t, h)

	h.JoinWorld(1, "2")

	if err := h.SubmitState(1, StateSubmission{MatchID: start.MatchID}); err != ErrWrongWorld {
		t.Fatalf("expected wrong world on submit, got %v", err)
	}
	if _, err := h.PullState(1, start.MatchID); err != ErrWrongWorld {
		t.Fatalf("expected wrong world on pull, got %v", err)
	}
	if _, err := h.ReportHit(context.Background(), 1, start.MatchID, WeaponRevolver); err != ErrWrongWorld {
		t.Fatalf("expected wrong world on hit, got %v", err)
	}

	h.JoinWorld(1, "1")
	if _, err := h.PullState(1, start.MatchID); err != nil {
		t.Fatalf("expected pull to recover after rejoining, got %v", err)
	}
}

func TestRoomHiddenFromNonMembers(t *testing.T) {
	h := newTestHub(newStubClock())
	start, _ := pairThroughQueue(t, h)

	h.JoinWorld(3, "1")
	if _, err := h.PullState(3, start.MatchID); err != ErrRoomNotFound {
		t.Fatalf("expected not found for a stranger, got %v", err)
	}
	if _, err := h.PullState(1, "no-such-room"); err != ErrRoomNotFound {
		t.Fatalf("expected not found for a bogus id, got %v", err)
	}
}

func TestReportHitTracksQuarters(t *testing.T) {
	h := newTestHub(newStubClock())
	start, _ := pairThroughQueue(t, h)
	ctx := context.Background()

	resp, err := h.ReportHit(ctx, 1, start.MatchID, WeaponRevolver)
	if err != nil {
		t.Fatalf("unexpected hit error: %v", err)
	}
	if resp.OpponentHealth != fullQuarterHealth-1 {
		t.Fatalf("expected a quarter of damage, got %d left", resp.OpponentHealth)
	}
	if resp.RoundEnded {
		t.Fatalf("expected the round to continue")
	}

	resp, err = h.ReportHit(ctx, 1, start.MatchID, WeaponDynamite)
	if err != nil {
		t.Fatalf("unexpected hit error: %v", err)
	}
	if !resp.RoundEnded {
		t.Fatalf("expected dynamite to end the round")
	}
	if resp.OpponentHealth != 0 {
		t.Fatalf("expected the pre-reset health in the response, got %d", resp.OpponentHealth)
	}
	if resp.Round.Wins["1"] != 1 {
		t.Fatalf("expected one win for player 1, got %v", resp.Round.Wins)
	}
}

func TestSelfDownAwardsOpponent(t *testing.T) {
	h := newTestHub(newStubClock())
	start, _ := pairThroughQueue(t, h)

	resp, err := h.SelfDown(context.Background(), 2, start.MatchID)
	if err != nil {
		t.Fatalf("unexpected self-down error: %v", err)
	}
	if !resp.OK {
		t.Fatalf("expected an acknowledged self-down")
	}
	if resp.Round.Wins["1"] != 1 {
		t.Fatalf("expected the opponent to take the round, got %v", resp.Round.Wins)
	}
}

type recordingLedger struct {
	mu      sync.Mutex
	results []string
	done    chan struct{}
}

func (l *recordingLedger) RecordResult(_ context.Context, mode string, winner, loser int64) error {
	l.mu.Lock()
	l.results = append(l.results, mode)
	l.mu.Unlock()
	l.done <- struct{}{}
	return nil
}

func TestMatchOverRecordsLedgerOnce(t *testing.T) {
	ledger := &recordingLedger{done: make(chan struct{}, 4)}
	cfg := DefaultHubConfig()
	cfg.Clock = newStubClock()
	cfg.Ledger = ledger
	h := NewHubWithConfig(cfg, nil)
	start, _ := pairThroughQueue(t, h)
	ctx := context.Background()

	h.ReportHit(ctx, 1, start.MatchID, WeaponDynamite)
	resp, err := h.ReportHit(ctx, 1, start.MatchID, WeaponDynamite)
	if err != nil {
		t.Fatalf("unexpected hit error: %v", err)
	}
	if !resp.Round.MatchOver {
		t.Fatalf("expected two wins to close the match")
	}

	select {
	case <-ledger.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a ledger call after match over")
	}

	// Retried reports after match over must not produce a second call.
	h.ReportHit(ctx, 1, start.MatchID, WeaponDynamite)
	h.SelfDown(ctx, 2, start.MatchID)

	select {
	case <-ledger.done:
		t.Fatalf("expected exactly one ledger call")
	case <-time.After(100 * time.Millisecond):
	}

	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	if len(ledger.results) != 1 || ledger.results[0] != defaultMode {
		t.Fatalf("expected one %q result, got %v", defaultMode, ledger.results)
	}
}

func TestInviteAcceptFormsRoomInInvitersWorld(t *testing.T) {
	h := newTestHub(newStubClock())
	ctx := context.Background()

	h.Touch(1, "tex")
	h.Touch(2, "dusty")
	h.JoinWorld(1, "2")
	h.JoinWorld(2, "3")

	invite, err := h.CreateInvite(ctx, 1, 2, "")
	if err != nil {
		t.Fatalf("unexpected invite error: %v", err)
	}

	pending := h.PendingInvites(2)
	if len(pending) != 1 || pending[0].ID != invite.ID {
		t.Fatalf("expected the invite pending for player 2, got %v", pending)
	}

	start, noOp, err := h.AcceptInvite(ctx, invite.ID, 2)
	if err != nil || noOp {
		t.Fatalf("expected a clean accept, got noOp=%v err=%v", noOp, err)
	}
	if start == nil {
		t.Fatalf("expected the acceptor's start payload immediately")
	}
	if start.World != WorldID("2") {
		t.Fatalf("expected the room in the inviter's world, got %q", start.World)
	}
	if inviterStart := h.DrainStart(1); inviterStart == nil || inviterStart.MatchID != start.MatchID {
		t.Fatalf("expected the inviter's mailbox to carry the same match")
	}
}

func TestDeclinedInviteCannotFormRoom(t *testing.T) {
	h := newTestHub(newStubClock())
	ctx := context.Background()

	invite, err := h.CreateInvite(ctx, 1, 2, "")
	if err != nil {
		t.Fatalf("unexpected invite error: %v", err)
	}
	if noOp, err := h.DeclineInvite(ctx, invite.ID, 2); err != nil || noOp {
		t.Fatalf("expected a clean decline, got noOp=%v err=%v", noOp, err)
	}

	start, noOp, err := h.AcceptInvite(ctx, invite.ID, 2)
	if err != nil {
		t.Fatalf("expected accept-after-decline to succeed as a no-op, got %v", err)
	}
	if !noOp || start != nil {
		t.Fatalf("expected no room from a declined invite, got noOp=%v start=%+v", noOp, start)
	}
	if h.RoomCount() != 0 {
		t.Fatalf("expected no room, got %d", h.RoomCount())
	}
}

type denyAll struct{}

func (denyAll) Allowed(int64, int64) bool { return false }

func TestCreateInviteRejections(t *testing.T) {
	h := newTestHub(newStubClock())
	if _, err := h.CreateInvite(context.Background(), 1, 1, ""); err != ErrInvalidTarget {
		t.Fatalf("expected invalid target for a self invite, got %v", err)
	}

	cfg := DefaultHubConfig()
	cfg.Allow = denyAll{}
	guarded := NewHubWithConfig(cfg, nil)
	if _, err := guarded.CreateInvite(context.Background(), 1, 2, ""); err != ErrForbidden {
		t.Fatalf("expected forbidden from the allow check, got %v", err)
	}
}

func TestSweepReclaimsExpiredRooms(t *testing.T) {
	clock := newStubClock()
	h := newTestHub(clock)
	start, _ := pairThroughQueue(t, h)
	ctx := context.Background()

	h.ReportHit(ctx, 1, start.MatchID, WeaponDynamite)
	h.ReportHit(ctx, 1, start.MatchID, WeaponDynamite)

	clock.Advance(roomGracePeriod - time.Second)
	h.Sweep(ctx, clock.Now())
	if h.RoomCount() != 1 {
		t.Fatalf("expected the room to survive inside the grace period")
	}

	clock.Advance(2 * time.Second)
	h.Sweep(ctx, clock.Now())
	if h.RoomCount() != 0 {
		t.Fatalf("expected the expired room reclaimed, got %d", h.RoomCount())
	}

	if _, err := h.PullState(1, start.MatchID); err != ErrRoomNotFound {
		t.Fatalf("expected not found after reclamation, got %v", err)
	}
}

func TestSweepPrunesAgedTracers(t *testing.T) {
	clock := newStubClock()
	h := newTestHub(clock)
	start, _ := pairThroughQueue(t, h)
	ctx := context.Background()

	h.ReportTrace(1, start.MatchID, "shot", 0, 0, 1, 1)
	clock.Advance(tracerMaxAge + time.Second)
	h.Sweep(ctx, clock.Now())

	clock.Advance(time.Second)
	resp, err := h.PullState(2, start.MatchID)
	if err != nil {
		t.Fatalf("unexpected pull error: %v", err)
	}
	if len(resp.Traces) != 0 {
		t.Fatalf("expected aged tracers pruned, got %d", len(resp.Traces))
	}
}

func TestMaybeSweepThrottles(t *testing.T) {
	clock := newStubClock()
	h := newTestHub(clock)
	ctx := context.Background()

	h.MaybeSweep(ctx)
	firstStamp := h.lastSweep
	h.MaybeSweep(ctx)
	if h.lastSweep != firstStamp {
		t.Fatalf("expected the second sweep inside the window to be skipped")
	}

	clock.Advance(sweepInterval + time.Millisecond)
	h.MaybeSweep(ctx)
	if h.lastSweep == firstStamp {
		t.Fatalf("expected a sweep after the throttle window")
	}
}
