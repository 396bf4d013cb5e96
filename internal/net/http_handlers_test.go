package net

import (
	"bytes"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	server "quickdraw/server"
	"quickdraw/server/internal/social"
)

func newTestHandler() nethttp.Handler {
	hub := server.NewHub(nil)
	directory := social.NewDirectory()
	return NewHTTPHandler(hub, directory, HTTPHandlerConfig{})
}

func request(t *testing.T, handler nethttp.Handler, method, path string, uid int64, username string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if uid != 0 {
		req.Header.Set("X-Player-ID", fmt.Sprintf("%d", uid))
		req.Header.Set("X-Player-Name", username)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestAuthedEndpointsRejectAnonymousCallers(t *testing.T) {
	handler := newTestHandler()

	rec := request(t, handler, "POST", "/world/join", 0, "", map[string]string{"world": "1"})
	if rec.Code != nethttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var resp server.ErrorResponse
	decode(t, rec, &resp)
	if resp.Error != "unauthenticated" {
		t.Fatalf("expected unauthenticated code, got %q", resp.Error)
	}
}

func TestAuthedEndpointsRejectMalformedID(t *testing.T) {
	handler := newTestHandler()

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("X-Player-ID", "not-a-number")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != nethttp.StatusUnauthorized {
		t.Fatalf("expected 401 for a malformed id, got %d", rec.Code)
	}
}

func TestJoinWorldAndWhoami(t *testing.T) {
	handler := newTestHandler()

	rec := request(t, handler, "POST", "/world/join", 1, "tex", map[string]string{"world": "2"})
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var join server.WorldJoinResponse
	decode(t, rec, &join)
	if join.World != server.WorldID("2") {
		t.Fatalf("expected world 2, got %q", join.World)
	}

	rec = request(t, handler, "GET", "/whoami", 1, "tex", nil)
	var who server.WhoAmIResponse
	decode(t, rec, &who)
	if who.Username != "tex" || !who.Active || who.World != server.WorldID("2") {
		t.Fatalf("unexpected whoami: %+v", who)
	}

	rec = request(t, handler, "GET", "/world/counts", 0, "", nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("expected world counts to be public, got %d", rec.Code)
	}
	var counts server.WorldCountsResponse
	decode(t, rec, &counts)
	if counts.Counts["2"] != 1 {
		t.Fatalf("expected one player in world 2, got %v", counts.Counts)
	}
}

func TestUnknownWorldCoercesToDefault(t *testing.T) {
	handler := newTestHandler()

	rec := request(t, handler, "POST", "/world/join", 1, "tex", map[string]string{"world": "atlantis"})
	var join server.WorldJoinResponse
	decode(t, rec, &join)
	if join.World != server.WorldID("1") {
		t.Fatalf("expected coercion to world 1, got %q", join.World)
	}
}

// pairOverHTTP queues players 1 and 2 in world 1 and returns the start
// payloads each observed through the API.
func pairOverHTTP(t *testing.T, handler nethttp.Handler) (server.StartPayload, server.StartPayload) {
	t.Helper()

	request(t, handler, "POST", "/world/join", 1, "tex", map[string]string{"world": "1"})
	request(t, handler, "POST", "/world/join", 2, "dusty", map[string]string{"world": "1"})

	rec := request(t, handler, "POST", "/queue/enter", 1, "tex", map[string]string{})
	var first server.QueueResponse
	decode(t, rec, &first)
	if !first.Queued || first.Start != nil {
		t.Fatalf("expected the first player to wait, got %+v", first)
	}

	rec = request(t, handler, "POST", "/queue/enter", 2, "dusty", map[string]string{})
	var second server.QueueResponse
	decode(t, rec, &second)
	if second.Start == nil {
		t.Fatalf("expected the second player to match immediately, got %+v", second)
	}

	rec = request(t, handler, "GET", "/notifications", 1, "tex", nil)
	var notes server.NotificationsResponse
	decode(t, rec, &notes)
	if notes.Start == nil {
		t.Fatalf("expected the first player's start in notifications")
	}
	return *notes.Start, *second.Start
}

func TestQueuePairingOverHTTP(t *testing.T) {
	handler := newTestHandler()
	first, second := pairOverHTTP(t, handler)

	if first.MatchID != second.MatchID {
		t.Fatalf("expected one room, got %q and %q", first.MatchID, second.MatchID)
	}

	// The start payload is one-shot.
	rec := request(t, handler, "GET", "/notifications", 1, "tex", nil)
	var notes server.NotificationsResponse
	decode(t, rec, &notes)
	if notes.Start != nil {
		t.Fatalf("expected no second delivery, got %+v", notes.Start)
	}
}

func TestDuelFlowOverHTTP(t *testing.T) {
	handler := newTestHandler()
	start, _ := pairOverHTTP(t, handler)

	rec := request(t, handler, "POST", "/duel/state", 1, "tex", map[string]any{
		"matchId": start.MatchID,
		"x":       12.5,
		"y":       40.0,
		"facing":  "right",
	})
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("expected 200 on submit, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = request(t, handler, "GET", "/duel/state?matchId="+start.MatchID, 2, "dusty", nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("expected 200 on pull, got %d", rec.Code)
	}
	var pull server.DuelPullResponse
	decode(t, rec, &pull)
	if pull.Opponent == nil || pull.Opponent.X != 12.5 {
		t.Fatalf("expected the pushed snapshot, got %+v", pull.Opponent)
	}
	if pull.Me.QuarterHealth != 4 {
		t.Fatalf("expected full quarter health, got %d", pull.Me.QuarterHealth)
	}

	rec = request(t, handler, "POST", "/duel/hit", 2, "dusty", map[string]string{
		"matchId": start.MatchID,
		"weapon":  "knife",
	})
	var hit server.HitResponse
	decode(t, rec, &hit)
	if hit.OpponentHealth != 2 {
		t.Fatalf("expected a knife to take half a heart, got %d left", hit.OpponentHealth)
	}
	if hit.RoundEnded {
		t.Fatalf("expected the round to continue")
	}

	rec = request(t, handler, "POST", "/duel/down", 1, "tex", map[string]string{"matchId": start.MatchID})
	var down server.DownResponse
	decode(t, rec, &down)
	if !down.OK || down.Round.Wins["2"] != 1 {
		t.Fatalf("expected the opponent credited for the self-down, got %+v", down)
	}
}

func TestWrongWorldReturnsConflict(t *testing.T) {
	handler := newTestHandler()
	start, _ := pairOverHTTP(t, handler)

	request(t, handler, "POST", "/world/join", 1, "tex", map[string]string{"world": "3"})

	rec := request(t, handler, "GET", "/duel/state?matchId="+start.MatchID, 1, "tex", nil)
	if rec.Code != nethttp.StatusConflict {
		t.Fatalf("expected 409 from the wrong world, got %d", rec.Code)
	}
	var resp server.ErrorResponse
	decode(t, rec, &resp)
	if resp.Error != "wrong_world" {
		t.Fatalf("expected wrong_world code, got %q", resp.Error)
	}

	request(t, handler, "POST", "/world/join", 1, "tex", map[string]string{"world": "1"})
	rec = request(t, handler, "GET", "/duel/state?matchId="+start.MatchID, 1, "tex", nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("expected recovery after rejoining, got %d", rec.Code)
	}
}

func TestPullUnknownRoomNotFound(t *testing.T) {
	handler := newTestHandler()
	rec := request(t, handler, "GET", "/duel/state?matchId=ghost", 1, "tex", nil)
	if rec.Code != nethttp.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestInviteFlowOverHTTP(t *testing.T) {
	handler := newTestHandler()

	request(t, handler, "POST", "/world/join", 1, "tex", map[string]string{"world": "2"})
	request(t, handler, "POST", "/world/join", 2, "dusty", map[string]string{"world": "2"})

	rec := request(t, handler, "POST", "/invites", 1, "tex", map[string]string{"username": "dusty"})
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var created server.InviteCreatedResponse
	decode(t, rec, &created)
	if !created.OK || created.ID == "" {
		t.Fatalf("unexpected invite response: %+v", created)
	}

	rec = request(t, handler, "GET", "/notifications", 2, "dusty", nil)
	var notes server.NotificationsResponse
	decode(t, rec, &notes)
	if len(notes.Invites) != 1 || notes.Invites[0].From != "tex" {
		t.Fatalf("expected the invite in notifications, got %v", notes.Invites)
	}

	rec = request(t, handler, "POST", "/invites/accept", 2, "dusty", map[string]string{"id": created.ID})
	var resolved server.InviteResolveResponse
	decode(t, rec, &resolved)
	if !resolved.OK || resolved.Start == nil {
		t.Fatalf("expected an immediate start for the acceptor, got %+v", resolved)
	}
	if resolved.Start.World != server.WorldID("2") {
		t.Fatalf("expected the room in the inviter's world, got %q", resolved.Start.World)
	}
}

func TestInviteToUnknownPlayer(t *testing.T) {
	handler := newTestHandler()
	rec := request(t, handler, "POST", "/invites", 1, "tex", map[string]string{"username": "ghost"})
	if rec.Code != nethttp.StatusNotFound {
		t.Fatalf("expected 404 for an unknown target, got %d", rec.Code)
	}
}

func TestFriendFlowOverHTTP(t *testing.T) {
	handler := newTestHandler()

	request(t, handler, "GET", "/whoami", 1, "tex", nil)
	request(t, handler, "GET", "/whoami", 2, "dusty", nil)

	rec := request(t, handler, "POST", "/friends/request", 1, "tex", map[string]string{"username": "dusty"})
	var ack server.AckResponse
	decode(t, rec, &ack)
	if !ack.OK || ack.NoOp || ack.AlreadyFriends {
		t.Fatalf("unexpected request ack: %+v", ack)
	}

	rec = request(t, handler, "GET", "/notifications", 2, "dusty", nil)
	var notes server.NotificationsResponse
	decode(t, rec, &notes)
	if len(notes.FriendRequests) != 1 || notes.FriendRequests[0].From != "tex" {
		t.Fatalf("expected the pending friend request, got %v", notes.FriendRequests)
	}

	rec = request(t, handler, "POST", "/friends/respond", 2, "dusty", map[string]any{
		"id":     notes.FriendRequests[0].ID,
		"accept": true,
	})
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("expected 200 on respond, got %d", rec.Code)
	}

	rec = request(t, handler, "GET", "/friends", 1, "tex", nil)
	var friends server.FriendsResponse
	decode(t, rec, &friends)
	if len(friends.Friends) != 1 || friends.Friends[0].Username != "dusty" {
		t.Fatalf("expected dusty in the friend list, got %v", friends.Friends)
	}
	if !friends.Friends[0].Active {
		t.Fatalf("expected an active friend")
	}
}

func TestSearchRequiresTwoCharacters(t *testing.T) {
	handler := newTestHandler()
	request(t, handler, "GET", "/whoami", 2, "dusty", nil)

	rec := request(t, handler, "GET", "/players/search?q=d", 1, "tex", nil)
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("expected 400 for a short query, got %d", rec.Code)
	}

	// One rune, two bytes: still too short.
	rec = request(t, handler, "GET", "/players/search?q=%C3%A9", 1, "tex", nil)
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("expected 400 for a one-rune query, got %d", rec.Code)
	}

	rec = request(t, handler, "GET", "/players/search?q=dust", 1, "tex", nil)
	var results server.SearchResponse
	decode(t, rec, &results)
	if len(results.Users) != 1 || results.Users[0].Username != "dusty" {
		t.Fatalf("expected dusty in the results, got %v", results.Users)
	}
}

func TestHealthAndDiagnostics(t *testing.T) {
	handler := newTestHandler()

	rec := request(t, handler, "GET", "/health", 0, "", nil)
	if rec.Code != nethttp.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}

	rec = request(t, handler, "GET", "/diagnostics", 0, "", nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("expected 200 from diagnostics, got %d", rec.Code)
	}
	var diag struct {
		Status    string `json:"status"`
		TracerCap int    `json:"tracerCap"`
	}
	decode(t, rec, &diag)
	if diag.Status != "ok" || diag.TracerCap != server.TracerBufferCap() {
		t.Fatalf("unexpected diagnostics payload: %+v", diag)
	}
}
