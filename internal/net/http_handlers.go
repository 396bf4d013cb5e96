package net

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	nethttp "net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	server "quickdraw/server"
	"quickdraw/server/internal/social"
	loggingsinks "quickdraw/server/logging/sinks"
)

type HTTPHandlerConfig struct {
	Logger *log.Logger
	// Stream, when set, receives the /debug/events websocket tail.
	Stream *loggingsinks.StreamSink
}

// identity is the already-authenticated caller. Identity resolution itself is
// an external collaborator; this layer only consumes the forwarded headers.
type identity struct {
	UID      int64
	Username string
}

func NewHTTPHandler(hub *server.Hub, directory *social.Directory, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	api := &apiHandlers{hub: hub, directory: directory, logger: logger}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", api.diagnostics)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("POST /world/join", api.authed(api.joinWorld))
	mux.HandleFunc("GET /world/counts", api.worldCounts)
	mux.HandleFunc("GET /whoami", api.authed(api.whoami))
	mux.HandleFunc("GET /friends", api.authed(api.friends))
	mux.HandleFunc("GET /players/search", api.authed(api.searchPlayers))
	mux.HandleFunc("POST /friends/request", api.authed(api.sendFriendRequest))
	mux.HandleFunc("POST /friends/respond", api.authed(api.respondFriendRequest))
	mux.HandleFunc("POST /invites", api.authed(api.createInvite))
	mux.HandleFunc("POST /invites/accept", api.authed(api.acceptInvite))
	mux.HandleFunc("POST /invites/decline", api.authed(api.declineInvite))
	mux.HandleFunc("POST /invites/cancel", api.authed(api.cancelInvite))
	mux.HandleFunc("GET /notifications", api.authed(api.notifications))
	mux.HandleFunc("POST /queue/enter", api.authed(api.enterQueue))
	mux.HandleFunc("POST /queue/leave", api.authed(api.leaveQueue))
	mux.HandleFunc("POST /duel/state", api.authed(api.submitDuelState))
	mux.HandleFunc("GET /duel/state", api.authed(api.pullDuelState))
	mux.HandleFunc("POST /duel/hit", api.authed(api.reportHit))
	mux.HandleFunc("POST /duel/trace", api.authed(api.reportTrace))
	mux.HandleFunc("POST /duel/down", api.authed(api.selfDown))

	if cfg.Stream != nil {
		mux.HandleFunc("GET /debug/events", api.debugEvents(cfg.Stream))
	}

	return mux
}

type apiHandlers struct {
	hub       *server.Hub
	directory *social.Directory
	logger    *log.Logger
}

// authed resolves the caller, refreshes presence and the directory, and runs
// the opportunistic sweep before the real handler.
func (a *apiHandlers) authed(next func(nethttp.ResponseWriter, *nethttp.Request, identity)) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		rawID := r.Header.Get("X-Player-ID")
		username := r.Header.Get("X-Player-Name")
		uid, err := strconv.ParseInt(rawID, 10, 64)
		if rawID == "" || err != nil {
			writeReason(w, server.ErrUnauthenticated)
			return
		}

		a.hub.Touch(uid, username)
		a.directory.Register(uid, username)
		a.hub.MaybeSweep(r.Context())

		next(w, r, identity{UID: uid, Username: username})
	}
}

func (a *apiHandlers) joinWorld(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	var req struct {
		World string `json:"world"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	world := a.hub.JoinWorld(id.UID, req.World)
	writeJSON(w, server.WorldJoinResponse{Ver: server.ProtocolVersion, World: world})
}

func (a *apiHandlers) worldCounts(w nethttp.ResponseWriter, r *nethttp.Request) {
	writeJSON(w, server.WorldCountsResponse{Ver: server.ProtocolVersion, Counts: a.hub.WorldCounts()})
}

func (a *apiHandlers) whoami(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	writeJSON(w, server.WhoAmIResponse{
		Ver:      server.ProtocolVersion,
		Username: id.Username,
		Active:   a.hub.IsActive(id.UID),
		World:    a.hub.CurrentWorld(id.UID),
	})
}

func (a *apiHandlers) friends(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	users := a.directory.Friends(id.UID)
	friends := make([]server.FriendEntry, 0, len(users))
	for _, user := range users {
		friends = append(friends, server.FriendEntry{
			Username: user.Username,
			Active:   a.hub.IsActive(user.ID),
		})
	}
	writeJSON(w, server.FriendsResponse{Ver: server.ProtocolVersion, Friends: friends})
}

func (a *apiHandlers) searchPlayers(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	query := r.URL.Query().Get("q")
	if utf8.RuneCountInString(query) < 2 {
		writeReason(w, server.ErrValidation)
		return
	}
	results := a.directory.Search(id.UID, query)
	users := make([]server.SearchUser, 0, len(results))
	for _, result := range results {
		users = append(users, server.SearchUser{
			Username: result.User.Username,
			Active:   a.hub.IsActive(result.User.ID),
			IsFriend: result.IsFriend,
		})
	}
	writeJSON(w, server.SearchResponse{Ver: server.ProtocolVersion, Users: users})
}

func (a *apiHandlers) sendFriendRequest(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	var req struct {
		Username string `json:"username"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	outcome, err := a.directory.SendRequest(id.UID, req.Username)
	if err != nil {
		writeReason(w, mapSocialErr(err))
		return
	}
	writeJSON(w, server.AckResponse{
		Ver:            server.ProtocolVersion,
		OK:             true,
		NoOp:           outcome.Duplicate,
		AlreadyFriends: outcome.AlreadyFriends,
	})
}

func (a *apiHandlers) respondFriendRequest(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	var req struct {
		ID     string `json:"id"`
		From   string `json:"from"`
		Accept bool   `json:"accept"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := a.directory.Respond(id.UID, req.ID, req.From, req.Accept); err != nil {
		writeReason(w, mapSocialErr(err))
		return
	}
	writeJSON(w, server.AckResponse{Ver: server.ProtocolVersion, OK: true})
}

func (a *apiHandlers) createInvite(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	var req struct {
		Username string `json:"username"`
		Mode     string `json:"mode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	target, ok := a.directory.Lookup(req.Username)
	if !ok {
		writeReason(w, server.ErrUserNotFound)
		return
	}
	invite, err := a.hub.CreateInvite(r.Context(), id.UID, target.ID, req.Mode)
	if err != nil {
		writeReason(w, err)
		return
	}
	writeJSON(w, server.InviteCreatedResponse{Ver: server.ProtocolVersion, OK: true, ID: invite.ID})
}

func (a *apiHandlers) acceptInvite(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	var req struct {
		ID string `json:"id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	start, noOp, err := a.hub.AcceptInvite(r.Context(), req.ID, id.UID)
	if err != nil {
		writeReason(w, err)
		return
	}
	writeJSON(w, server.InviteResolveResponse{Ver: server.ProtocolVersion, OK: true, NoOp: noOp, Start: start})
}

func (a *apiHandlers) declineInvite(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	a.resolveInvite(w, r, id, a.hub.DeclineInvite)
}

func (a *apiHandlers) cancelInvite(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	a.resolveInvite(w, r, id, a.hub.CancelInvite)
}

func (a *apiHandlers) resolveInvite(w nethttp.ResponseWriter, r *nethttp.Request, id identity, resolve func(context.Context, string, int64) (bool, error)) {
	var req struct {
		ID string `json:"id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	noOp, err := resolve(r.Context(), req.ID, id.UID)
	if err != nil {
		writeReason(w, err)
		return
	}
	writeJSON(w, server.InviteResolveResponse{Ver: server.ProtocolVersion, OK: true, NoOp: noOp})
}

func (a *apiHandlers) notifications(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	invites := a.hub.PendingInvites(id.UID)
	inviteNotes := make([]server.InviteNotification, 0, len(invites))
	for _, invite := range invites {
		inviteNotes = append(inviteNotes, server.InviteNotification{
			ID:        invite.ID,
			From:      a.hub.Username(invite.From),
			Mode:      invite.Mode,
			CreatedAt: invite.CreatedAt.UnixMilli(),
		})
	}

	requests := a.directory.PendingFor(id.UID)
	requestNotes := make([]server.FriendRequestNotification, 0, len(requests))
	for _, req := range requests {
		requestNotes = append(requestNotes, server.FriendRequestNotification{
			ID:   req.ID,
			From: a.hub.Username(req.From),
		})
	}

	writeJSON(w, server.NotificationsResponse{
		Ver:            server.ProtocolVersion,
		Invites:        inviteNotes,
		FriendRequests: requestNotes,
		Start:          a.hub.DrainStart(id.UID),
		World:          a.hub.CurrentWorld(id.UID),
	})
}

func (a *apiHandlers) enterQueue(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	start, world := a.hub.EnterQueue(r.Context(), id.UID, req.Mode)
	if start != nil {
		writeJSON(w, server.QueueResponse{Ver: server.ProtocolVersion, Start: start})
		return
	}
	writeJSON(w, server.QueueResponse{Ver: server.ProtocolVersion, Queued: true, World: world})
}

func (a *apiHandlers) leaveQueue(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	a.hub.LeaveQueue(id.UID)
	writeJSON(w, server.AckResponse{Ver: server.ProtocolVersion, OK: true})
}

func (a *apiHandlers) submitDuelState(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	var req struct {
		MatchID    string             `json:"matchId"`
		X          float64            `json:"x"`
		Y          float64            `json:"y"`
		Facing     string             `json:"facing"`
		Health     *float64           `json:"health"`
		Inventory  []server.ItemStack `json:"inventory"`
		Appearance server.Appearance  `json:"appearance"`
		Escort     []server.EscortRef `json:"escort"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	err := a.hub.SubmitState(id.UID, server.StateSubmission{
		MatchID:    req.MatchID,
		X:          req.X,
		Y:          req.Y,
		Facing:     req.Facing,
		Health:     req.Health,
		Inventory:  req.Inventory,
		Appearance: req.Appearance,
		Escort:     req.Escort,
	})
	if err != nil {
		writeReason(w, err)
		return
	}
	writeJSON(w, server.AckResponse{Ver: server.ProtocolVersion, OK: true})
}

func (a *apiHandlers) pullDuelState(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	matchID := r.URL.Query().Get("matchId")
	resp, err := a.hub.PullState(id.UID, matchID)
	if err != nil {
		writeReason(w, err)
		return
	}
	writeJSON(w, resp)
}

func (a *apiHandlers) reportHit(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	var req struct {
		MatchID string `json:"matchId"`
		Weapon  string `json:"weapon"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := a.hub.ReportHit(r.Context(), id.UID, req.MatchID, req.Weapon)
	if err != nil {
		writeReason(w, err)
		return
	}
	writeJSON(w, resp)
}

func (a *apiHandlers) reportTrace(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	var req struct {
		MatchID string  `json:"matchId"`
		Kind    string  `json:"kind"`
		X1      float64 `json:"x1"`
		Y1      float64 `json:"y1"`
		X2      float64 `json:"x2"`
		Y2      float64 `json:"y2"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := a.hub.ReportTrace(id.UID, req.MatchID, req.Kind, req.X1, req.Y1, req.X2, req.Y2); err != nil {
		writeReason(w, err)
		return
	}
	writeJSON(w, server.AckResponse{Ver: server.ProtocolVersion, OK: true})
}

func (a *apiHandlers) selfDown(w nethttp.ResponseWriter, r *nethttp.Request, id identity) {
	var req struct {
		MatchID string `json:"matchId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := a.hub.SelfDown(r.Context(), id.UID, req.MatchID)
	if err != nil {
		writeReason(w, err)
		return
	}
	writeJSON(w, resp)
}

func (a *apiHandlers) diagnostics(w nethttp.ResponseWriter, r *nethttp.Request) {
	payload := struct {
		Status     string          `json:"status"`
		ServerTime int64           `json:"serverTime"`
		Rooms      int             `json:"rooms"`
		Worlds     any             `json:"worlds"`
		TracerCap  int             `json:"tracerCap"`
		Presence   int64           `json:"presenceTTLMillis"`
		Telemetry  any             `json:"telemetry"`
	}{
		Status:     "ok",
		ServerTime: time.Now().UnixMilli(),
		Rooms:      a.hub.RoomCount(),
		Worlds:     a.hub.WorldCounts(),
		TracerCap:  server.TracerBufferCap(),
		Presence:   server.PresenceTTL().Milliseconds(),
		Telemetry:  a.hub.TelemetrySnapshot(),
	}
	writeJSON(w, payload)
}

var debugUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *nethttp.Request) bool { return true },
}

// debugEvents attaches an ops websocket to the streaming log sink. Game
// clients never use this; the sync protocol stays polling-only.
func (a *apiHandlers) debugEvents(stream *loggingsinks.StreamSink) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		conn, err := debugUpgrader.Upgrade(w, r, nil)
		if err != nil {
			a.logger.Printf("event tail upgrade failed: %v", err)
			return
		}
		stream.Attach(conn)
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func decodeBody(w nethttp.ResponseWriter, r *nethttp.Request, out any) bool {
	defer io.Copy(io.Discard, r.Body)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil && err != io.EOF {
		writeReason(w, server.ErrValidation)
		return false
	}
	return true
}

func writeJSON(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		nethttp.Error(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func writeReason(w nethttp.ResponseWriter, err error) {
	code := server.Reason(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(code))
	json.NewEncoder(w).Encode(server.ErrorResponse{Ver: server.ProtocolVersion, Error: code})
}

func statusFor(code string) int {
	switch code {
	case "unauthenticated":
		return nethttp.StatusUnauthorized
	case "not_found":
		return nethttp.StatusNotFound
	case "forbidden":
		return nethttp.StatusForbidden
	case "wrong_world":
		return nethttp.StatusConflict
	default:
		return nethttp.StatusBadRequest
	}
}

func mapSocialErr(err error) error {
	switch {
	case errors.Is(err, social.ErrUserNotFound):
		return server.ErrUserNotFound
	case errors.Is(err, social.ErrRequestNotFound):
		return server.ErrInviteNotFound
	case errors.Is(err, social.ErrSelfTarget):
		return server.ErrInvalidTarget
	default:
		return server.ErrValidation
	}
}
