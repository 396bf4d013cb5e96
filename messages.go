package server

import (
	"strconv"
	"time"
)

// Wire payloads returned to polling clients. Every response carries the
// protocol version and, where staleness matters, the server clock so clients
// can reconcile their own.

type WorldJoinResponse struct {
	Ver   int     `json:"ver"`
	World WorldID `json:"world"`
}

type WorldCountsResponse struct {
	Ver    int             `json:"ver"`
	Counts map[WorldID]int `json:"counts"`
}

type WhoAmIResponse struct {
	Ver      int     `json:"ver"`
	Username string  `json:"username"`
	Active   bool    `json:"active"`
	World    WorldID `json:"world"`
}

type FriendEntry struct {
	Username string `json:"username"`
	Active   bool   `json:"active"`
}

type FriendsResponse struct {
	Ver     int           `json:"ver"`
	Friends []FriendEntry `json:"friends"`
}

type SearchUser struct {
	Username string `json:"username"`
	Active   bool   `json:"active"`
	IsFriend bool   `json:"isFriend"`
}

type SearchResponse struct {
	Ver   int          `json:"ver"`
	Users []SearchUser `json:"users"`
}

// AckResponse acknowledges a mutation. NoOp marks a retried action that hit
// an already-resolved resource; that is a success, not an error.
type AckResponse struct {
	Ver            int  `json:"ver"`
	OK             bool `json:"ok"`
	NoOp           bool `json:"noOp,omitempty"`
	AlreadyFriends bool `json:"alreadyFriends,omitempty"`
}

type InviteCreatedResponse struct {
	Ver int    `json:"ver"`
	OK  bool   `json:"ok"`
	ID  string `json:"id"`
}

type InviteResolveResponse struct {
	Ver   int           `json:"ver"`
	OK    bool          `json:"ok"`
	NoOp  bool          `json:"noOp,omitempty"`
	Start *StartPayload `json:"start,omitempty"`
}

type InviteNotification struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Mode      string `json:"mode"`
	CreatedAt int64  `json:"createdAt"`
}

type FriendRequestNotification struct {
	ID   string `json:"id"`
	From string `json:"from"`
}

type NotificationsResponse struct {
	Ver            int                         `json:"ver"`
	Invites        []InviteNotification        `json:"invites"`
	FriendRequests []FriendRequestNotification `json:"friendRequests"`
	Start          *StartPayload               `json:"start,omitempty"`
	World          WorldID                     `json:"world"`
}

type QueueResponse struct {
	Ver    int           `json:"ver"`
	Queued bool          `json:"queued,omitempty"`
	World  WorldID       `json:"world,omitempty"`
	Start  *StartPayload `json:"start,omitempty"`
}

// OpponentView is the opposing player's latest snapshot as seen by a puller.
type OpponentView struct {
	ID         int64           `json:"id"`
	Username   string          `json:"username"`
	Appearance Appearance      `json:"appearance"`
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
	Facing     FacingDirection `json:"facing"`
	Health     float64         `json:"health"`
	Equipped   string          `json:"equipped"`
	UpdatedAt  int64           `json:"updatedAt"`
}

type SelfView struct {
	QuarterHealth int `json:"quarterHealth"`
}

// RoundPayload is the scoreboard on the wire. Wins is keyed by the decimal
// player id; the core keys everything by int64 and converts only here.
type RoundPayload struct {
	Number          int            `json:"number"`
	BestOf          int            `json:"bestOf"`
	Wins            map[string]int `json:"wins"`
	Ended           bool           `json:"ended"`
	MatchOver       bool           `json:"matchOver"`
	NextCountdownAt int64          `json:"nextCountdownAt,omitempty"`
}

func (r Round) payload() RoundPayload {
	wins := make(map[string]int, len(r.Wins))
	for uid, count := range r.Wins {
		wins[strconv.FormatInt(uid, 10)] = count
	}
	payload := RoundPayload{
		Number:    r.Number,
		BestOf:    r.BestOf,
		Wins:      wins,
		Ended:     r.Ended,
		MatchOver: r.MatchOver,
	}
	if !r.NextCountdownAt.IsZero() {
		payload.NextCountdownAt = r.NextCountdownAt.UnixMilli()
	}
	return payload
}

type DuelPullResponse struct {
	Ver            int           `json:"ver"`
	Opponent       *OpponentView `json:"opponent,omitempty"`
	Me             SelfView      `json:"me"`
	Round          RoundPayload  `json:"round"`
	OpponentEscort []EscortRef   `json:"opponentEscort"`
	Traces         []TraceEvent  `json:"traces"`
	ServerNow      int64         `json:"serverNow"`
}

type HitResponse struct {
	Ver            int          `json:"ver"`
	OpponentHealth int          `json:"opponentHealth"`
	RoundEnded     bool         `json:"roundEnded"`
	Round          RoundPayload `json:"round"`
}

type DownResponse struct {
	Ver   int          `json:"ver"`
	OK    bool         `json:"ok"`
	Round RoundPayload `json:"round"`
}

type ErrorResponse struct {
	Ver   int    `json:"ver"`
	Error string `json:"error"`
}

func unixMilliOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
