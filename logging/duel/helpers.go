package duel

import (
	"context"

	"quickdraw/server/logging"
)

const (
	// EventHit is emitted when a hit report lands damage.
	EventHit logging.EventType = "duel.hit"
	// EventRoundEnd is emitted when a round resolves.
	EventRoundEnd logging.EventType = "duel.round_end"
	// EventMatchOver is emitted once per match when a player reaches the
	// winning score.
	EventMatchOver logging.EventType = "duel.match_over"
	// EventSelfDown is emitted when a player reports their own elimination.
	EventSelfDown logging.EventType = "duel.self_down"
	// EventRoomSwept is emitted when the sweeper reclaims an expired room.
	EventRoomSwept logging.EventType = "duel.room_swept"
)

// HitPayload captures a resolved hit in quarter-hearts.
type HitPayload struct {
	Weapon         string `json:"weapon"`
	Quarters       int    `json:"quarters"`
	TargetQuarters int    `json:"targetQuarters"`
}

// RoundEndPayload describes a resolved round.
type RoundEndPayload struct {
	Round      int            `json:"round"`
	Wins       map[string]int `json:"wins"`
	BySelfDown bool           `json:"bySelfDown,omitempty"`
}

// MatchOverPayload describes the final outcome.
type MatchOverPayload struct {
	Mode   string         `json:"mode"`
	Rounds int            `json:"rounds"`
	Wins   map[string]int `json:"wins"`
}

// SweepPayload accounts for one sweeper pass over a room.
type SweepPayload struct {
	TracersPruned int  `json:"tracersPruned,omitempty"`
	Deleted       bool `json:"deleted,omitempty"`
}

// Hit publishes a damage event for one hit report.
func Hit(ctx context.Context, pub logging.Publisher, actor, target logging.EntityRef, room logging.EntityRef, payload HitPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventHit,
		Actor:    actor,
		Targets:  []logging.EntityRef{target, room},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryDuel,
		Payload:  payload,
	})
}

// RoundEnd publishes the resolution of a single round.
func RoundEnd(ctx context.Context, pub logging.Publisher, winner logging.EntityRef, room logging.EntityRef, payload RoundEndPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRoundEnd,
		Actor:    winner,
		Targets:  []logging.EntityRef{room},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryDuel,
		Payload:  payload,
	})
}

// MatchOver publishes the final outcome of a match.
func MatchOver(ctx context.Context, pub logging.Publisher, winner, loser logging.EntityRef, room logging.EntityRef, payload MatchOverPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMatchOver,
		Actor:    winner,
		Targets:  []logging.EntityRef{loser, room},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryDuel,
		Payload:  payload,
	})
}

// SelfDownEvent publishes a player's own elimination report.
func SelfDownEvent(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, room logging.EntityRef) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSelfDown,
		Actor:    actor,
		Targets:  []logging.EntityRef{room},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryDuel,
	})
}

// RoomSwept publishes one sweeper pass that changed a room.
func RoomSwept(ctx context.Context, pub logging.Publisher, room logging.EntityRef, payload SweepPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRoomSwept,
		Actor:    room,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryDuel,
		Payload:  payload,
	})
}
