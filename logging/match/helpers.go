package match

import (
	"context"

	"quickdraw/server/logging"
)

const (
	// EventQueued is emitted when a player joins a matchmaking queue.
	EventQueued logging.EventType = "match.queued"
	// EventFormed is emitted when two queued players are paired.
	EventFormed logging.EventType = "match.formed"
	// EventInvite is emitted across the invite lifecycle with the
	// transition in the payload.
	EventInvite logging.EventType = "match.invite"
)

type QueuedPayload struct {
	World string `json:"world"`
	Mode  string `json:"mode"`
}

type FormedPayload struct {
	Room  string `json:"room"`
	World string `json:"world"`
	Mode  string `json:"mode"`
}

type InvitePayload struct {
	Invite string `json:"invite"`
	Status string `json:"status"`
	Mode   string `json:"mode,omitempty"`
}

func Queued(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload QueuedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventQueued,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryMatch,
		Payload:  payload,
	})
}

func Formed(ctx context.Context, pub logging.Publisher, first, second logging.EntityRef, payload FormedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventFormed,
		Actor:    first,
		Targets:  []logging.EntityRef{second},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryMatch,
		Payload:  payload,
	})
}

func Invite(ctx context.Context, pub logging.Publisher, actor, target logging.EntityRef, payload InvitePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventInvite,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryMatch,
		Payload:  payload,
	})
}
