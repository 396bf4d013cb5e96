package server

import "time"

const (
	ProtocolVersion = 1

	// presenceTTL is how long a player is reported as active after their
	// last authenticated request.
	presenceTTL = 30 * time.Minute

	// defaultBestOf is the round format used when a room is created without
	// an explicit override. Must be odd.
	defaultBestOf = 3

	// fullQuarterHealth is a round's starting health in quarter-hearts.
	fullQuarterHealth = 4

	// tracerBufferCap bounds the per-room tracer ring. Oldest entries drop
	// on overflow.
	tracerBufferCap = 120

	// tracerMaxAge is the sweeper's age cutoff for tracer events.
	tracerMaxAge = 12 * time.Second

	// roomGracePeriod is how long a finished room survives so both clients
	// can observe the final scoreboard before the sweeper reclaims it.
	roomGracePeriod = 15 * time.Second

	// roundCountdown is the settle window between rounds.
	roundCountdown = 5 * time.Second

	// escortLimit caps the visual-only escort list carried in a player
	// state submission.
	escortLimit = 6

	// sweepInterval throttles the opportunistic request-triggered sweep.
	sweepInterval = time.Second

	defaultMode = "v1"

	// defaultHUDHealth is the cosmetic health value assumed when a client
	// omits the field from a state submission.
	defaultHUDHealth = 3.0
)

// TracerBufferCap exposes the ring bound for diagnostics payloads.
func TracerBufferCap() int { return tracerBufferCap }

// PresenceTTL exposes the liveness window for diagnostics payloads.
func PresenceTTL() time.Duration { return presenceTTL }
