package server

import "time"

// Round tracks the best-of-N scoreboard of one match. It lives inside a
// DuelRoom and shares its lock.
type Round struct {
	Number          int
	BestOf          int
	Wins            map[int64]int
	Ended           bool
	MatchOver       bool
	NextCountdownAt time.Time
}

func newRound(bestOf int) Round {
	if bestOf <= 0 || bestOf%2 == 0 {
		bestOf = defaultBestOf
	}
	return Round{
		Number: 1,
		BestOf: bestOf,
		Wins:   make(map[int64]int, 2),
	}
}

// winsNeeded is the majority threshold: ceil(bestOf/2) for an odd format.
func winsNeeded(bestOf int) int {
	return bestOf/2 + 1
}

// roundOutcome describes what a round-end attempt actually did. Applied is
// false when the guard swallowed a duplicate report.
type roundOutcome struct {
	Applied   bool
	MatchOver bool
	Winner    int64
	Loser     int64
	Round     int
	Wins      map[int64]int
}

// endRoundLocked is the single idempotent round-end entry point. Callers
// must hold r.mu. A hit report and a self-down racing for the same round are
// serialized here; the ended/matchOver check-and-set happens in this one
// critical section, so exactly one of them is honored.
func (r *DuelRoom) endRoundLocked(winner int64, now time.Time, grace, countdown time.Duration) roundOutcome {
	if r.round.Ended || r.round.MatchOver {
		return roundOutcome{}
	}

	loser, ok := r.opponentOf(winner)
	if !ok {
		return roundOutcome{}
	}

	r.round.Ended = true
	r.round.Wins[winner]++

	outcome := roundOutcome{
		Applied: true,
		Winner:  winner,
		Loser:   loser,
		Round:   r.round.Number,
	}

	if r.round.Wins[winner] >= winsNeeded(r.round.BestOf) {
		r.round.MatchOver = true
		r.expiresAt = now.Add(grace)
		outcome.MatchOver = true
	} else {
		r.round.Number++
		r.round.Ended = false
		r.quarters[r.Players[0]] = fullQuarterHealth
		r.quarters[r.Players[1]] = fullQuarterHealth
		r.round.NextCountdownAt = now.Add(countdown)
	}

	outcome.Wins = make(map[int64]int, len(r.round.Wins))
	for uid, wins := range r.round.Wins {
		outcome.Wins[uid] = wins
	}
	return outcome
}
