package server

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMatchesFormed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickdraw_matches_formed_total",
		Help: "Matches created by queue pairing or invite acceptance",
	})
	metricRoundsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickdraw_rounds_ended_total",
		Help: "Rounds resolved by lethal hit or self-down",
	})
	metricHitsReported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickdraw_hits_reported_total",
		Help: "Hit reports accepted",
	})
	metricTracersReported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickdraw_tracers_reported_total",
		Help: "Tracer events appended to room buffers",
	})
	metricTracersPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickdraw_tracers_pruned_total",
		Help: "Tracer events removed by the age prune",
	})
	metricRoomsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickdraw_rooms_swept_total",
		Help: "Rooms reclaimed after their post-match grace period",
	})
)

// telemetryCounters doubles the prometheus counters with cheaply readable
// atomics so /diagnostics can report a snapshot without scraping.
type telemetryCounters struct {
	matchesFormed   atomic.Uint64
	roundsEnded     atomic.Uint64
	hitsReported    atomic.Uint64
	tracersReported atomic.Uint64
	tracersPruned   atomic.Uint64
	roomsSwept      atomic.Uint64
}

type telemetrySnapshot struct {
	MatchesFormed   uint64 `json:"matchesFormed"`
	RoundsEnded     uint64 `json:"roundsEnded"`
	HitsReported    uint64 `json:"hitsReported"`
	TracersReported uint64 `json:"tracersReported"`
	TracersPruned   uint64 `json:"tracersPruned"`
	RoomsSwept      uint64 `json:"roomsSwept"`
}

func newTelemetryCounters() *telemetryCounters {
	return &telemetryCounters{}
}

func (t *telemetryCounters) RecordMatchFormed() {
	t.matchesFormed.Add(1)
	metricMatchesFormed.Inc()
}

func (t *telemetryCounters) RecordRoundEnded() {
	t.roundsEnded.Add(1)
	metricRoundsEnded.Inc()
}

func (t *telemetryCounters) RecordHit() {
	t.hitsReported.Add(1)
	metricHitsReported.Inc()
}

func (t *telemetryCounters) RecordTracer() {
	t.tracersReported.Add(1)
	metricTracersReported.Inc()
}

func (t *telemetryCounters) RecordTracersPruned(count int) {
	if count <= 0 {
		return
	}
	t.tracersPruned.Add(uint64(count))
	metricTracersPruned.Add(float64(count))
}

func (t *telemetryCounters) RecordRoomSwept() {
	t.roomsSwept.Add(1)
	metricRoomsSwept.Inc()
}

func (t *telemetryCounters) Snapshot() telemetrySnapshot {
	return telemetrySnapshot{
		MatchesFormed:   t.matchesFormed.Load(),
		RoundsEnded:     t.roundsEnded.Load(),
		HitsReported:    t.hitsReported.Load(),
		TracersReported: t.tracersReported.Load(),
		TracersPruned:   t.tracersPruned.Load(),
		RoomsSwept:      t.roomsSwept.Load(),
	}
}
