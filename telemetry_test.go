package server

import "testing"

func TestTelemetrySnapshot(t *testing.T) {
	counters := newTelemetryCounters()
	counters.RecordMatchFormed()
	counters.RecordRoundEnded()
	counters.RecordRoundEnded()
	counters.RecordHit()
	counters.RecordTracer()
	counters.RecordTracersPruned(5)
	counters.RecordTracersPruned(0)
	counters.RecordTracersPruned(-3)
	counters.RecordRoomSwept()

	snapshot := counters.Snapshot()
	if snapshot.MatchesFormed != 1 {
		t.Fatalf("expected 1 match formed, got %d", snapshot.MatchesFormed)
	}
	if snapshot.RoundsEnded != 2 {
		t.Fatalf("expected 2 rounds ended, got %d", snapshot.RoundsEnded)
	}
	if snapshot.TracersPruned != 5 {
		t.Fatalf("expected 5 tracers pruned, got %d", snapshot.TracersPruned)
	}
	if snapshot.RoomsSwept != 1 {
		t.Fatalf("expected 1 room swept, got %d", snapshot.RoomsSwept)
	}
}
