// Package ledger records final match results. The duel core issues one
// RecordResult call per finished match; everything about storage is this
// package's concern.
package ledger

import (
	"context"
	"sync"
)

// Record is one player's standing in one mode.
type Record struct {
	Wins   int64 `json:"wins"`
	Losses int64 `json:"losses"`
}

// Memory keeps standings in process. The default when no redis address is
// configured; standings vanish on restart.
type Memory struct {
	mu      sync.Mutex
	records map[string]map[int64]*Record // mode -> uid -> record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[int64]*Record)}
}

func (m *Memory) RecordResult(_ context.Context, mode string, winner, loser int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byUser, ok := m.records[mode]
	if !ok {
		byUser = make(map[int64]*Record)
		m.records[mode] = byUser
	}
	m.recordLocked(byUser, winner).Wins++
	m.recordLocked(byUser, loser).Losses++
	return nil
}

func (m *Memory) recordLocked(byUser map[int64]*Record, uid int64) *Record {
	rec, ok := byUser[uid]
	if !ok {
		rec = &Record{}
		byUser[uid] = rec
	}
	return rec
}

// Standing returns a player's record for one mode.
func (m *Memory) Standing(mode string, uid int64) Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	if byUser, ok := m.records[mode]; ok {
		if rec, ok := byUser[uid]; ok {
			return *rec
		}
	}
	return Record{}
}
