package server

import "sync"

// StartPayload is the one-shot notification telling a player their match has
// been formed. It is delivered at most once; the slot is swapped out on read
// so a racing double poll can never observe it twice.
type StartPayload struct {
	Ver        int     `json:"ver"`
	MatchID    string  `json:"matchId"`
	Mode       string  `json:"mode"`
	World      WorldID `json:"world"`
	OpponentID int64   `json:"opponentId"`
	Opponent   string  `json:"opponent"`
	StartedAt  int64   `json:"startedAt"`
}

type mailboxTable struct {
	mu    sync.Mutex
	slots map[int64]*StartPayload
}

func newMailboxTable() *mailboxTable {
	return &mailboxTable{slots: make(map[int64]*StartPayload)}
}

// Post replaces uid's pending start payload. A newer match supersedes an
// unread older one.
func (m *mailboxTable) Post(uid int64, payload *StartPayload) {
	m.mu.Lock()
	m.slots[uid] = payload
	m.mu.Unlock()
}

// Drain removes and returns uid's pending payload, or nil.
func (m *mailboxTable) Drain(uid int64) *StartPayload {
	m.mu.Lock()
	payload := m.slots[uid]
	delete(m.slots, uid)
	m.mu.Unlock()
	return payload
}
