package server

import "sync"

type queueKey struct {
	world WorldID
	mode  string
}

// matchQueue holds the per-(world, mode) FIFOs of waiting players. Pairing
// itself lives on the Hub so room creation and mailbox delivery happen in one
// place.
type matchQueue struct {
	mu      sync.Mutex
	entries map[queueKey][]int64
}

func newMatchQueue() *matchQueue {
	return &matchQueue{entries: make(map[queueKey][]int64)}
}

// Enqueue appends uid to the (world, mode) queue. A player already waiting in
// that queue is left where they are; reports whether uid was added.
func (q *matchQueue) Enqueue(uid int64, world WorldID, mode string) bool {
	key := queueKey{world: world, mode: mode}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, waiting := range q.entries[key] {
		if waiting == uid {
			return false
		}
	}
	q.entries[key] = append(q.entries[key], uid)
	return true
}

// PopPair removes and returns the two oldest entries of the (world, mode)
// queue, strictly FIFO.
func (q *matchQueue) PopPair(world WorldID, mode string) (int64, int64, bool) {
	key := queueKey{world: world, mode: mode}

	q.mu.Lock()
	defer q.mu.Unlock()

	waiting := q.entries[key]
	if len(waiting) < 2 {
		return 0, 0, false
	}
	first, second := waiting[0], waiting[1]
	remaining := append([]int64(nil), waiting[2:]...)
	if len(remaining) == 0 {
		delete(q.entries, key)
	} else {
		q.entries[key] = remaining
	}
	return first, second, true
}

// Remove drops uid from every queue it occupies. Idempotent.
func (q *matchQueue) Remove(uid int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for key, waiting := range q.entries {
		filtered := waiting[:0]
		for _, waitingUID := range waiting {
			if waitingUID != uid {
				filtered = append(filtered, waitingUID)
			}
		}
		if len(filtered) == 0 {
			delete(q.entries, key)
		} else {
			q.entries[key] = filtered
		}
	}
}

// Len reports the occupancy of one (world, mode) queue.
func (q *matchQueue) Len(world WorldID, mode string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries[queueKey{world: world, mode: mode}])
}
