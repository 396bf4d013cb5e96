package server

import "sync"

// WorldID identifies one of the fixed population shards.
type WorldID string

// worldIDs is the full shard set. The first entry is the default every
// unrecognized input coerces to.
var worldIDs = []WorldID{"1", "2", "3"}

// Worlds returns the valid shard identifiers in display order.
func Worlds() []WorldID {
	out := make([]WorldID, len(worldIDs))
	copy(out, worldIDs)
	return out
}

// CoerceWorld maps arbitrary input onto a valid shard. Missing or unknown
// input lands in the first world. Never fails.
func CoerceWorld(input string) WorldID {
	for _, id := range worldIDs {
		if WorldID(input) == id {
			return id
		}
	}
	return worldIDs[0]
}

// worldDirectory tracks which shard each player currently occupies. A player
// belongs to exactly one world at any instant.
type worldDirectory struct {
	mu      sync.Mutex
	members map[WorldID]map[int64]struct{}
	byUser  map[int64]WorldID
}

func newWorldDirectory() *worldDirectory {
	members := make(map[WorldID]map[int64]struct{}, len(worldIDs))
	for _, id := range worldIDs {
		members[id] = make(map[int64]struct{})
	}
	return &worldDirectory{
		members: members,
		byUser:  make(map[int64]WorldID),
	}
}

// Set moves uid into world, removing it from every other shard first. The
// swap is atomic with respect to concurrent readers and idempotent.
func (d *worldDirectory) Set(uid int64, world WorldID) {
	world = CoerceWorld(string(world))

	d.mu.Lock()
	defer d.mu.Unlock()

	for id, set := range d.members {
		if id != world {
			delete(set, uid)
		}
	}
	d.members[world][uid] = struct{}{}
	d.byUser[uid] = world
}

// Current returns uid's shard, defaulting to the first world for players who
// never joined one.
func (d *worldDirectory) Current(uid int64) WorldID {
	d.mu.Lock()
	defer d.mu.Unlock()

	if world, ok := d.byUser[uid]; ok {
		return world
	}
	return worldIDs[0]
}

// Counts snapshots the membership size of every shard for the lobby display.
func (d *worldDirectory) Counts() map[WorldID]int {
	d.mu.Lock()
	defer d.mu.Unlock()

	counts := make(map[WorldID]int, len(d.members))
	for id, set := range d.members {
		counts[id] = len(set)
	}
	return counts
}
