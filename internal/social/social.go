// Package social is the friend-graph collaborator: it owns the player
// directory, friendships, and pending friend requests, and answers the
// duel-invite allow check. The sync core treats it as external and only
// depends on the Allowed predicate.
package social

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type User struct {
	ID       int64
	Username string
}

type FriendRequest struct {
	ID   string
	From int64
	To   int64
}

type pairKey struct {
	low  int64
	high int64
}

func pairOf(a, b int64) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{low: a, high: b}
}

type Directory struct {
	mu       sync.Mutex
	byID     map[int64]*User
	byName   map[string]int64 // lowercase username -> id
	friends  map[pairKey]struct{}
	requests map[string]*FriendRequest
}

func NewDirectory() *Directory {
	return &Directory{
		byID:     make(map[int64]*User),
		byName:   make(map[string]int64),
		friends:  make(map[pairKey]struct{}),
		requests: make(map[string]*FriendRequest),
	}
}

// Register upserts a player's directory entry, refreshing the display name.
func (d *Directory) Register(uid int64, username string) {
	username = strings.TrimSpace(username)
	if username == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.byID[uid]; ok {
		if existing.Username != username {
			delete(d.byName, strings.ToLower(existing.Username))
			existing.Username = username
			d.byName[strings.ToLower(username)] = uid
		}
		return
	}
	d.byID[uid] = &User{ID: uid, Username: username}
	d.byName[strings.ToLower(username)] = uid
}

// Lookup resolves a username to a user, case-insensitively.
func (d *Directory) Lookup(username string) (User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	uid, ok := d.byName[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return User{}, false
	}
	return *d.byID[uid], true
}

// Allowed reports whether two players may duel: they must be friends. This
// is the invite broker's allow check.
func (d *Directory) Allowed(a, b int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.friends[pairOf(a, b)]
	return ok
}

// Friends returns uid's friends sorted by username.
func (d *Directory) Friends(uid int64) []User {
	d.mu.Lock()
	defer d.mu.Unlock()

	var friends []User
	for pair := range d.friends {
		var other int64
		switch uid {
		case pair.low:
			other = pair.high
		case pair.high:
			other = pair.low
		default:
			continue
		}
		if user, ok := d.byID[other]; ok {
			friends = append(friends, *user)
		}
	}
	sort.Slice(friends, func(i, j int) bool {
		return friends[i].Username < friends[j].Username
	})
	return friends
}

// SearchResult pairs a directory entry with its relation to the searcher.
type SearchResult struct {
	User     User
	IsFriend bool
}

// Search finds players whose username contains the query, case-insensitively,
// excluding the searcher. Queries shorter than two characters return nothing.
func (d *Directory) Search(searcher int64, query string) []SearchResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if utf8.RuneCountInString(query) < 2 {
		return nil
	}

	d.mu.Lock()
	users := lo.Filter(lo.Values(d.byID), func(user *User, _ int) bool {
		return user.ID != searcher && strings.Contains(strings.ToLower(user.Username), query)
	})
	results := lo.Map(users, func(user *User, _ int) SearchResult {
		_, isFriend := d.friends[pairOf(searcher, user.ID)]
		return SearchResult{User: *user, IsFriend: isFriend}
	})
	d.mu.Unlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].User.Username < results[j].User.Username
	})
	return results
}

// RequestOutcome reports what SendRequest actually did.
type RequestOutcome struct {
	AlreadyFriends bool
	Duplicate      bool
	Request        *FriendRequest
}

// SendRequest opens a friend request toward the named player. Requesting an
// existing friend or re-sending a pending request succeeds as a no-op.
func (d *Directory) SendRequest(from int64, toUsername string) (RequestOutcome, error) {
	target, ok := d.Lookup(toUsername)
	if !ok {
		return RequestOutcome{}, ErrUserNotFound
	}
	if target.ID == from {
		return RequestOutcome{}, ErrSelfTarget
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, friends := d.friends[pairOf(from, target.ID)]; friends {
		return RequestOutcome{AlreadyFriends: true}, nil
	}
	for _, req := range d.requests {
		if req.From == from && req.To == target.ID {
			return RequestOutcome{Duplicate: true, Request: req}, nil
		}
	}

	req := &FriendRequest{ID: uuid.NewString(), From: from, To: target.ID}
	d.requests[req.ID] = req
	return RequestOutcome{Request: req}, nil
}

// PendingFor lists the friend requests awaiting uid's response.
func (d *Directory) PendingFor(uid int64) []FriendRequest {
	d.mu.Lock()
	defer d.mu.Unlock()

	var pending []FriendRequest
	for _, req := range d.requests {
		if req.To == uid {
			pending = append(pending, *req)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending
}

// Respond resolves a pending request addressed to uid, by request id or by
// the sender's username. Accepting records the friendship both ways.
func (d *Directory) Respond(uid int64, requestID, fromUsername string, accept bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var req *FriendRequest
	if requestID != "" {
		candidate, ok := d.requests[requestID]
		if ok && candidate.To == uid {
			req = candidate
		}
	} else if fromUsername != "" {
		senderID, ok := d.byName[strings.ToLower(strings.TrimSpace(fromUsername))]
		if ok {
			for _, candidate := range d.requests {
				if candidate.From == senderID && candidate.To == uid {
					req = candidate
					break
				}
			}
		}
	}
	if req == nil {
		return ErrRequestNotFound
	}

	delete(d.requests, req.ID)
	if accept {
		d.friends[pairOf(req.From, req.To)] = struct{}{}
	}
	return nil
}

// Befriend records a friendship directly; test seam and admin path.
func (d *Directory) Befriend(a, b int64) {
	d.mu.Lock()
	d.friends[pairOf(a, b)] = struct{}{}
	d.mu.Unlock()
}
