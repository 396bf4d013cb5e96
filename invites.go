package server

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type InviteStatus string

const (
	InviteStatusPending   InviteStatus = "pending"
	InviteStatusAccepted  InviteStatus = "accepted"
	InviteStatusDeclined  InviteStatus = "declined"
	InviteStatusCancelled InviteStatus = "cancelled"
)

// Invite is a direct duel request between two known players. Status moves
// one-way out of pending; replayed resolutions are tolerated as no-ops.
type Invite struct {
	ID        string
	From      int64
	To        int64
	Mode      string
	Status    InviteStatus
	CreatedAt time.Time
	TTL       time.Duration
}

type inviteBroker struct {
	mu   sync.Mutex
	byID map[string]*Invite
}

func newInviteBroker() *inviteBroker {
	return &inviteBroker{byID: make(map[string]*Invite)}
}

func (b *inviteBroker) Create(from, to int64, mode string, ttl time.Duration, now time.Time) *Invite {
	invite := &Invite{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Mode:      mode,
		Status:    InviteStatusPending,
		CreatedAt: now,
		TTL:       ttl,
	}

	b.mu.Lock()
	b.byID[invite.ID] = invite
	b.mu.Unlock()

	return invite
}

// Accept transitions a pending invite addressed to acceptor. When the invite
// was already resolved by acceptor's earlier action the call reports a no-op
// success; an invite that does not exist or is not addressed to acceptor is
// not found.
func (b *inviteBroker) Accept(id string, acceptor int64) (Invite, bool, error) {
	return b.resolve(id, acceptor, false, InviteStatusAccepted)
}

func (b *inviteBroker) Decline(id string, acceptor int64) (Invite, bool, error) {
	return b.resolve(id, acceptor, false, InviteStatusDeclined)
}

func (b *inviteBroker) Cancel(id string, sender int64) (Invite, bool, error) {
	return b.resolve(id, sender, true, InviteStatusCancelled)
}

func (b *inviteBroker) resolve(id string, actor int64, asSender bool, next InviteStatus) (Invite, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	invite, ok := b.byID[id]
	if !ok {
		return Invite{}, false, ErrInviteNotFound
	}

	authorized := invite.To == actor
	if asSender {
		authorized = invite.From == actor
	}
	if !authorized {
		return Invite{}, false, ErrInviteNotFound
	}

	if invite.Status != InviteStatusPending {
		return *invite, true, nil
	}

	invite.Status = next
	return *invite, false, nil
}

// PendingFor returns the pending invites addressed to uid, oldest first.
func (b *inviteBroker) PendingFor(uid int64) []Invite {
	b.mu.Lock()
	defer b.mu.Unlock()

	var pending []Invite
	for _, invite := range b.byID {
		if invite.To == uid && invite.Status == InviteStatusPending {
			pending = append(pending, *invite)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}
