package server

import (
	"testing"
	"time"
)

func TestInviteAccept(t *testing.T) {
	broker := newInviteBroker()
	now := time.Now()
	invite := broker.Create(1, 2, "v1", time.Minute, now)

	resolved, noOp, err := broker.Accept(invite.ID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if noOp {
		t.Fatalf("expected first accept to apply")
	}
	if resolved.Status != InviteStatusAccepted {
		t.Fatalf("expected accepted status, got %q", resolved.Status)
	}
}

func TestInviteResolveByWrongActorNotFound(t *testing.T) {
	broker := newInviteBroker()
	invite := broker.Create(1, 2, "v1", time.Minute, time.Now())

	if _, _, err := broker.Accept(invite.ID, 3); err != ErrInviteNotFound {
		t.Fatalf("expected not found for a stranger, got %v", err)
	}
	// The sender cannot accept their own invite.
	if _, _, err := broker.Accept(invite.ID, 1); err != ErrInviteNotFound {
		t.Fatalf("expected not found for the sender, got %v", err)
	}
	// Only the sender may cancel.
	if _, _, err := broker.Cancel(invite.ID, 2); err != ErrInviteNotFound {
		t.Fatalf("expected not found when the recipient cancels, got %v", err)
	}
}

func TestInviteReplayedResolutionIsNoOp(t *testing.T) {
	broker := newInviteBroker()
	invite := broker.Create(1, 2, "v1", time.Minute, time.Now())

	if _, _, err := broker.Decline(invite.ID, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resolved, noOp, err := broker.Accept(invite.ID, 2)
	if err != nil {
		t.Fatalf("expected replay to succeed, got %v", err)
	}
	if !noOp {
		t.Fatalf("expected accept after decline to report a no-op")
	}
	if resolved.Status != InviteStatusDeclined {
		t.Fatalf("expected status to stay declined, got %q", resolved.Status)
	}
}

func TestInviteUnknownIDNotFound(t *testing.T) {
	broker := newInviteBroker()
	if _, _, err := broker.Accept("missing", 2); err != ErrInviteNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInvitePendingForOldestFirst(t *testing.T) {
	broker := newInviteBroker()
	base := time.Now()
	second := broker.Create(3, 9, "v1", time.Minute, base.Add(time.Second))
	first := broker.Create(1, 9, "v1", time.Minute, base)
	resolvedAway := broker.Create(4, 9, "v1", time.Minute, base)
	broker.Decline(resolvedAway.ID, 9)
	broker.Create(1, 8, "v1", time.Minute, base)

	pending := broker.PendingFor(9)
	if len(pending) != 2 {
		t.Fatalf("expected two pending invites, got %d", len(pending))
	}
	if pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatalf("expected oldest-first ordering, got %v then %v", pending[0].ID, pending[1].ID)
	}
}
