package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkralj/chatsync/internal/domain"
	"github.com/google/uuid"
)

func newSocialFixture(t *testing.T) (*SocialService, *fakeUserRepo, uuid.UUID, uuid.UUID) {
	t.Helper()
	repo := newFakeUserRepo()
	alice := uuid.New()
	bob := uuid.New()
	repo.put(domain.User{ID: alice, Username: "alice", Visible: true, CreatedAt: time.Now()})
	repo.put(domain.User{ID: bob, Username: "bob", Visible: true, CreatedAt: time.Now()})
	return NewSocialService(repo), repo, alice, bob
}

func TestSendRequestWritesBothSides(t *testing.T) {
	svc, repo, alice, bob := newSocialFixture(t)

	if err := svc.SendRequest(context.Background(), alice, bob); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	a, _ := repo.GetByID(context.Background(), alice)
	b, _ := repo.GetByID(context.Background(), bob)
	if !domain.ContainsID(a.PendingOutgoing, bob) {
		t.Error("sender missing outgoing entry")
	}
	if !domain.ContainsID(b.PendingIncoming, alice) {
		t.Error("target missing incoming entry")
	}
}

func TestSendRequestToSelf(t *testing.T) {
	svc, _, alice, _ := newSocialFixture(t)

	if err := svc.SendRequest(context.Background(), alice, alice); !errors.Is(err, ErrCannotRequestSelf) {
		t.Errorf("got %v, want ErrCannotRequestSelf", err)
	}
}

func TestSendRequestIdempotent(t *testing.T) {
	svc, repo, alice, bob := newSocialFixture(t)

	for i := 0; i < 3; i++ {
		if err := svc.SendRequest(context.Background(), alice, bob); err != nil {
			t.Fatalf("SendRequest #%d: %v", i+1, err)
		}
	}

	a, _ := repo.GetByID(context.Background(), alice)
	if len(a.PendingOutgoing) != 1 {
		t.Errorf("outgoing set grew to %d entries, want 1", len(a.PendingOutgoing))
	}
}

func TestAcceptRequestClearsPendingAndConnects(t *testing.T) {
	svc, repo, alice, bob := newSocialFixture(t)
	ctx := context.Background()

	if err := svc.SendRequest(ctx, alice, bob); err != nil {
		t.Fatal(err)
	}
	if err := svc.AcceptRequest(ctx, bob, alice); err != nil {
		t.Fatalf("AcceptRequest: %v", err)
	}

	a, _ := repo.GetByID(ctx, alice)
	b, _ := repo.GetByID(ctx, bob)
	if !a.HasConnection(bob) || !b.HasConnection(alice) {
		t.Error("edge not reciprocal after accept")
	}
	if len(a.PendingOutgoing) != 0 || len(b.PendingIncoming) != 0 {
		t.Error("pending entries survived the accept")
	}
}

func TestCancelRequestRoundTrip(t *testing.T) {
	svc, repo, alice, bob := newSocialFixture(t)
	ctx := context.Background()

	if err := svc.SendRequest(ctx, alice, bob); err != nil {
		t.Fatal(err)
	}
	if err := svc.CancelRequest(ctx, alice, bob); err != nil {
		t.Fatalf("CancelRequest: %v", err)
	}

	a, _ := repo.GetByID(ctx, alice)
	b, _ := repo.GetByID(ctx, bob)
	if len(a.PendingOutgoing) != 0 || len(b.PendingIncoming) != 0 {
		t.Error("cancel left pending entries behind")
	}
	if a.HasConnection(bob) || b.HasConnection(alice) {
		t.Error("cancel must not create an edge")
	}
}

func TestRejectRequest(t *testing.T) {
	svc, repo, alice, bob := newSocialFixture(t)
	ctx := context.Background()

	if err := svc.SendRequest(ctx, alice, bob); err != nil {
		t.Fatal(err)
	}
	if err := svc.RejectRequest(ctx, bob, alice); err != nil {
		t.Fatalf("RejectRequest: %v", err)
	}

	a, _ := repo.GetByID(ctx, alice)
	b, _ := repo.GetByID(ctx, bob)
	if len(a.PendingOutgoing) != 0 || len(b.PendingIncoming) != 0 {
		t.Error("reject left pending entries behind")
	}
	if b.HasConnection(alice) {
		t.Error("reject must not create an edge")
	}
}

func TestRemoveConnection(t *testing.T) {
	svc, repo, alice, bob := newSocialFixture(t)
	ctx := context.Background()

	if err := svc.SendRequest(ctx, alice, bob); err != nil {
		t.Fatal(err)
	}
	if err := svc.AcceptRequest(ctx, bob, alice); err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveConnection(ctx, alice, bob); err != nil {
		t.Fatalf("RemoveConnection: %v", err)
	}

	a, _ := repo.GetByID(ctx, alice)
	b, _ := repo.GetByID(ctx, bob)
	if a.HasConnection(bob) || b.HasConnection(alice) {
		t.Error("edge survived removal")
	}
}

func TestSendRequestWhenAlreadyConnected(t *testing.T) {
	svc, _, alice, bob := newSocialFixture(t)
	ctx := context.Background()

	if err := svc.SendRequest(ctx, alice, bob); err != nil {
		t.Fatal(err)
	}
	if err := svc.AcceptRequest(ctx, bob, alice); err != nil {
		t.Fatal(err)
	}

	if err := svc.SendRequest(ctx, alice, bob); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("got %v, want ErrAlreadyConnected", err)
	}
}

func TestPairOpUnknownUser(t *testing.T) {
	svc, _, alice, _ := newSocialFixture(t)

	if err := svc.SendRequest(context.Background(), alice, uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("got %v, want ErrUserNotFound", err)
	}
}
