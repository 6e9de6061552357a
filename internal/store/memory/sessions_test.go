package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"FriendFeedwebserver/internal/domain"
)

func TestCreateSessionPrunesDeadSessions(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New()
	s.Now = func() time.Time { return now }
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "a@example.com", "A", "")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	expired, _ := s.CreateSession(ctx, u.ID, now.Add(time.Minute), "", "")
	revoked, _ := s.CreateSession(ctx, u.ID, now.Add(time.Hour), "", "")
	if err := s.RevokeSession(ctx, revoked, now); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}

	now = now.Add(2 * time.Minute)
	current, err := s.CreateSession(ctx, u.ID, now.Add(time.Hour), "", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if len(s.sessions) != 1 {
		t.Fatalf("expected dead sessions pruned, have %d", len(s.sessions))
	}
	for _, id := range []string{expired, revoked} {
		if _, err := s.GetSession(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("session %s: expected not found, got %v", id, err)
		}
	}
	if sess, err := s.GetSession(ctx, current); err != nil || sess.UserID != u.ID {
		t.Fatalf("GetSession: %+v %v", sess, err)
	}
}

func TestCreateSessionUnknownUser(t *testing.T) {
	if _, err := New().CreateSession(context.Background(), "ghost", time.Now().Add(time.Hour), "", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTokensMoveBetweenUsersAndExpire(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New()
	s.Now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := s.UpsertToken(ctx, "u1", "device", "ios", now); err != nil {
		t.Fatalf("UpsertToken: %v", err)
	}
	if _, err := s.UpsertToken(ctx, "u1", "old", "android", now.Add(-StaleTokenAge-time.Hour)); err != nil {
		t.Fatalf("UpsertToken: %v", err)
	}
	if _, err := s.UpsertToken(ctx, "u2", "device", "ios", now); err != nil {
		t.Fatalf("UpsertToken: %v", err)
	}

	u1, _ := s.ListTokens(ctx, "u1")
	if len(u1) != 0 {
		t.Fatalf("expected u1 to keep only a stale token, listed %+v", u1)
	}
	u2, _ := s.ListTokens(ctx, "u2")
	if len(u2) != 1 || u2[0].Token != "device" {
		t.Fatalf("expected device to move to u2, got %+v", u2)
	}

	if err := s.DeleteToken(ctx, "u1", "device"); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if u2, _ := s.ListTokens(ctx, "u2"); len(u2) != 1 {
		t.Fatalf("another user's delete must not remove the token")
	}
}
