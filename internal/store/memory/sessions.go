package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"FriendFeedwebserver/internal/domain"
)

// CreateSession also forgets userID's expired and revoked sessions.
func (s *Store) CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return "", domain.ErrNotFound
	}

	now := s.now()
	for id, sess := range s.sessions {
		if sess.UserID == userID && !live(sess, now) {
			delete(s.sessions, id)
		}
	}
	id := uuid.NewString()
	s.sessions[id] = domain.Session{ID: id, UserID: userID, CreatedAt: now, ExpiresAt: expiresAt}
	return id, nil
}

func live(sess domain.Session, now time.Time) bool {
	return sess.RevokedAt == nil && sess.ExpiresAt.After(now)
}

// GetSession returns domain.ErrNotFound for unknown, revoked or expired
// sessions.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || !live(sess, s.now()) {
		return domain.Session{}, domain.ErrNotFound
	}
	return sess, nil
}

func (s *Store) RevokeSession(ctx context.Context, sessionID string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok && sess.RevokedAt == nil {
		sess.RevokedAt = &when
		s.sessions[sessionID] = sess
	}
	return nil
}
