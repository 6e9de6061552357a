package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"FriendFeedwebserver/internal/domain"
)

// StaleTokenAge matches the Postgres store: older tokens are not listed.
const StaleTokenAge = 270 * 24 * time.Hour

// UpsertToken registers token for userID, taking it over from any other
// user that registered it before.
func (s *Store) UpsertToken(ctx context.Context, userID, token, platform string, when time.Time) (domain.NotificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nt, ok := s.tokens[token]
	if !ok {
		nt = domain.NotificationToken{ID: uuid.NewString(), Token: token, CreatedAt: when}
	}
	nt.UserID = userID
	nt.Platform = platform
	nt.UpdatedAt = when
	s.tokens[token] = nt
	return nt, nil
}

func (s *Store) DeleteToken(ctx context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nt, ok := s.tokens[token]; ok && nt.UserID == userID {
		delete(s.tokens, token)
	}
	return nil
}

func (s *Store) ListTokens(ctx context.Context, userID string) ([]domain.NotificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-StaleTokenAge)
	var out []domain.NotificationToken
	for _, nt := range s.tokens {
		if nt.UserID == userID && nt.UpdatedAt.After(cutoff) {
			out = append(out, nt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
