package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"FriendFeedwebserver/internal/domain"
)

func (s *Store) CreateUser(ctx context.Context, email, displayName, passwordHash string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createUserLocked(email, displayName, passwordHash)
}

func (s *Store) createUserLocked(email, displayName, passwordHash string) (domain.User, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if key != "" {
		if _, taken := s.byEmail[key]; taken {
			return domain.User{}, domain.ErrEmailTaken
		}
	}
	now := s.now()
	u := domain.UserWithPassword{
		User: domain.User{
			ID:          uuid.NewString(),
			Email:       key,
			DisplayName: displayName,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		PasswordHash: passwordHash,
	}
	s.users[u.ID] = u
	if key != "" {
		s.byEmail[key] = u.ID
	}
	return u.User, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u.User, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domain.UserWithPassword{}, domain.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u.User)
		}
	}
	return out, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.User)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SetLastLogin(ctx context.Context, userID string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.LastLoginAt = &when
	s.users[userID] = u
	return nil
}

func (s *Store) SetPasswordHash(ctx context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	s.users[userID] = u
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID, displayName, location string, updatedAt time.Time) (domain.User, error) {
	return s.updateUser(userID, func(u *domain.User) {
		u.DisplayName = displayName
		u.Location = location
		u.UpdatedAt = updatedAt
	})
}

func (s *Store) SetAvatarURL(ctx context.Context, userID, avatarURL string, updatedAt time.Time) (domain.User, error) {
	return s.updateUser(userID, func(u *domain.User) {
		u.AvatarURL = avatarURL
		u.UpdatedAt = updatedAt
	})
}

func (s *Store) updateUser(userID string, fn func(*domain.User)) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	fn(&u.User)
	s.users[userID] = u
	return u.User, nil
}

func externalKey(provider, providerID string) string {
	return provider + ":" + providerID
}

func (s *Store) GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.User, domain.ExternalAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.external[externalKey(provider, providerID)]
	if !ok {
		return domain.User{}, domain.ExternalAccount{}, domain.ErrNotFound
	}
	u, ok := s.users[acct.UserID]
	if !ok {
		return domain.User{}, domain.ExternalAccount{}, domain.ErrNotFound
	}
	return u.User, acct, nil
}

func (s *Store) CreateUserWithExternalAccount(ctx context.Context, provider, providerID, email, displayName string) (domain.User, domain.ExternalAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.external[externalKey(provider, providerID)]; ok {
		return domain.User{}, domain.ExternalAccount{}, domain.ErrExternalAccountExists
	}
	u, err := s.createUserLocked(email, displayName, "")
	if err != nil {
		return domain.User{}, domain.ExternalAccount{}, err
	}
	acct := s.linkLocked(u.ID, provider, providerID, email)
	return u, acct, nil
}

func (s *Store) LinkExternalAccount(ctx context.Context, userID, provider, providerID, email string) (domain.ExternalAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return domain.ExternalAccount{}, domain.ErrNotFound
	}
	if _, ok := s.external[externalKey(provider, providerID)]; ok {
		return domain.ExternalAccount{}, domain.ErrExternalAccountExists
	}
	return s.linkLocked(userID, provider, providerID, email), nil
}

func (s *Store) linkLocked(userID, provider, providerID, email string) domain.ExternalAccount {
	acct := domain.ExternalAccount{
		ID:         uuid.NewString(),
		UserID:     userID,
		Provider:   provider,
		ProviderID: providerID,
		Email:      email,
		CreatedAt:  s.now(),
	}
	s.external[externalKey(provider, providerID)] = acct
	return acct
}

// SearchUsers matches display names case-insensitively by substring.
// Names starting with q sort ahead of the rest.
func (s *Store) SearchUsers(ctx context.Context, q string, limit int, excludeUserID string) ([]domain.UserSummary, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(q)
	type hit struct {
		u      domain.User
		name   string
		prefix bool
	}
	var hits []hit
	for _, u := range users {
		name := strings.ToLower(u.DisplayName)
		if u.ID == excludeUserID || !strings.Contains(name, q) {
			continue
		}
		hits = append(hits, hit{u: u, name: name, prefix: strings.HasPrefix(name, q)})
	}
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.prefix != b.prefix {
			return a.prefix
		}
		if a.name != b.name {
			return a.name < b.name
		}
		return a.u.ID < b.u.ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]domain.UserSummary, 0, len(hits))
	for _, h := range hits {
		sum := h.u.Summary()
		sum.Email = ""
		out = append(out, sum)
	}
	return out, nil
}
