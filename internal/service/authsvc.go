package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"FriendFeedwebserver/internal/auth"
	"FriendFeedwebserver/internal/domain"
)

type UsersStore interface {
	CreateUser(ctx context.Context, email, displayName, passwordHash string) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error)
	GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.User, domain.ExternalAccount, error)
	CreateUserWithExternalAccount(ctx context.Context, provider, providerID, email, displayName string) (domain.User, domain.ExternalAccount, error)
	LinkExternalAccount(ctx context.Context, userID, provider, providerID, email string) (domain.ExternalAccount, error)
	SetLastLogin(ctx context.Context, userID string, when time.Time) error
	SetPasswordHash(ctx context.Context, userID, passwordHash string) error
}

type SessionsStore interface {
	CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error)
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	RevokeSession(ctx context.Context, sessionID string, when time.Time) error
}

type IDTokenVerifier func(ctx context.Context, token, audience string) (*auth.ExternalTokenClaims, error)

type AuthService struct {
	Users      UsersStore
	Sessions   SessionsStore
	SessionTTL time.Duration
	Now        func() time.Time

	GoogleClientID      string
	VerifyGoogleIDToken IDTokenVerifier
	AppleClientID       string
	VerifyAppleIDToken  IDTokenVerifier
}

func (s *AuthService) Register(ctx context.Context, email, displayName, password, ip, userAgent string) (domain.User, string, error) {

	email = strings.TrimSpace(strings.ToLower(email))
	displayName = strings.TrimSpace(displayName)
	if err := validateDisplayName(displayName); err != nil {
		return domain.User{}, "", err
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", err
	}

	u, err := s.Users.CreateUser(ctx, email, displayName, passwordHash)
	if err != nil {
		return domain.User{}, "", err
	}

	sessID, err := s.Sessions.CreateSession(ctx, u.ID, s.now().Add(s.SessionTTL), ip, userAgent)
	if err != nil {
		return domain.User{}, "", err
	}

	return u, sessID, nil
}

func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (domain.User, string, error) {

	email = strings.TrimSpace(strings.ToLower(email))

	u, err := s.Users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", domain.ErrInvalidCredentials
		}
		return domain.User{}, "", err
	}
	if u.PasswordHash == "" {
		// Accounts created through Google or Apple have no password.
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	ok, rehash, err := auth.VerifyPassword(u.PasswordHash, password)
	if err != nil {
		return domain.User{}, "", err
	}
	if !ok {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	if rehash {
		s.upgradeHash(ctx, u.ID, password)
	}

	sessID, err := s.Sessions.CreateSession(ctx, u.ID, s.now().Add(s.SessionTTL), ip, userAgent)
	if err != nil {
		return domain.User{}, "", err
	}

	_ = s.Users.SetLastLogin(ctx, u.ID, s.now())

	return u.User, sessID, nil
}

// upgradeHash re-encodes a password made with older argon2 settings.
// Failure leaves the old hash in place; it still verifies.
func (s *AuthService) upgradeHash(ctx context.Context, userID, password string) {
	h, err := auth.HashPassword(password)
	if err == nil {
		err = s.Users.SetPasswordHash(ctx, userID, h)
	}
	if err != nil {
		slog.Default().Warn("auth: password rehash failed", "err", err, "user_id", userID)
	}
}

func (s *AuthService) LoginWithGoogle(ctx context.Context, idToken, ip, userAgent string) (domain.User, string, error) {
	verify := s.VerifyGoogleIDToken
	if verify == nil {
		verify = auth.VerifyGoogleIDToken
	}
	return s.loginExternal(ctx, "google", verify, s.GoogleClientID, idToken, ip, userAgent)
}

func (s *AuthService) LoginWithApple(ctx context.Context, idToken, ip, userAgent string) (domain.User, string, error) {
	verify := s.VerifyAppleIDToken
	if verify == nil {
		verify = auth.VerifyAppleIDToken
	}
	return s.loginExternal(ctx, "apple", verify, s.AppleClientID, idToken, ip, userAgent)
}

// loginExternal signs in with a provider identity. An unknown identity is
// linked to the user with the same verified email, or gets a new user.
func (s *AuthService) loginExternal(ctx context.Context, provider string, verify IDTokenVerifier, audience, idToken, ip, userAgent string) (domain.User, string, error) {
	if strings.TrimSpace(audience) == "" {
		return domain.User{}, "", fmt.Errorf("%s sign-in not configured: %w", provider, domain.ErrUnavailable)
	}

	claims, err := verify(ctx, idToken, audience)
	if err != nil || claims == nil || claims.Subject == "" {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}
	email := ""
	if claims.EmailVerified {
		email = strings.TrimSpace(strings.ToLower(claims.Email))
	}

	u, _, err := s.Users.GetUserByExternalAccount(ctx, provider, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		u, err = s.linkOrCreate(ctx, provider, claims.Subject, email)
	}
	if err != nil {
		return domain.User{}, "", err
	}

	sessID, err := s.Sessions.CreateSession(ctx, u.ID, s.now().Add(s.SessionTTL), ip, userAgent)
	if err != nil {
		return domain.User{}, "", err
	}

	_ = s.Users.SetLastLogin(ctx, u.ID, s.now())

	return u, sessID, nil
}

func (s *AuthService) linkOrCreate(ctx context.Context, provider, subject, email string) (domain.User, error) {
	if email != "" {
		existing, err := s.Users.GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			if _, err := s.Users.LinkExternalAccount(ctx, existing.ID, provider, subject, email); err != nil {
				return domain.User{}, err
			}
			return existing.User, nil
		case !errors.Is(err, domain.ErrNotFound):
			return domain.User{}, err
		}
	}

	displayName, _, _ := strings.Cut(email, "@")
	if displayName == "" {
		displayName = provider + " user"
	}
	if len(displayName) > maxDisplayNameLen {
		displayName = displayName[:maxDisplayNameLen]
	}
	u, _, err := s.Users.CreateUserWithExternalAccount(ctx, provider, subject, email, displayName)
	return u, err
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {

	return s.Sessions.RevokeSession(ctx, sessionID, s.now())
}

func (s *AuthService) GetUserForSession(ctx context.Context, sessionID string) (domain.User, error) {
	sess, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}

	return s.GetUser(ctx, sess.UserID)
}

// GetUser resolves an already authenticated user id, such as a bearer
// token subject.
func (s *AuthService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}
	return u, nil
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
