package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"FriendFeedwebserver/internal/domain"
)

type SessionsStore struct {
	pool *pgxpool.Pool
}

func NewSessionsStore(pool *pgxpool.Pool) *SessionsStore {
	return &SessionsStore{pool: pool}
}

// CreateSession inserts a session and, in the same transaction, deletes
// the user's sessions that expired or were revoked.
func (s *SessionsStore) CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin create session: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM sessions
		WHERE user_id = $1 AND (expires_at <= now() OR revoked_at IS NOT NULL)
	`, userID); err != nil {
		return "", fmt.Errorf("prune sessions: %w", err)
	}

	var id pgtype.UUID
	if err := tx.QueryRow(ctx, `
		INSERT INTO sessions (user_id, expires_at, ip, user_agent)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, userID, expiresAt, nullIfEmpty(ip), nullIfEmpty(userAgent)).Scan(&id); err != nil {
		if pgCode(err) == "23503" {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("create session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit create session: %w", err)
	}
	return uuidOrEmpty(id), nil
}

// GetSession returns domain.ErrNotFound for unknown, revoked, expired or
// malformed session ids.
func (s *SessionsStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	var (
		sess       domain.Session
		id, userID pgtype.UUID
		revoked    pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, created_at, expires_at, revoked_at
		FROM sessions
		WHERE id = $1 AND revoked_at IS NULL AND expires_at > now()
	`, sessionID).Scan(&id, &userID, &sess.CreatedAt, &sess.ExpiresAt, &revoked)
	switch {
	case errors.Is(err, pgx.ErrNoRows), pgCode(err) == "22P02":
		return domain.Session{}, domain.ErrNotFound
	case err != nil:
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}

	sess.ID = uuidOrEmpty(id)
	sess.UserID = uuidOrEmpty(userID)
	sess.RevokedAt = timestamptzPtr(revoked)
	return sess, nil
}

func (s *SessionsStore) RevokeSession(ctx context.Context, sessionID string, when time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, sessionID, when)
	if err != nil && pgCode(err) != "22P02" {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
