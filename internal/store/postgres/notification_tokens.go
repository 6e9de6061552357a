package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"FriendFeedwebserver/internal/domain"
)

// StaleTokenAge is how long a device token stays eligible for pushes
// without being re-registered.
const StaleTokenAge = 270 * 24 * time.Hour

type NotificationTokensStore struct {
	pool *pgxpool.Pool
}

func NewNotificationTokensStore(pool *pgxpool.Pool) *NotificationTokensStore {
	return &NotificationTokensStore{pool: pool}
}

const tokenColumns = `id, user_id, token, platform, created_at, updated_at`

func scanToken(row pgx.Row) (domain.NotificationToken, error) {
	var (
		nt         domain.NotificationToken
		id, userID pgtype.UUID
	)
	if err := row.Scan(&id, &userID, &nt.Token, &nt.Platform, &nt.CreatedAt, &nt.UpdatedAt); err != nil {
		return domain.NotificationToken{}, err
	}
	nt.ID = uuidOrEmpty(id)
	nt.UserID = uuidOrEmpty(userID)
	return nt, nil
}

// UpsertToken registers token for userID. A token already held by another
// user moves to userID, since a device has one signed-in account.
func (s *NotificationTokensStore) UpsertToken(ctx context.Context, userID, token, platform string, when time.Time) (domain.NotificationToken, error) {
	q := `
		INSERT INTO notification_tokens (user_id, token, platform, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (token) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + tokenColumns

	nt, err := scanToken(s.pool.QueryRow(ctx, q, userID, token, platform, when))
	if err != nil {
		return domain.NotificationToken{}, fmt.Errorf("upsert notification token: %w", err)
	}
	return nt, nil
}

func (s *NotificationTokensStore) DeleteToken(ctx context.Context, userID, token string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM notification_tokens WHERE user_id = $1 AND token = $2`, userID, token); err != nil {
		return fmt.Errorf("delete notification token: %w", err)
	}
	return nil
}

// ListTokens returns userID's tokens refreshed within StaleTokenAge,
// most recently refreshed first.
func (s *NotificationTokensStore) ListTokens(ctx context.Context, userID string) ([]domain.NotificationToken, error) {
	q := `SELECT ` + tokenColumns + `
		FROM notification_tokens
		WHERE user_id = $1 AND updated_at > $2
		ORDER BY updated_at DESC`

	rows, err := s.pool.Query(ctx, q, userID, time.Now().Add(-StaleTokenAge))
	if err != nil {
		return nil, fmt.Errorf("list notification tokens: %w", err)
	}
	defer rows.Close()

	var out []domain.NotificationToken
	for rows.Next() {
		nt, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification token: %w", err)
		}
		out = append(out, nt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notification tokens: %w", err)
	}
	return out, nil
}
