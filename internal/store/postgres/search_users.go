package postgres

import (
	"context"
	"fmt"
	"strings"

	"FriendFeedwebserver/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserSearchStore struct {
	pool *pgxpool.Pool
}

func NewUserSearchStore(pool *pgxpool.Pool) *UserSearchStore {
	return &UserSearchStore{pool: pool}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchUsers ranks display names that start with q ahead of names that
// merely contain it. Email addresses are never returned.
func (s *UserSearchStore) SearchUsers(ctx context.Context, q string, limit int, excludeUserID string) ([]domain.UserSummary, error) {
	q = strings.TrimSpace(q)
	if q == "" || limit <= 0 {
		return []domain.UserSummary{}, nil
	}

	escaped := likeEscaper.Replace(q)
	const query = `
		SELECT id::text, display_name, location, avatar_url
		FROM users
		WHERE id::text <> @exclude
		  AND display_name ILIKE @contains
		ORDER BY display_name ILIKE @prefix DESC, lower(display_name), id
		LIMIT @limit
	`
	rows, err := s.pool.Query(ctx, query, pgx.NamedArgs{
		"exclude":  excludeUserID,
		"contains": "%" + escaped + "%",
		"prefix":   escaped + "%",
		"limit":    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.UserSummary, error) {
		var u domain.UserSummary
		err := row.Scan(&u.ID, &u.DisplayName, &u.Location, &u.AvatarURL)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return out, nil
}
