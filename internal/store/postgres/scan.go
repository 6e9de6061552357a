package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"FriendFeedwebserver/internal/domain"
)

// nullIfEmpty stores optional text columns as NULL rather than ''.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func textOrEmpty(t pgtype.Text) string {
	if t.Valid {
		return t.String
	}
	return ""
}

func timestamptzPtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	tt := t.Time
	return &tt
}

func uuidOrEmpty(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

func pgCode(err error) string {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		return pgerr.Code
	}
	return ""
}

// mapTxError translates Postgres failures of a pair transaction into the
// errors the friends service retries or reports.
func mapTxError(op string, err error) error {
	switch pgCode(err) {
	case "40001", "40P01", "23505":
		// serialization_failure, deadlock_detected, or a concurrent insert
		// of the same edge.
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	case "22P02", "23503":
		// A malformed id or a missing user.
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
