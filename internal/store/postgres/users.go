package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FriendFeedwebserver/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersStore struct {
	pool *pgxpool.Pool
}

func NewUsersStore(pool *pgxpool.Pool) *UsersStore {
	return &UsersStore{pool: pool}
}

const userColumns = `id, email, display_name, location, avatar_url, created_at, updated_at, last_login_at`

type userRow struct {
	u           domain.User
	idUUID      pgtype.UUID
	emailText   pgtype.Text
	lastLoginTS pgtype.Timestamptz
}

func (r *userRow) dest() []any {
	return []any{
		&r.idUUID,
		&r.emailText,
		&r.u.DisplayName,
		&r.u.Location,
		&r.u.AvatarURL,
		&r.u.CreatedAt,
		&r.u.UpdatedAt,
		&r.lastLoginTS,
	}
}

func (r *userRow) user() domain.User {
	u := r.u
	u.ID = uuidOrEmpty(r.idUUID)
	u.Email = textOrEmpty(r.emailText)
	u.LastLoginAt = timestamptzPtr(r.lastLoginTS)
	return u
}

func (s *UsersStore) CreateUser(ctx context.Context, email, displayName, passwordHash string) (domain.User, error) {
	q := `
		INSERT INTO users (email, display_name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	var r userRow
	if err := s.pool.QueryRow(ctx, q, nullIfEmpty(email), displayName, passwordHash).Scan(r.dest()...); err != nil {
		return domain.User{}, mapUserWriteError(err)
	}
	return r.user(), nil
}

func (s *UsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var r userRow
	if err := s.pool.QueryRow(ctx, q, id).Scan(r.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == "22P02" {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return r.user(), nil
}

func (s *UsersStore) GetUserByEmail(ctx context.Context, email string) (domain.UserWithPassword, error) {
	q := `SELECT ` + userColumns + `, password_hash FROM users WHERE email = $1 LIMIT 1`

	var (
		r    userRow
		hash string
	)
	if err := s.pool.QueryRow(ctx, q, email).Scan(append(r.dest(), &hash)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UserWithPassword{}, domain.ErrNotFound
		}
		return domain.UserWithPassword{}, fmt.Errorf("get user by email: %w", err)
	}
	return domain.UserWithPassword{User: r.user(), PasswordHash: hash}, nil
}

func (s *UsersStore) GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1::text[]::uuid[])`
	return s.queryUsers(ctx, "get users by ids", q, ids)
}

func (s *UsersStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users ORDER BY display_name ASC, id ASC`
	return s.queryUsers(ctx, "list users", q)
}

func (s *UsersStore) queryUsers(ctx context.Context, op, q string, args ...any) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var r userRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, r.user())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *UsersStore) SetLastLogin(ctx context.Context, userID string, when time.Time) error {
	const q = `
		UPDATE users
		SET last_login_at = $2, updated_at = now()
		WHERE id = $1
	`
	_, err := s.pool.Exec(ctx, q, userID, when)
	if err != nil {
		return fmt.Errorf("set last login: %w", err)
	}
	return nil
}

func (s *UsersStore) SetPasswordHash(ctx context.Context, userID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *UsersStore) UpdateProfile(ctx context.Context, userID, displayName, location string, updatedAt time.Time) (domain.User, error) {
	q := `
		UPDATE users
		SET display_name = $2, location = $3, updated_at = $4
		WHERE id = $1
		RETURNING ` + userColumns
	return s.updateOne(ctx, "update profile", q, userID, displayName, location, updatedAt)
}

func (s *UsersStore) SetAvatarURL(ctx context.Context, userID, avatarURL string, updatedAt time.Time) (domain.User, error) {
	q := `
		UPDATE users
		SET avatar_url = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + userColumns
	return s.updateOne(ctx, "set avatar", q, userID, avatarURL, updatedAt)
}

func (s *UsersStore) updateOne(ctx context.Context, op, q string, args ...any) (domain.User, error) {
	var r userRow
	if err := s.pool.QueryRow(ctx, q, args...).Scan(r.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == "22P02" {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return r.user(), nil
}

func (s *UsersStore) GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.User, domain.ExternalAccount, error) {
	const q = `
		SELECT u.id, u.email, u.display_name, u.location, u.avatar_url, u.created_at, u.updated_at, u.last_login_at,
		       a.id, a.email, a.created_at
		FROM external_accounts a
		JOIN users u ON u.id = a.user_id
		WHERE a.provider = $1 AND a.provider_id = $2
	`

	var (
		r         userRow
		acctID    pgtype.UUID
		acctEmail pgtype.Text
	)
	acct := domain.ExternalAccount{Provider: provider, ProviderID: providerID}
	err := s.pool.QueryRow(ctx, q, provider, providerID).Scan(append(r.dest(), &acctID, &acctEmail, &acct.CreatedAt)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ExternalAccount{}, domain.ErrNotFound
		}
		return domain.User{}, domain.ExternalAccount{}, fmt.Errorf("get user by external account: %w", err)
	}
	u := r.user()
	acct.ID = uuidOrEmpty(acctID)
	acct.UserID = u.ID
	acct.Email = textOrEmpty(acctEmail)
	return u, acct, nil
}

func (s *UsersStore) CreateUserWithExternalAccount(ctx context.Context, provider, providerID, email, displayName string) (domain.User, domain.ExternalAccount, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.User{}, domain.ExternalAccount{}, fmt.Errorf("begin create external user: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `
		INSERT INTO users (email, display_name)
		VALUES ($1, $2)
		RETURNING ` + userColumns
	var r userRow
	if err := tx.QueryRow(ctx, q, nullIfEmpty(email), displayName).Scan(r.dest()...); err != nil {
		return domain.User{}, domain.ExternalAccount{}, mapUserWriteError(err)
	}
	u := r.user()

	acct, err := insertExternalAccount(ctx, tx, u.ID, provider, providerID, email)
	if err != nil {
		return domain.User{}, domain.ExternalAccount{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.User{}, domain.ExternalAccount{}, fmt.Errorf("commit create external user: %w", err)
	}
	return u, acct, nil
}

func (s *UsersStore) LinkExternalAccount(ctx context.Context, userID, provider, providerID, email string) (domain.ExternalAccount, error) {
	return insertExternalAccount(ctx, s.pool, userID, provider, providerID, email)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertExternalAccount(ctx context.Context, db queryRower, userID, provider, providerID, email string) (domain.ExternalAccount, error) {
	const q = `
		INSERT INTO external_accounts (user_id, provider, provider_id, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	acct := domain.ExternalAccount{UserID: userID, Provider: provider, ProviderID: providerID, Email: email}
	var idUUID pgtype.UUID
	if err := db.QueryRow(ctx, q, userID, provider, providerID, nullIfEmpty(email)).Scan(&idUUID, &acct.CreatedAt); err != nil {
		return domain.ExternalAccount{}, mapUserWriteError(err)
	}
	acct.ID = uuidOrEmpty(idUUID)
	return acct, nil
}

func mapUserWriteError(err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		switch pgerr.ConstraintName {
		case "users_email_uq":
			return domain.ErrEmailTaken
		case "external_accounts_provider_uq":
			return domain.ErrExternalAccountExists
		default:
			return fmt.Errorf("unique violation (%s): %w", pgerr.ConstraintName, err)
		}
	}
	return fmt.Errorf("write user: %w", err)
}
