package postgres

import (
	"context"
	"fmt"

	"FriendFeedwebserver/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostsStore struct {
	pool *pgxpool.Pool
}

func NewPostsStore(pool *pgxpool.Pool) *PostsStore {
	return &PostsStore{pool: pool}
}

func (s *PostsStore) CreatePost(ctx context.Context, p domain.Post) (domain.Post, error) {
	const q = `
		INSERT INTO posts (id, author_id, caption, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, q, p.ID, p.AuthorID, p.Caption, p.ImageURL, p.CreatedAt); err != nil {
		if code := pgCode(err); code == "23503" || code == "22P02" {
			return domain.Post{}, domain.ErrNotFound
		}
		return domain.Post{}, fmt.Errorf("create post: %w", err)
	}
	return p, nil
}

func (s *PostsStore) ListPostsByAuthors(ctx context.Context, authorIDs []string, limit int) ([]domain.Post, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}
	const q = `
		SELECT id, author_id, caption, image_url, created_at
		FROM posts
		WHERE author_id = ANY($1::text[]::uuid[])
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, q, authorIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var out []domain.Post
	for rows.Next() {
		var (
			p              domain.Post
			idUUID, author pgtype.UUID
		)
		if err := rows.Scan(&idUUID, &author, &p.Caption, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.ID = uuidOrEmpty(idUUID)
		p.AuthorID = uuidOrEmpty(author)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return out, nil
}
