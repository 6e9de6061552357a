package memory

import (
	"context"
	"sort"

	"FriendFeedwebserver/internal/domain"
)

func (s *Store) CreatePost(ctx context.Context, p domain.Post) (domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[p.AuthorID]; !ok {
		return domain.Post{}, domain.ErrNotFound
	}
	s.posts[p.ID] = p
	return p, nil
}

// ListPostsByAuthors returns up to limit posts newest first, ties broken by
// descending id.
func (s *Store) ListPostsByAuthors(ctx context.Context, authorIDs []string, limit int) ([]domain.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(authorIDs))
	for _, id := range authorIDs {
		want[id] = struct{}{}
	}

	s.mu.Lock()
	var out []domain.Post
	for _, p := range s.posts {
		if _, ok := want[p.AuthorID]; ok {
			out = append(out, p)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
