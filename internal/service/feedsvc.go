package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"FriendFeedwebserver/internal/domain"
)

const defaultFeedLimit = 200

type FeedCache interface {
	Get(ctx context.Context, userID string) ([]domain.FeedItem, bool, error)
	Set(ctx context.Context, userID string, items []domain.FeedItem) error
}

type FeedObserver interface {
	ObserveFeedCompose(d time.Duration, cached bool)
}

type FeedUsersStore interface {
	GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error)
}

type FeedService struct {
	Edges   EdgesLister
	Posts   PostsStore
	Users   FeedUsersStore
	Cache   FeedCache
	Metrics FeedObserver
	Logger  *slog.Logger

	// Limit caps the number of posts in one feed.
	Limit     int
	OpTimeout time.Duration
	Now       func() time.Time
}

// Compose returns posts by userID and userID's accepted friends, newest
// first with ties broken by descending post id. Each item carries its
// author's current profile.
func (s *FeedService) Compose(ctx context.Context, userID string) ([]domain.FeedItem, error) {
	if userID == "" {
		return nil, domain.NewValidationError(map[string]string{"user_id": "required"})
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := s.now()

	if s.Cache != nil {
		items, ok, err := s.Cache.Get(ctx, userID)
		if err != nil {
			logger.Warn("feed: cache read failed", "err", err, "user_id", userID)
		} else if ok {
			s.observe(start, true)
			return items, nil
		}
	}

	items, err := s.compose(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, userID, items); err != nil {
			logger.Warn("feed: cache write failed", "err", err, "user_id", userID)
		}
	}
	s.observe(start, false)
	return items, nil
}

func (s *FeedService) compose(ctx context.Context, userID string) ([]domain.FeedItem, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	edges, err := s.Edges.ListEdges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("feed friends: %w", unavailable(err))
	}
	authors := []string{userID}
	for _, e := range edges {
		if e.Status == domain.EdgeStatusAccepted {
			authors = append(authors, e.OtherID)
		}
	}

	limit := s.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	posts, err := s.Posts.ListPostsByAuthors(ctx, authors, limit)
	if err != nil {
		return nil, fmt.Errorf("feed posts: %w", unavailable(err))
	}
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
	if len(posts) > limit {
		posts = posts[:limit]
	}

	seen := map[string]struct{}{}
	var ids []string
	for _, p := range posts {
		if _, ok := seen[p.AuthorID]; !ok {
			seen[p.AuthorID] = struct{}{}
			ids = append(ids, p.AuthorID)
		}
	}
	profiles := make(map[string]domain.UserSummary, len(ids))
	if len(ids) > 0 {
		users, err := s.Users.GetUsersByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("feed authors: %w", unavailable(err))
		}
		for _, u := range users {
			profiles[u.ID] = u.Summary()
		}
	}

	items := make([]domain.FeedItem, 0, len(posts))
	for _, p := range posts {
		author, ok := profiles[p.AuthorID]
		if !ok {
			author = domain.UserSummary{ID: p.AuthorID}
		}
		items = append(items, domain.FeedItem{Post: p, Author: author})
	}
	return items, nil
}

func (s *FeedService) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.OpTimeout)
}

func (s *FeedService) observe(start time.Time, cached bool) {
	if s.Metrics != nil {
		s.Metrics.ObserveFeedCompose(s.now().Sub(start), cached)
	}
}

func (s *FeedService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
