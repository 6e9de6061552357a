package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"FriendFeedwebserver/internal/domain"
)

const (
	minSearchQuery = 2
	maxSearchQuery = 64
)

type UsersSearchStore interface {
	// SearchUsers matches display names by case-insensitive substring,
	// prefix matches first.
	SearchUsers(ctx context.Context, q string, limit int, excludeUserID string) ([]domain.UserSummary, error)
}

type UsersService struct {
	Store UsersSearchStore
	// Edges, when set, annotates results with the caller's relationship.
	Edges EdgesStore
}

func (s *UsersService) Search(ctx context.Context, q string, limit int, callerID string) ([]domain.UserSearchResult, error) {
	q = strings.Join(strings.Fields(q), " ")
	switch n := utf8.RuneCountInString(q); {
	case n < minSearchQuery:
		return nil, domain.NewValidationError(map[string]string{"q": fmt.Sprintf("must be at least %d characters", minSearchQuery)})
	case n > maxSearchQuery:
		return nil, domain.NewValidationError(map[string]string{"q": fmt.Sprintf("must be at most %d characters", maxSearchQuery)})
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	found, err := s.Store.SearchUsers(ctx, q, limit, callerID)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	related := map[string]domain.FriendStatus{}
	if s.Edges != nil && len(found) > 0 {
		edges, err := s.Edges.ListEdges(ctx, callerID)
		if err != nil {
			return nil, fmt.Errorf("list edges: %w", err)
		}
		for _, e := range edges {
			if e.Exists() {
				related[e.OtherID] = e.Direction()
			}
		}
	}

	out := make([]domain.UserSearchResult, 0, len(found))
	for _, u := range found {
		out = append(out, domain.UserSearchResult{UserSummary: u, Relationship: related[u.ID]})
	}
	return out, nil
}
