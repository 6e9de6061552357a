// Package memory is an in-process document store. Every edge carries a
// version and pair updates commit optimistically, so concurrent writers
// see domain.ErrConflict the same way they would against Postgres.
package memory

import (
	"sync"
	"time"

	"FriendFeedwebserver/internal/domain"
)

type edgeKey struct {
	owner string
	other string
}

type Store struct {
	mu sync.Mutex

	edges    map[edgeKey]domain.Edge
	versions map[edgeKey]uint64
	watchers map[string]map[chan struct{}]struct{}

	users    map[string]domain.UserWithPassword
	byEmail  map[string]string
	external map[string]domain.ExternalAccount

	posts    map[string]domain.Post
	sessions map[string]domain.Session
	tokens   map[string]domain.NotificationToken // by token

	// Now stamps commits. Defaults to time.Now.
	Now func() time.Time

	// beforeCommit, when set, runs between reading a pair and validating
	// its versions. Tests use it to interleave writers.
	beforeCommit func()
}

func New() *Store {
	return &Store{
		edges:    make(map[edgeKey]domain.Edge),
		versions: make(map[edgeKey]uint64),
		watchers: make(map[string]map[chan struct{}]struct{}),
		users:    make(map[string]domain.UserWithPassword),
		byEmail:  make(map[string]string),
		external: make(map[string]domain.ExternalAccount),
		posts:    make(map[string]domain.Post),
		sessions: make(map[string]domain.Session),
		tokens:   make(map[string]domain.NotificationToken),
	}
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
