package memory

import (
	"context"
	"sort"
	"time"

	"FriendFeedwebserver/internal/domain"
)

func (s *Store) GetEdge(ctx context.Context, ownerID, otherID string) (domain.Edge, error) {
	if err := ctx.Err(); err != nil {
		return domain.Edge{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.edges[edgeKey{ownerID, otherID}]
	if !ok {
		return domain.Edge{}, domain.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListEdges(ctx context.Context, ownerID string) ([]domain.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Edge
	for k, e := range s.edges {
		if k.owner == ownerID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OtherID < out[j].OtherID })
	return out, nil
}

// UpdatePair snapshots both edges with their versions, runs fn without
// holding the lock, then commits only if neither version moved.
func (s *Store) UpdatePair(ctx context.Context, userID, otherID string, fn func(domain.EdgePair, time.Time) (domain.EdgePair, bool, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fwd, rev := edgeKey{userID, otherID}, edgeKey{otherID, userID}

	s.mu.Lock()
	cur := domain.EdgePair{Forward: s.edges[fwd], Reverse: s.edges[rev]}
	fwdVer, revVer := s.versions[fwd], s.versions[rev]
	now := s.now()
	s.mu.Unlock()

	next, write, err := fn(cur, now)
	if err != nil {
		return err
	}
	if !write {
		return nil
	}
	if s.beforeCommit != nil {
		s.beforeCommit()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions[fwd] != fwdVer || s.versions[rev] != revVer {
		return domain.ErrConflict
	}
	s.put(fwd, next.Forward)
	s.put(rev, next.Reverse)
	s.signal(userID)
	s.signal(otherID)
	return nil
}

func (s *Store) put(k edgeKey, e domain.Edge) {
	s.versions[k]++
	if !e.Exists() {
		delete(s.edges, k)
		return
	}
	e.OwnerID, e.OtherID = k.owner, k.other
	s.edges[k] = e
}

// signal must be called with s.mu held.
func (s *Store) signal(ownerID string) {
	for ch := range s.watchers[ownerID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) WatchEdges(ctx context.Context, ownerID string, notify func()) error {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	if s.watchers[ownerID] == nil {
		s.watchers[ownerID] = make(map[chan struct{}]struct{})
	}
	s.watchers[ownerID][ch] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.watchers[ownerID], ch)
		if len(s.watchers[ownerID]) == 0 {
			delete(s.watchers, ownerID)
		}
		s.mu.Unlock()
	}()

	notify()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			notify()
		}
	}
}
