package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"time"

	"FriendFeedwebserver/internal/domain"
	"FriendFeedwebserver/internal/friendship"
)

type EdgesStore interface {
	// GetEdge returns domain.ErrNotFound when owner has no record of other.
	GetEdge(ctx context.Context, ownerID, otherID string) (domain.Edge, error)
	ListEdges(ctx context.Context, ownerID string) ([]domain.Edge, error)

	// UpdatePair reads both edges, keyed from userID's side, and hands them
	// to fn with the commit timestamp. When fn asks for a write both edges
	// are committed atomically; an edge with status domain.EdgeStatusNone is
	// deleted. domain.ErrConflict means a concurrent writer won and the
	// caller may retry with fresh state.
	UpdatePair(ctx context.Context, userID, otherID string, fn func(cur domain.EdgePair, now time.Time) (domain.EdgePair, bool, error)) error

	// WatchEdges blocks until ctx is done or the watch fails. notify is
	// called once when the watch is established and after every commit
	// that touches an edge owned by ownerID.
	WatchEdges(ctx context.Context, ownerID string, notify func()) error
}

type FriendsUsersStore interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type FriendshipEventPublisher interface {
	PublishFriendship(ctx context.Context, ev domain.FriendshipEvent) error
}

type FeedInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...string) error
}

type TransitionObserver interface {
	ObserveTransition(op, outcome string)
	ObserveConflict(op string)
}

type FriendsService struct {
	Edges    EdgesStore
	Users    FriendsUsersStore
	Events   FriendshipEventPublisher
	Notifier FriendshipNotifier
	Feeds    FeedInvalidator
	Metrics  TransitionObserver
	Logger   *slog.Logger

	// OpTimeout bounds each store round trip. Zero means no extra bound.
	OpTimeout time.Duration
	// MaxAttempts bounds transaction retries on write conflicts.
	MaxAttempts int
}

const defaultMaxAttempts = 5

// SendRequest asks otherID to become actorID's friend. When otherID already
// has a request pending toward actorID the call succeeds without writing
// and reports friendship.OutcomePendingByOther; strict turns any pending
// state into domain.ErrAlreadyPending.
func (s *FriendsService) SendRequest(ctx context.Context, actorID, otherID string, strict bool) (friendship.Outcome, error) {
	if s.Users != nil && actorID != otherID && otherID != "" {
		if _, err := s.Users.GetUserByID(ctx, otherID); err != nil {
			return "", fmt.Errorf("send request: %w", err)
		}
	}
	res, err := s.apply(ctx, friendship.Transition{Op: friendship.OpSend, Actor: actorID, Other: otherID, Strict: strict})
	if err != nil {
		return "", err
	}
	return res.Outcome, nil
}

// AcceptRequest accepts the request requesterID sent to accepterID.
func (s *FriendsService) AcceptRequest(ctx context.Context, accepterID, requesterID string) error {
	_, err := s.apply(ctx, friendship.Transition{Op: friendship.OpAccept, Actor: accepterID, Other: requesterID})
	return err
}

// RemoveOrReject deletes the relationship from both sides. It covers
// unfriending, rejecting an incoming request and cancelling an outgoing
// one. Removing a relationship that does not exist is a no-op.
func (s *FriendsService) RemoveOrReject(ctx context.Context, actorID, otherID string) (friendship.Outcome, error) {
	res, err := s.apply(ctx, friendship.Transition{Op: friendship.OpRemove, Actor: actorID, Other: otherID})
	if err != nil {
		return "", err
	}
	return res.Outcome, nil
}

func (s *FriendsService) apply(ctx context.Context, t friendship.Transition) (friendship.Result, error) {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	var res friendship.Result
	for attempt := 1; ; attempt++ {
		opCtx, cancel := s.opContext(ctx)
		err := s.Edges.UpdatePair(opCtx, t.Actor, t.Other, func(cur domain.EdgePair, now time.Time) (domain.EdgePair, bool, error) {
			r, err := friendship.Apply(t, cur, now)
			if err != nil {
				return cur, false, err
			}
			res = r
			return r.Next, r.Outcome.Writes(), nil
		})
		cancel()

		if err == nil {
			s.observe(t.Op, string(res.Outcome))
			s.afterCommit(ctx, t, res)
			return res, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			s.observe(t.Op, outcomeLabel(err))
			return friendship.Result{}, fmt.Errorf("%s: %w", t.Op, unavailable(err))
		}

		if s.Metrics != nil {
			s.Metrics.ObserveConflict(string(t.Op))
		}
		if attempt >= attempts {
			s.observe(t.Op, "unavailable")
			return friendship.Result{}, fmt.Errorf("%s: gave up after %d attempts: %w", t.Op, attempts, domain.ErrUnavailable)
		}
		s.logger().Debug("friendship: retrying after write conflict", "op", t.Op, "attempt", attempt, "actor_id", t.Actor, "other_id", t.Other)
	}
}

// afterCommit runs side effects of a committed transition. Failures are
// logged and never undo the commit.
func (s *FriendsService) afterCommit(ctx context.Context, t friendship.Transition, res friendship.Result) {
	if !res.Outcome.Writes() {
		return
	}
	logger := s.logger()

	if s.Feeds != nil && (t.Op != friendship.OpSend || res.Outcome == friendship.OutcomeApplied) {
		if err := s.Feeds.Invalidate(ctx, t.Actor, t.Other); err != nil {
			logger.Warn("friendship: feed cache invalidation failed", "err", err, "op", t.Op)
		}
	}

	ev := domain.FriendshipEvent{
		Type:          eventType(t.Op),
		ActorID:       t.Actor,
		OtherID:       t.Other,
		RequestSender: res.Next.Forward.RequestSender,
		OccurredAt:    res.Next.Forward.LastUpdated,
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if s.Events != nil {
		if err := s.Events.PublishFriendship(ctx, ev); err != nil {
			logger.Warn("friendship: publish event failed", "err", err, "type", ev.Type)
		}
	}

	if s.Notifier != nil && res.Outcome == friendship.OutcomeApplied && t.Op != friendship.OpRemove {
		n := FriendshipNotification{Kind: NotifyRequestReceived, ActorID: t.Actor, RecipientID: t.Other}
		if t.Op == friendship.OpAccept {
			n.Kind = NotifyRequestAccepted
		}
		if err := s.Notifier.NotifyFriendship(ctx, n); err != nil {
			logger.Warn("friendship: notify failed", "err", err, "kind", n.Kind, "user_id", t.Other)
		}
	}
}

func eventType(op friendship.Op) domain.FriendshipEventType {
	switch op {
	case friendship.OpSend:
		return domain.FriendshipRequested
	case friendship.OpAccept:
		return domain.FriendshipAccepted
	default:
		return domain.FriendshipRemoved
	}
}

// GetEdge returns ownerID's view of otherID. A missing record is reported
// as an edge with status domain.EdgeStatusNone.
func (s *FriendsService) GetEdge(ctx context.Context, ownerID, otherID string) (domain.Edge, error) {
	if ownerID == "" || otherID == "" {
		return domain.Edge{}, domain.NewValidationError(map[string]string{"user_id": "required"})
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	e, err := s.Edges.GetEdge(opCtx, ownerID, otherID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Edge{OwnerID: ownerID, OtherID: otherID}, nil
	}
	if err != nil {
		return domain.Edge{}, fmt.Errorf("get edge: %w", unavailable(err))
	}
	return e, nil
}

// ListEdges returns every edge owned by ownerID, newest first.
func (s *FriendsService) ListEdges(ctx context.Context, ownerID string) ([]domain.Edge, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	edges, err := s.Edges.ListEdges(opCtx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", unavailable(err))
	}
	sort.SliceStable(edges, func(i, j int) bool {
		if !edges[i].LastUpdated.Equal(edges[j].LastUpdated) {
			return edges[i].LastUpdated.After(edges[j].LastUpdated)
		}
		return edges[i].OtherID < edges[j].OtherID
	})
	return edges, nil
}

// ListFriends returns the accepted friends of userID.
func (s *FriendsService) ListFriends(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	edges, err := s.ListEdges(ctx, userID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range edges {
		if e.Status == domain.EdgeStatusAccepted {
			ids = append(ids, e.OtherID)
		}
	}
	profiles, err := s.profiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, profiles[id])
	}
	return out, nil
}

// ListPending returns requests other users have sent to userID.
func (s *FriendsService) ListPending(ctx context.Context, userID string) ([]domain.FriendRequest, error) {
	edges, err := s.ListEdges(ctx, userID)
	if err != nil {
		return nil, err
	}
	var incoming []domain.Edge
	for _, e := range edges {
		if e.Status == domain.EdgeStatusPending && e.RequestSender != userID {
			incoming = append(incoming, e)
		}
	}
	profiles, err := s.profiles(ctx, otherIDs(incoming))
	if err != nil {
		return nil, err
	}
	out := make([]domain.FriendRequest, 0, len(incoming))
	for _, e := range incoming {
		out = append(out, domain.FriendRequest{
			User:          profiles[e.OtherID],
			RequestSender: e.RequestSender,
			LastUpdated:   e.LastUpdated,
		})
	}
	return out, nil
}

// ListConnections returns every relationship of userID with its direction.
func (s *FriendsService) ListConnections(ctx context.Context, userID string) ([]domain.FriendConnection, error) {
	edges, err := s.ListEdges(ctx, userID)
	if err != nil {
		return nil, err
	}
	profiles, err := s.profiles(ctx, otherIDs(edges))
	if err != nil {
		return nil, err
	}
	out := make([]domain.FriendConnection, 0, len(edges))
	for _, e := range edges {
		out = append(out, domain.FriendConnection{
			User:          profiles[e.OtherID],
			Status:        e.Direction(),
			RequestSender: e.RequestSender,
			LastUpdated:   e.LastUpdated,
		})
	}
	return out, nil
}

// ExploreCandidates returns every user that is not userID and has no
// relationship with userID in any state.
func (s *FriendsService) ExploreCandidates(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	edges, err := s.ListEdges(ctx, userID)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]struct{}, len(edges)+1)
	excluded[userID] = struct{}{}
	for _, e := range edges {
		excluded[e.OtherID] = struct{}{}
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	users, err := s.Users.ListUsers(opCtx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", unavailable(err))
	}

	out := make([]domain.UserSummary, 0, len(users))
	for _, u := range users {
		if _, skip := excluded[u.ID]; skip {
			continue
		}
		out = append(out, u.Summary())
	}
	return out, nil
}

// Subscribe streams ownerID's full edge set: one snapshot right away and
// a fresh one after every change. Bursts of changes may coalesce into a
// single snapshot. The stream ends when ctx is done, when the consumer
// stops iterating, or after yielding a watch error.
func (s *FriendsService) Subscribe(ctx context.Context, ownerID string) iter.Seq2[[]domain.Edge, error] {
	return func(yield func([]domain.Edge, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		changed := make(chan struct{}, 1)
		watchErr := make(chan error, 1)
		go func() {
			watchErr <- s.Edges.WatchEdges(ctx, ownerID, func() {
				select {
				case changed <- struct{}{}:
				default:
				}
			})
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-watchErr:
				if ctx.Err() != nil {
					return
				}
				if err == nil {
					err = errors.New("watch closed")
				}
				yield(nil, fmt.Errorf("watch edges: %w", unavailable(err)))
				return
			case <-changed:
				edges, err := s.ListEdges(ctx, ownerID)
				if ctx.Err() != nil {
					return
				}
				if !yield(edges, err) {
					return
				}
			}
		}
	}
}

func (s *FriendsService) profiles(ctx context.Context, ids []string) (map[string]domain.UserSummary, error) {
	out := make(map[string]domain.UserSummary, len(ids))
	for _, id := range ids {
		out[id] = domain.UserSummary{ID: id}
	}
	if len(ids) == 0 || s.Users == nil {
		return out, nil
	}

	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	users, err := s.Users.GetUsersByIDs(opCtx, ids)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", unavailable(err))
	}
	for _, u := range users {
		out[u.ID] = u.Summary()
	}
	return out, nil
}

func otherIDs(edges []domain.Edge) []string {
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.OtherID)
	}
	return ids
}

func (s *FriendsService) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.OpTimeout)
}

func (s *FriendsService) observe(op friendship.Op, outcome string) {
	if s.Metrics != nil {
		s.Metrics.ObserveTransition(string(op), outcome)
	}
}

func (s *FriendsService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// unavailable maps an operation timeout to domain.ErrUnavailable.
func unavailable(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrUnavailable) {
		return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}
	return err
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyPending):
		return "already_pending"
	case errors.Is(err, domain.ErrAlreadyAccepted):
		return "already_accepted"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrValidation):
		return "invalid_argument"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
