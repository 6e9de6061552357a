package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"FriendFeedwebserver/internal/domain"
	"FriendFeedwebserver/internal/friendship"
	"FriendFeedwebserver/internal/store/memory"
)

type friendsFixture struct {
	store *memory.Store
	svc   *FriendsService
	ids   map[string]string
}

func newFriendsFixture(t *testing.T, names ...string) *friendsFixture {
	t.Helper()
	st := memory.New()
	ids := map[string]string{}
	for _, name := range names {
		u, err := st.CreateUser(context.Background(), name+"@example.com", name, "")
		if err != nil {
			t.Fatalf("CreateUser %s: %v", name, err)
		}
		ids[name] = u.ID
	}
	return &friendsFixture{
		store: st,
		svc:   &FriendsService{Edges: st, Users: st, OpTimeout: time.Second},
		ids:   ids,
	}
}

func (f *friendsFixture) expectPair(t *testing.T, a, b string, status domain.EdgeStatus, sender string) {
	t.Helper()
	ctx := context.Background()
	fwd, err := f.svc.GetEdge(ctx, f.ids[a], f.ids[b])
	if err != nil {
		t.Fatalf("GetEdge %s->%s: %v", a, b, err)
	}
	rev, err := f.svc.GetEdge(ctx, f.ids[b], f.ids[a])
	if err != nil {
		t.Fatalf("GetEdge %s->%s: %v", b, a, err)
	}
	if fwd.Status != status || rev.Status != status {
		t.Fatalf("expected %q on both sides, got %q and %q", status, fwd.Status, rev.Status)
	}
	wantSender := ""
	if sender != "" {
		wantSender = f.ids[sender]
	}
	if fwd.RequestSender != wantSender || rev.RequestSender != wantSender {
		t.Fatalf("expected sender %s on both sides, got %q and %q", sender, fwd.RequestSender, rev.RequestSender)
	}
}

func TestFriendsServiceRequestAcceptRemove(t *testing.T) {
	f := newFriendsFixture(t, "alice", "bob")
	ctx := context.Background()
	alice, bob := f.ids["alice"], f.ids["bob"]

	out, err := f.svc.SendRequest(ctx, alice, bob, false)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if out != friendship.OutcomeApplied {
		t.Fatalf("unexpected outcome: %s", out)
	}
	f.expectPair(t, "alice", "bob", domain.EdgeStatusPending, "alice")

	pending, err := f.svc.ListPending(ctx, bob)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 1 || pending[0].User.ID != alice || pending[0].User.DisplayName != "alice" {
		t.Fatalf("unexpected pending for bob: %+v", pending)
	}
	if pending, _ := f.svc.ListPending(ctx, alice); len(pending) != 0 {
		t.Fatalf("sender must not see own request as pending: %+v", pending)
	}

	if err := f.svc.AcceptRequest(ctx, bob, alice); err != nil {
		t.Fatalf("AcceptRequest: %v", err)
	}
	f.expectPair(t, "alice", "bob", domain.EdgeStatusAccepted, "alice")

	for _, pair := range [][2]string{{alice, bob}, {bob, alice}} {
		friends, err := f.svc.ListFriends(ctx, pair[0])
		if err != nil {
			t.Fatalf("ListFriends: %v", err)
		}
		if len(friends) != 1 || friends[0].ID != pair[1] {
			t.Fatalf("unexpected friends of %s: %+v", pair[0], friends)
		}
	}

	out, err = f.svc.RemoveOrReject(ctx, bob, alice)
	if err != nil {
		t.Fatalf("RemoveOrReject: %v", err)
	}
	if out != friendship.OutcomeRemoved {
		t.Fatalf("unexpected outcome: %s", out)
	}
	f.expectPair(t, "alice", "bob", domain.EdgeStatusNone, "")

	out, err = f.svc.RemoveOrReject(ctx, bob, alice)
	if err != nil || out != friendship.OutcomeNoop {
		t.Fatalf("second removal: %s %v", out, err)
	}
}

func TestFriendsServiceRejectAndCancelAreSymmetric(t *testing.T) {
	f := newFriendsFixture(t, "alice", "bob", "carol")
	ctx := context.Background()
	alice, bob, carol := f.ids["alice"], f.ids["bob"], f.ids["carol"]

	if _, err := f.svc.SendRequest(ctx, alice, bob, false); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if _, err := f.svc.RemoveOrReject(ctx, bob, alice); err != nil {
		t.Fatalf("reject: %v", err)
	}
	f.expectPair(t, "alice", "bob", domain.EdgeStatusNone, "")

	if _, err := f.svc.SendRequest(ctx, alice, carol, false); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if _, err := f.svc.RemoveOrReject(ctx, alice, carol); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	f.expectPair(t, "alice", "carol", domain.EdgeStatusNone, "")
}

func TestFriendsServiceAcceptPreconditions(t *testing.T) {
	f := newFriendsFixture(t, "alice", "bob")
	ctx := context.Background()
	alice, bob := f.ids["alice"], f.ids["bob"]

	if err := f.svc.AcceptRequest(ctx, bob, alice); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("accept without request: expected ErrInvalidTransition, got %v", err)
	}

	if _, err := f.svc.SendRequest(ctx, alice, bob, false); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if err := f.svc.AcceptRequest(ctx, alice, bob); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("sender accepting own request: expected ErrInvalidTransition, got %v", err)
	}
	f.expectPair(t, "alice", "bob", domain.EdgeStatusPending, "alice")

	if err := f.svc.AcceptRequest(ctx, bob, alice); err != nil {
		t.Fatalf("AcceptRequest: %v", err)
	}
	if err := f.svc.AcceptRequest(ctx, bob, alice); !errors.Is(err, domain.ErrAlreadyAccepted) || !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second accept: expected ErrAlreadyAccepted as an invalid transition, got %v", err)
	}
	if _, err := f.svc.SendRequest(ctx, alice, bob, false); !errors.Is(err, domain.ErrAlreadyAccepted) {
		t.Fatalf("send to friend: expected ErrAlreadyAccepted, got %v", err)
	}
}

func TestFriendsServiceSendRequestUnknownUser(t *testing.T) {
	f := newFriendsFixture(t, "alice")
	_, err := f.svc.SendRequest(context.Background(), f.ids["alice"], "nobody", false)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFriendsServiceConcurrentMutualRequestsAgreeOnSender(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFriendsFixture(t, "alice", "bob")
		alice, bob := f.ids["alice"], f.ids["bob"]

		var (
			wg       sync.WaitGroup
			start    = make(chan struct{})
			outcomes = make([]friendship.Outcome, 2)
			errs     = make([]error, 2)
		)
		for n, pair := range [][2]string{{alice, bob}, {bob, alice}} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				outcomes[n], errs[n] = f.svc.SendRequest(context.Background(), pair[0], pair[1], false)
			}()
		}
		close(start)
		wg.Wait()

		for n, err := range errs {
			if err != nil {
				t.Fatalf("run %d: send %d failed: %v", i, n, err)
			}
		}

		fwd, _ := f.svc.GetEdge(context.Background(), alice, bob)
		rev, _ := f.svc.GetEdge(context.Background(), bob, alice)
		if fwd.Status != domain.EdgeStatusPending || rev.Status != domain.EdgeStatusPending {
			t.Fatalf("run %d: expected pending on both sides: %+v %+v", i, fwd, rev)
		}
		if fwd.RequestSender != rev.RequestSender {
			t.Fatalf("run %d: sides disagree on sender: %q vs %q", i, fwd.RequestSender, rev.RequestSender)
		}

		winner := 0
		if fwd.RequestSender == bob {
			winner = 1
		}
		if outcomes[winner] != friendship.OutcomeApplied || outcomes[1-winner] != friendship.OutcomePendingByOther {
			t.Fatalf("run %d: unexpected outcomes %v with sender %q", i, outcomes, fwd.RequestSender)
		}
	}
}

func TestFriendsServiceStrictSendReportsPending(t *testing.T) {
	f := newFriendsFixture(t, "alice", "bob")
	ctx := context.Background()
	alice, bob := f.ids["alice"], f.ids["bob"]

	if _, err := f.svc.SendRequest(ctx, alice, bob, true); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if _, err := f.svc.SendRequest(ctx, bob, alice, true); !errors.Is(err, domain.ErrAlreadyPending) {
		t.Fatalf("expected ErrAlreadyPending, got %v", err)
	}
	out, err := f.svc.SendRequest(ctx, bob, alice, false)
	if err != nil || out != friendship.OutcomePendingByOther {
		t.Fatalf("lenient mutual send: %s %v", out, err)
	}
	f.expectPair(t, "alice", "bob", domain.EdgeStatusPending, "alice")
}

// seedOneSided leaves owner with an edge about other while other holds
// no record, the shape left behind by legacy single-sided writes.
func seedOneSided(t *testing.T, st EdgesStore, owner, other string, status domain.EdgeStatus, sender string) {
	t.Helper()
	err := st.UpdatePair(context.Background(), owner, other, func(_ domain.EdgePair, now time.Time) (domain.EdgePair, bool, error) {
		return domain.EdgePair{
			Forward: domain.Edge{Status: status, RequestSender: sender, LastUpdated: now},
		}, true, nil
	})
	if err != nil {
		t.Fatalf("seed one-sided edge: %v", err)
	}
}

func TestFriendsServiceHealsOneSidedRecord(t *testing.T) {
	f := newFriendsFixture(t, "alice", "bob")
	ctx := context.Background()
	alice, bob := f.ids["alice"], f.ids["bob"]

	seedOneSided(t, f.store, bob, alice, domain.EdgeStatusAccepted, alice)
	if _, err := f.store.GetEdge(ctx, alice, bob); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected alice to hold no record, got %v", err)
	}

	if _, err := f.svc.RemoveOrReject(ctx, alice, bob); err != nil {
		t.Fatalf("RemoveOrReject: %v", err)
	}
	f.expectPair(t, "alice", "bob", domain.EdgeStatusNone, "")

	seedOneSided(t, f.store, bob, alice, domain.EdgeStatusPending, bob)
	if _, err := f.svc.SendRequest(ctx, alice, bob, false); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	f.expectPair(t, "alice", "bob", domain.EdgeStatusPending, "alice")
}

// conflictingEdges fails the first n pair updates with domain.ErrConflict.
type conflictingEdges struct {
	EdgesStore
	mu    sync.Mutex
	n     int
	calls int
}

func (c *conflictingEdges) UpdatePair(ctx context.Context, a, b string, fn func(domain.EdgePair, time.Time) (domain.EdgePair, bool, error)) error {
	c.mu.Lock()
	c.calls++
	fail := c.calls <= c.n
	c.mu.Unlock()
	if fail {
		return domain.ErrConflict
	}
	return c.EdgesStore.UpdatePair(ctx, a, b, fn)
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []string
	conflicts   int
}

func (r *recordingObserver) ObserveTransition(op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, op+":"+outcome)
}

func (r *recordingObserver) ObserveConflict(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts++
}

func TestFriendsServiceRandomOperationsKeepPairsSymmetric(t *testing.T) {
	names := []string{"amy", "ben", "cal", "dee"}
	f := newFriendsFixture(t, names...)
	ctx := context.Background()
	r := rand.New(rand.NewPCG(1, 2))

	type state struct {
		status domain.EdgeStatus
		sender string
	}
	key := func(a, b string) [2]string {
		if a > b {
			a, b = b, a
		}
		return [2]string{a, b}
	}
	model := map[[2]string]state{}

	for i := range 300 {
		a := names[r.IntN(len(names))]
		b := names[r.IntN(len(names))]
		if a == b {
			continue
		}
		actor, other := f.ids[a], f.ids[b]
		cur := model[key(actor, other)]

		var err error
		switch r.IntN(3) {
		case 0:
			_, err = f.svc.SendRequest(ctx, actor, other, false)
			switch cur.status {
			case domain.EdgeStatusNone:
				model[key(actor, other)] = state{domain.EdgeStatusPending, actor}
			case domain.EdgeStatusAccepted:
				if !errors.Is(err, domain.ErrAlreadyAccepted) {
					t.Fatalf("step %d: send %s->%s to friend: got %v", i, a, b, err)
				}
				err = nil
			}
		case 1:
			err = f.svc.AcceptRequest(ctx, actor, other)
			if cur.status == domain.EdgeStatusPending && cur.sender == other {
				model[key(actor, other)] = state{domain.EdgeStatusAccepted, other}
			} else {
				if !errors.Is(err, domain.ErrInvalidTransition) {
					t.Fatalf("step %d: accept %s<-%s from %q: expected invalid transition, got %v", i, a, b, cur.status, err)
				}
				err = nil
			}
		default:
			_, err = f.svc.RemoveOrReject(ctx, actor, other)
			delete(model, key(actor, other))
		}
		if err != nil {
			t.Fatalf("step %d: %s %s: %v", i, a, b, err)
		}

		for x := range names {
			for y := x + 1; y < len(names); y++ {
				p, q := f.ids[names[x]], f.ids[names[y]]
				fwd, ferr := f.store.GetEdge(ctx, p, q)
				rev, rerr := f.store.GetEdge(ctx, q, p)
				if errors.Is(ferr, domain.ErrNotFound) != errors.Is(rerr, domain.ErrNotFound) {
					t.Fatalf("step %d: %s/%s one-sided record: %v / %v", i, names[x], names[y], ferr, rerr)
				}
				pair := domain.EdgePair{Forward: fwd, Reverse: rev}
				if ferr == nil && !pair.Consistent() {
					t.Fatalf("step %d: %s/%s records disagree: %+v", i, names[x], names[y], pair)
				}
				want := model[key(p, q)]
				if fwd.Status != want.status || fwd.RequestSender != want.sender {
					t.Fatalf("step %d: %s/%s expected %q from %q, got %q from %q", i, names[x], names[y], want.status, want.sender, fwd.Status, fwd.RequestSender)
				}
			}
		}
	}
}

func TestFriendsServiceRetriesConflicts(t *testing.T) {
	f := newFriendsFixture(t, "alice", "bob")
	edges := &conflictingEdges{EdgesStore: f.store, n: 2}
	obs := &recordingObserver{}
	f.svc.Edges = edges
	f.svc.Metrics = obs
	f.svc.MaxAttempts = 3

	if _, err := f.svc.SendRequest(context.Background(), f.ids["alice"], f.ids["bob"], false); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if edges.calls != 3 || obs.conflicts != 2 {
		t.Fatalf("expected 3 attempts and 2 conflicts, got %d and %d", edges.calls, obs.conflicts)
	}
	if len(obs.transitions) != 1 || obs.transitions[0] != "send_request:applied" {
		t.Fatalf("unexpected transitions: %v", obs.transitions)
	}
	f.expectPair(t, "alice", "bob", domain.EdgeStatusPending, "alice")
}

func TestFriendsServiceGivesUpAfterMaxAttempts(t *testing.T) {
	f := newFriendsFixture(t, "alice", "bob")
	edges := &conflictingEdges{EdgesStore: f.store, n: 100}
	f.svc.Edges = edges
	f.svc.MaxAttempts = 4

	_, err := f.svc.SendRequest(context.Background(), f.ids["alice"], f.ids["bob"], false)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if edges.calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", edges.calls)
	}
	f.expectPair(t, "alice", "bob", domain.EdgeStatusNone, "")
}

type stallingEdges struct {
	EdgesStore
}

func (stallingEdges) UpdatePair(ctx context.Context, _, _ string, _ func(domain.EdgePair, time.Time) (domain.EdgePair, bool, error)) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestFriendsServiceTimeoutIsUnavailable(t *testing.T) {
	f := newFriendsFixture(t, "alice", "bob")
	f.svc.Edges = stallingEdges{EdgesStore: f.store}
	f.svc.OpTimeout = 10 * time.Millisecond

	_, err := f.svc.RemoveOrReject(context.Background(), f.ids["alice"], f.ids["bob"])
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestFriendsServiceExploreExcludesEveryRelationship(t *testing.T) {
	f := newFriendsFixture(t, "alice", "bob", "carol", "dave", "erin")
	ctx := context.Background()
	ids := f.ids

	if _, err := f.svc.SendRequest(ctx, ids["alice"], ids["bob"], false); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := f.svc.AcceptRequest(ctx, ids["bob"], ids["alice"]); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.SendRequest(ctx, ids["alice"], ids["carol"], false); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := f.svc.SendRequest(ctx, ids["dave"], ids["alice"], false); err != nil {
		t.Fatalf("send: %v", err)
	}

	got, err := f.svc.ExploreCandidates(ctx, ids["alice"])
	if err != nil {
		t.Fatalf("ExploreCandidates: %v", err)
	}
	if len(got) != 1 || got[0].ID != ids["erin"] {
		t.Fatalf("expected only erin, got %+v", got)
	}

	got, err = f.svc.ExploreCandidates(ctx, ids["erin"])
	if err != nil {
		t.Fatalf("ExploreCandidates: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected every other user for erin, got %+v", got)
	}
}

func TestFriendsServiceConnectionsCarryDirection(t *testing.T) {
	f := newFriendsFixture(t, "alice", "bob", "carol", "dave")
	ctx := context.Background()
	ids := f.ids

	_, _ = f.svc.SendRequest(ctx, ids["alice"], ids["bob"], false)
	_, _ = f.svc.SendRequest(ctx, ids["carol"], ids["alice"], false)
	_, _ = f.svc.SendRequest(ctx, ids["alice"], ids["dave"], false)
	if err := f.svc.AcceptRequest(ctx, ids["dave"], ids["alice"]); err != nil {
		t.Fatalf("accept: %v", err)
	}

	conns, err := f.svc.ListConnections(ctx, ids["alice"])
	if err != nil {
		t.Fatalf("ListConnections: %v", err)
	}
	got := map[string]domain.FriendStatus{}
	for _, c := range conns {
		got[c.User.ID] = c.Status
	}
	want := map[string]domain.FriendStatus{
		ids["bob"]:   domain.FriendStatusOutgoing,
		ids["carol"]: domain.FriendStatusIncoming,
		ids["dave"]:  domain.FriendStatusAccepted,
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected connections: %+v", conns)
	}
	for id, status := range want {
		if got[id] != status {
			t.Fatalf("connection %s: expected %s, got %s", id, status, got[id])
		}
	}
}

func TestFriendsServiceSubscribeStreamsSnapshots(t *testing.T) {
	f := newFriendsFixture(t, "alice", "bob")
	alice, bob := f.ids["alice"], f.ids["bob"]

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var snapshots [][]domain.Edge
	for edges, err := range f.svc.Subscribe(ctx, bob) {
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		snapshots = append(snapshots, edges)
		if len(snapshots) == 1 {
			if len(edges) != 0 {
				t.Fatalf("expected empty initial snapshot, got %+v", edges)
			}
			if _, err := f.svc.SendRequest(ctx, alice, bob, false); err != nil {
				t.Fatalf("SendRequest: %v", err)
			}
			continue
		}
		if len(edges) == 1 {
			break
		}
	}

	last := snapshots[len(snapshots)-1]
	if len(last) != 1 || last[0].OtherID != alice || last[0].Direction() != domain.FriendStatusIncoming {
		t.Fatalf("unexpected final snapshot: %+v", last)
	}
}

func TestFriendsServiceSubscribeStopsOnCancel(t *testing.T) {
	f := newFriendsFixture(t, "alice")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan int)
	go func() {
		n := 0
		for _, err := range f.svc.Subscribe(ctx, f.ids["alice"]) {
			if err != nil {
				break
			}
			n++
			if n == 1 {
				cancel()
			}
		}
		done <- n
	}()

	select {
	case n := <-done:
		if n != 1 {
			t.Fatalf("expected exactly one snapshot, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscription did not stop after cancel")
	}
}

type recordingSideEffects struct {
	mu          sync.Mutex
	events      []domain.FriendshipEvent
	notified    []FriendshipNotification
	invalidated [][]string
}

func (r *recordingSideEffects) PublishFriendship(_ context.Context, ev domain.FriendshipEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSideEffects) NotifyFriendship(_ context.Context, n FriendshipNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, n)
	return errors.New("push backend down")
}

func (r *recordingSideEffects) Invalidate(_ context.Context, ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, ids)
	return nil
}

func TestFriendsServiceSideEffectsFollowCommits(t *testing.T) {
	f := newFriendsFixture(t, "alice", "bob")
	rec := &recordingSideEffects{}
	f.svc.Events = rec
	f.svc.Notifier = rec
	f.svc.Feeds = rec
	ctx := context.Background()
	alice, bob := f.ids["alice"], f.ids["bob"]

	if _, err := f.svc.SendRequest(ctx, alice, bob, false); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if _, err := f.svc.SendRequest(ctx, bob, alice, false); err != nil {
		t.Fatalf("mutual SendRequest: %v", err)
	}
	if err := f.svc.AcceptRequest(ctx, bob, alice); err != nil {
		t.Fatalf("AcceptRequest: %v", err)
	}
	if _, err := f.svc.RemoveOrReject(ctx, alice, bob); err != nil {
		t.Fatalf("RemoveOrReject: %v", err)
	}

	wantTypes := []domain.FriendshipEventType{domain.FriendshipRequested, domain.FriendshipAccepted, domain.FriendshipRemoved}
	if len(rec.events) != len(wantTypes) {
		t.Fatalf("unexpected events: %+v", rec.events)
	}
	for i, typ := range wantTypes {
		if rec.events[i].Type != typ {
			t.Fatalf("event %d: expected %s, got %s", i, typ, rec.events[i].Type)
		}
	}
	if rec.events[0].RequestSender != alice || rec.events[0].OccurredAt.IsZero() {
		t.Fatalf("unexpected request event: %+v", rec.events[0])
	}
	wantNotified := []FriendshipNotification{
		{Kind: NotifyRequestReceived, ActorID: alice, RecipientID: bob},
		{Kind: NotifyRequestAccepted, ActorID: bob, RecipientID: alice},
	}
	if len(rec.notified) != len(wantNotified) {
		t.Fatalf("unexpected notifications: %+v", rec.notified)
	}
	for i, want := range wantNotified {
		if rec.notified[i] != want {
			t.Fatalf("notification %d: expected %+v, got %+v", i, want, rec.notified[i])
		}
	}
	if len(rec.invalidated) != 3 {
		t.Fatalf("expected feed invalidation per committed change, got %v", rec.invalidated)
	}
}
