package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"FriendFeedwebserver/internal/domain"
)

const edgeChannel = "friend_edges"

type EdgesStore struct {
	pool *pgxpool.Pool
	feed *changeFeed
}

func NewEdgesStore(pool *pgxpool.Pool, logger *slog.Logger) *EdgesStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &EdgesStore{
		pool: pool,
		feed: &changeFeed{pool: pool, logger: logger, watchers: make(map[string]map[*edgeWatcher]struct{})},
	}
}

const edgeColumns = `owner_id, other_id, status, request_sender, last_updated`

func scanEdge(row pgx.Row) (domain.Edge, error) {
	var (
		e            domain.Edge
		owner, other pgtype.UUID
		sender       pgtype.UUID
		status       string
	)
	if err := row.Scan(&owner, &other, &status, &sender, &e.LastUpdated); err != nil {
		return domain.Edge{}, err
	}
	e.OwnerID = uuidOrEmpty(owner)
	e.OtherID = uuidOrEmpty(other)
	e.Status = domain.EdgeStatus(status)
	e.RequestSender = uuidOrEmpty(sender)
	return e, nil
}

func (s *EdgesStore) GetEdge(ctx context.Context, ownerID, otherID string) (domain.Edge, error) {
	q := `SELECT ` + edgeColumns + ` FROM friend_edges WHERE owner_id = $1 AND other_id = $2`

	e, err := scanEdge(s.pool.QueryRow(ctx, q, ownerID, otherID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == "22P02" {
			return domain.Edge{}, domain.ErrNotFound
		}
		return domain.Edge{}, fmt.Errorf("get edge: %w", err)
	}
	return e, nil
}

func (s *EdgesStore) ListEdges(ctx context.Context, ownerID string) ([]domain.Edge, error) {
	q := `SELECT ` + edgeColumns + ` FROM friend_edges WHERE owner_id = $1 ORDER BY last_updated DESC, other_id ASC`

	rows, err := s.pool.Query(ctx, q, ownerID)
	if err != nil {
		if pgCode(err) == "22P02" {
			return nil, nil
		}
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()

	var out []domain.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	return out, nil
}

// UpdatePair runs fn inside a serializable transaction. Two writers racing
// on the same pair make one of them fail with a serialization error or a
// duplicate key, both reported as domain.ErrConflict.
func (s *EdgesStore) UpdatePair(ctx context.Context, userID, otherID string, fn func(domain.EdgePair, time.Time) (domain.EdgePair, bool, error)) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin pair tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var now time.Time
	if err := tx.QueryRow(ctx, `SELECT now()`).Scan(&now); err != nil {
		return mapTxError("read clock", err)
	}

	q := `SELECT ` + edgeColumns + ` FROM friend_edges
		WHERE (owner_id = $1 AND other_id = $2) OR (owner_id = $2 AND other_id = $1)`
	rows, err := tx.Query(ctx, q, userID, otherID)
	if err != nil {
		return mapTxError("read pair", err)
	}
	var cur domain.EdgePair
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scan edge: %w", err)
		}
		if e.OwnerID == userID {
			cur.Forward = e
		} else {
			cur.Reverse = e
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return mapTxError("read pair", err)
	}

	next, write, err := fn(cur, now.UTC())
	if err != nil {
		return err
	}
	if !write {
		return nil
	}

	if err := writeEdge(ctx, tx, userID, otherID, next.Forward); err != nil {
		return err
	}
	if err := writeEdge(ctx, tx, otherID, userID, next.Reverse); err != nil {
		return err
	}
	for _, owner := range []string{userID, otherID} {
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, edgeChannel, owner); err != nil {
			return mapTxError("notify edge change", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapTxError("commit pair", err)
	}
	return nil
}

func writeEdge(ctx context.Context, tx pgx.Tx, ownerID, otherID string, e domain.Edge) error {
	if !e.Exists() {
		if _, err := tx.Exec(ctx, `DELETE FROM friend_edges WHERE owner_id = $1 AND other_id = $2`, ownerID, otherID); err != nil {
			return mapTxError("delete edge", err)
		}
		return nil
	}

	const q = `
		INSERT INTO friend_edges (owner_id, other_id, status, request_sender, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id, other_id)
		DO UPDATE SET
			status = EXCLUDED.status,
			request_sender = EXCLUDED.request_sender,
			last_updated = EXCLUDED.last_updated
	`
	if _, err := tx.Exec(ctx, q, ownerID, otherID, string(e.Status), e.RequestSender, e.LastUpdated); err != nil {
		return mapTxError("write edge", err)
	}
	return nil
}

func (s *EdgesStore) WatchEdges(ctx context.Context, ownerID string, notify func()) error {
	w, err := s.feed.subscribe(ctx, ownerID)
	if err != nil {
		return err
	}
	defer s.feed.unsubscribe(ownerID, w)

	notify()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.failed:
			return fmt.Errorf("edge change feed: %w", err)
		case <-w.changed:
			notify()
		}
	}
}

type edgeWatcher struct {
	changed chan struct{}
	failed  chan error
}

// changeFeed shares one LISTEN connection among all watchers. The
// connection is held only while at least one watcher exists.
type changeFeed struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[string]map[*edgeWatcher]struct{}
	count    int
	stop     context.CancelFunc
	gen      uint64
}

func (f *changeFeed) subscribe(ctx context.Context, ownerID string) (*edgeWatcher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stop == nil {
		if err := f.startLocked(ctx); err != nil {
			return nil, err
		}
	}
	w := &edgeWatcher{changed: make(chan struct{}, 1), failed: make(chan error, 1)}
	if f.watchers[ownerID] == nil {
		f.watchers[ownerID] = make(map[*edgeWatcher]struct{})
	}
	f.watchers[ownerID][w] = struct{}{}
	f.count++
	return w, nil
}

func (f *changeFeed) unsubscribe(ownerID string, w *edgeWatcher) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.watchers[ownerID][w]; !ok {
		return
	}
	delete(f.watchers[ownerID], w)
	if len(f.watchers[ownerID]) == 0 {
		delete(f.watchers, ownerID)
	}
	f.count--
	if f.count == 0 && f.stop != nil {
		f.stop()
		f.stop = nil
	}
}

func (f *changeFeed) startLocked(ctx context.Context) error {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+edgeChannel); err != nil {
		conn.Release()
		return fmt.Errorf("listen %s: %w", edgeChannel, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	f.stop = cancel
	f.gen++
	go f.run(runCtx, conn, f.gen)
	return nil
}

func (f *changeFeed) run(ctx context.Context, conn *pgxpool.Conn, gen uint64) {
	var err error
	for {
		n, waitErr := conn.Conn().WaitForNotification(ctx)
		if waitErr != nil {
			err = waitErr
			break
		}
		f.mu.Lock()
		for w := range f.watchers[n.Payload] {
			select {
			case w.changed <- struct{}{}:
			default:
			}
		}
		f.mu.Unlock()
	}

	if !conn.Conn().IsClosed() {
		_, _ = conn.Exec(context.Background(), "UNLISTEN *")
	}
	conn.Release()

	if ctx.Err() != nil {
		return
	}
	f.logger.Error("postgres: edge change feed failed", "err", err)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen {
		return
	}
	for _, ws := range f.watchers {
		for w := range ws {
			select {
			case w.failed <- err:
			default:
			}
		}
	}
	f.watchers = make(map[string]map[*edgeWatcher]struct{})
	f.count = 0
	if f.stop != nil {
		f.stop()
		f.stop = nil
	}
}
