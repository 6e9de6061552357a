package main

import (
	"context"
	"log/slog"

	"FriendFeedwebserver/internal/config"
	"FriendFeedwebserver/internal/service"
	"FriendFeedwebserver/internal/store/memory"
	"FriendFeedwebserver/internal/store/postgres"
)

type userStore interface {
	service.UsersStore
	service.FriendsUsersStore
	service.ProfileStore
}

type backend struct {
	kind     string
	edges    service.EdgesStore
	users    userStore
	sessions service.SessionsStore
	tokens   service.NotificationTokensStore
	posts    service.PostsStore
	search   service.UsersSearchStore
	ping     func(context.Context) error
	close    func()
}

// openBackend uses PostgreSQL when a DSN is configured and an in-process
// store otherwise. The in-process store loses everything on restart.
func openBackend(ctx context.Context, cfg config.Config, migrate bool, logger *slog.Logger) (backend, error) {
	if cfg.DBDSN == "" {
		logger.Warn("APP_DB_DSN not set, using in-memory store")
		st := memory.New()
		return backend{
			kind:     "memory",
			edges:    st,
			users:    st,
			sessions: st,
			tokens:   st,
			posts:    st,
			search:   st,
			close:    func() {},
		}, nil
	}

	pool, err := postgres.Open(ctx, cfg.DBDSN, postgres.PoolOptions{
		MaxConns:        int32(cfg.DBMaxConns),
		ApplicationName: "friendfeed",
	})
	if err != nil {
		return backend{}, err
	}
	if migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return backend{}, err
		}
		logger.Info("database schema applied")
	}

	return backend{
		kind:     "postgres",
		edges:    postgres.NewEdgesStore(pool, logger),
		users:    postgres.NewUsersStore(pool),
		sessions: postgres.NewSessionsStore(pool),
		tokens:   postgres.NewNotificationTokensStore(pool),
		posts:    postgres.NewPostsStore(pool),
		search:   postgres.NewUserSearchStore(pool),
		ping:     pool.Ping,
		close:    pool.Close,
	}, nil
}
