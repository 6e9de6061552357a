package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"FriendFeedwebserver/internal/auth"
	"FriendFeedwebserver/internal/blob"
	"FriendFeedwebserver/internal/config"
	"FriendFeedwebserver/internal/events"
	"FriendFeedwebserver/internal/feedcache"
	"FriendFeedwebserver/internal/httpapi"
	"FriendFeedwebserver/internal/metrics"
	"FriendFeedwebserver/internal/notifications"
	"FriendFeedwebserver/internal/service"
	"FriendFeedwebserver/internal/telemetry"
)

func main() {
	envFile := pflag.String("env-file", ".env", "KEY=VALUE file loaded before reading the environment")
	migrate := pflag.Bool("migrate", false, "apply the database schema before serving")
	pflag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, *migrate, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, migrate bool, logger *slog.Logger) error {
	ctx := context.Background()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "friendfeed",
		Env:         cfg.Env,
		Endpoint:    cfg.OTelEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(c)
	}()

	st, err := openBackend(ctx, cfg, migrate, logger)
	if err != nil {
		return err
	}
	defer st.close()

	m := metrics.New()

	friendsSvc := &service.FriendsService{
		Edges:       st.edges,
		Users:       st.users,
		Metrics:     m,
		Logger:      logger,
		OpTimeout:   cfg.OpTimeout,
		MaxAttempts: cfg.TxMaxAttempts,
	}
	feedSvc := &service.FeedService{
		Edges:     st.edges,
		Posts:     st.posts,
		Users:     st.users,
		Metrics:   m,
		Logger:    logger,
		Limit:     cfg.FeedLimit,
		OpTimeout: cfg.OpTimeout,
	}
	postSvc := &service.PostService{
		Posts:  st.posts,
		Edges:  st.edges,
		Logger: logger,
	}
	profileSvc := &service.ProfileService{Store: st.users}
	notificationsSvc := &service.NotificationService{
		Tokens: st.tokens,
		Users:  st.users,
		Logger: logger,
	}

	publisher, closeEvents, err := openEvents(cfg, logger)
	if err != nil {
		return err
	}
	defer closeEvents()
	friendsSvc.Events = publisher
	postSvc.Events = publisher

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			return err
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, feed cache will miss until it recovers", "addr", cfg.RedisAddr, "err", err)
		}
		cache := feedcache.NewRedisCache(rdb, cfg.FeedCacheTTL)
		feedSvc.Cache = cache
		friendsSvc.Feeds = cache
		postSvc.Feeds = cache
		logger.Info("feed cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.FeedCacheTTL)
	}

	if cfg.S3.Enabled() {
		uploader, err := blob.New(blob.Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
			Bucket:    cfg.S3.Bucket,
			PublicURL: cfg.S3.PublicURL,
		})
		if err != nil {
			return err
		}
		if err := uploader.EnsureBucket(ctx); err != nil {
			return err
		}
		profileSvc.Blobs = uploader
		postSvc.Blobs = uploader
		logger.Info("blob uploads enabled", "bucket", cfg.S3.Bucket)
	}

	if cfg.FCMCredentials != "" {
		sender, err := notifications.NewFCMSender(ctx, cfg.FCMProjectID, cfg.FCMCredentials)
		if err != nil {
			return err
		}
		notificationsSvc.Sender = sender
		friendsSvc.Notifier = notificationsSvc
		logger.Info("push notifications enabled")
	}

	var tokens *auth.TokenVerifier
	if cfg.JWTSecret != "" {
		tokens = auth.NewTokenVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	}

	router := httpapi.NewRouter(httpapi.RouterOpts{
		Logger: logger,
		IsProd: cfg.IsProd(),
		DBPing: st.ping,
		Auth: &service.AuthService{
			Users:          st.users,
			Sessions:       st.sessions,
			SessionTTL:     cfg.SessionTTL,
			GoogleClientID: cfg.GoogleClientID,
			AppleClientID:  cfg.AppleClientID,
		},
		Friends:        friendsSvc,
		Users:          &service.UsersService{Store: st.search, Edges: st.edges},
		Profile:        profileSvc,
		Posts:          postSvc,
		Feed:           feedSvc,
		Notifications:  notificationsSvc,
		Tokens:         tokens,
		CookieCodec:    auth.NewCookieCodec([]byte(cfg.CookieSecret), []byte(cfg.CookieSecretPrevious)),
		CookieSecure:   cfg.CookieSecure(),
		SessionTTL:     cfg.SessionTTL,
		Metrics:        m,
		MetricsHandler: m.Handler(),
	})

	// Cancelled on shutdown so open event streams end instead of holding
	// Shutdown until its deadline.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr, "store", st.kind)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		cancelBase()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// openEvents connects every configured broker. With none configured
// events are dropped.
func openEvents(cfg config.Config, logger *slog.Logger) (events.Publisher, func(), error) {
	var (
		pubs    events.Multi
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("friendfeed"))
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, func() { _ = nc.Drain() })
		pubs = append(pubs, events.NewNATSPublisher(nc, ""))
		logger.Info("nats events enabled", "url", cfg.NATSURL)
	}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append(closers, func() { _ = kp.Close() })
		pubs = append(pubs, kp)
		logger.Info("kafka events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	switch len(pubs) {
	case 0:
		return events.Discard{}, closeAll, nil
	case 1:
		return pubs[0], closeAll, nil
	default:
		return pubs, closeAll, nil
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
