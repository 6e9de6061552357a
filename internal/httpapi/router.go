package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"FriendFeedwebserver/internal/auth"
	"FriendFeedwebserver/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	DBPing func(context.Context) error

	Auth          *service.AuthService
	Friends       *service.FriendsService
	Users         *service.UsersService
	Profile       *service.ProfileService
	Posts         *service.PostService
	Feed          *service.FeedService
	Notifications *service.NotificationService

	// Tokens enables "Authorization: Bearer" auth next to session cookies.
	Tokens       *auth.TokenVerifier
	CookieCodec  auth.CookieCodec
	CookieSecure bool
	SessionTTL   time.Duration

	Metrics        RequestObserver
	MetricsHandler http.Handler

	// StreamHeartbeat is the SSE keep-alive interval.
	StreamHeartbeat time.Duration
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.StreamHeartbeat <= 0 {
		opts.StreamHeartbeat = 25 * time.Second
	}

	api := &api{
		logger:           logger,
		isProd:           opts.IsProd,
		dbPing:           opts.DBPing,
		authSvc:          opts.Auth,
		friendsSvc:       opts.Friends,
		usersSvc:         opts.Users,
		profileSvc:       opts.Profile,
		postSvc:          opts.Posts,
		feedSvc:          opts.Feed,
		notificationsSvc: opts.Notifications,
		tokens:           opts.Tokens,
		cookieCodec:      opts.CookieCodec,
		cookieSecure:     opts.CookieSecure,
		sessionTTL:       opts.SessionTTL,
		heartbeat:        opts.StreamHeartbeat,
		loginLimiter:     newLoginLimiter(5*time.Minute, 10),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", api.handleHealthz)
	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	}
	mux.HandleFunc("/v1/", handleV1NotFound)

	if api.authSvc == nil {
		mux.HandleFunc("POST /v1/auth/register", handleNotImplemented)
		mux.HandleFunc("POST /v1/auth/login", handleNotImplemented)
		mux.HandleFunc("POST /v1/auth/google", handleNotImplemented)
		mux.HandleFunc("POST /v1/auth/apple", handleNotImplemented)
		mux.HandleFunc("POST /v1/auth/logout", handleNotImplemented)
		mux.HandleFunc("GET /v1/users/me", handleNotImplemented)
	} else {
		mux.HandleFunc("POST /v1/auth/register", api.handleAuthRegister)
		mux.HandleFunc("POST /v1/auth/login", api.handleAuthLogin)
		mux.HandleFunc("POST /v1/auth/google", api.handleAuthLoginGoogle)
		mux.HandleFunc("POST /v1/auth/apple", api.handleAuthLoginApple)
		mux.HandleFunc("POST /v1/auth/logout", api.requireAuth(api.handleAuthLogout))
		mux.HandleFunc("GET /v1/users/me", api.requireAuth(api.handleUsersMe))

		if api.profileSvc != nil {
			mux.HandleFunc("PATCH /v1/users/me", api.requireAuth(api.handleUsersMeUpdate))
			mux.HandleFunc("POST /v1/users/me/avatar", api.requireAuth(api.handleUsersMeAvatar))
		}
		if api.usersSvc != nil {
			mux.HandleFunc("GET /v1/users/search", api.requireAuth(api.handleUsersSearch))
		}

		if api.friendsSvc != nil {
			mux.HandleFunc("GET /v1/users/{uid}/friends", api.requireSelf(api.handleFriendsList))
			mux.HandleFunc("GET /v1/users/{uid}/friends/pending", api.requireSelf(api.handleFriendsPending))
			mux.HandleFunc("GET /v1/users/{uid}/friends/connections", api.requireSelf(api.handleFriendsConnections))
			mux.HandleFunc("GET /v1/users/{uid}/friends/stream", api.requireSelf(api.handleFriendsStream))
			mux.HandleFunc("GET /v1/users/{uid}/friends/{other}", api.requireSelf(api.handleFriendsGetEdge))
			mux.HandleFunc("PUT /v1/users/{uid}/friends/{other}", api.requireSelf(api.handleFriendsSendRequest))
			mux.HandleFunc("POST /v1/users/{uid}/friends/{other}/accept", api.requireSelf(api.handleFriendsAccept))
			mux.HandleFunc("DELETE /v1/users/{uid}/friends/{other}", api.requireSelf(api.handleFriendsRemove))
			mux.HandleFunc("GET /v1/users/{uid}/explore", api.requireSelf(api.handleExplore))
		}

		if api.feedSvc != nil {
			mux.HandleFunc("GET /v1/users/{uid}/feed", api.requireSelf(api.handleFeed))
		}
		if api.postSvc != nil {
			mux.HandleFunc("POST /v1/posts", api.requireAuth(api.handlePostsCreate))
		}
		if api.notificationsSvc != nil {
			mux.HandleFunc("POST /v1/notifications/tokens", api.requireAuth(api.handleNotificationsTokenUpsert))
			mux.HandleFunc("DELETE /v1/notifications/tokens", api.requireAuth(api.handleNotificationsTokenDelete))
		}
	}

	var h http.Handler = mux
	h = Instrument(opts.Metrics)(h)
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	h = otelhttp.NewHandler(h, "friendfeed.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	return h
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "not implemented")
}

func handleV1NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger
	isProd bool

	dbPing func(context.Context) error

	authSvc          *service.AuthService
	friendsSvc       *service.FriendsService
	usersSvc         *service.UsersService
	profileSvc       *service.ProfileService
	postSvc          *service.PostService
	feedSvc          *service.FeedService
	notificationsSvc *service.NotificationService

	tokens       *auth.TokenVerifier
	cookieCodec  auth.CookieCodec
	cookieSecure bool
	sessionTTL   time.Duration
	heartbeat    time.Duration

	loginLimiter *loginLimiter
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
