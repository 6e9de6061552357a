package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	"FriendFeedwebserver/internal/auth"
	"FriendFeedwebserver/internal/domain"
)

type authCtxKey int

const (
	authUserKey authCtxKey = iota
	authSessionKey
)

// requireAuth resolves the acting user from a bearer token when one is
// presented, otherwise from the session cookie.
func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if header := r.Header.Get("Authorization"); header != "" {
			a.serveBearer(w, r, header, next)
			return
		}

		c, err := r.Cookie(auth.SessionCookieName)
		if err != nil || c.Value == "" {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}

		sessID, ok := a.cookieCodec.DecodeSessionID(c.Value)
		if !ok {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}

		u, err := a.authSvc.GetUserForSession(r.Context(), sessID)
		if err != nil {
			WriteDomainError(w, err)
			return
		}

		if a.cookieCodec.NeedsResign(c.Value) {
			auth.SetSessionCookie(w, a.cookieCodec.EncodeSessionID(sessID), a.sessionTTL, a.cookieSecure)
		}

		ctx := context.WithValue(r.Context(), authUserKey, u)
		ctx = context.WithValue(ctx, authSessionKey, sessID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func (a *api) serveBearer(w http.ResponseWriter, r *http.Request, header string, next http.HandlerFunc) {
	token, ok := auth.BearerToken(header)
	if !ok || a.tokens == nil {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	uid, err := a.tokens.Verify(token)
	if err != nil {
		a.logger.Debug("bearer token rejected", "err", err)
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	u, err := a.authSvc.GetUser(r.Context(), uid)
	if err != nil {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authUserKey, u)))
}

// requireSelf authenticates and then rejects requests whose {uid} path
// segment names someone other than the acting user.
func (a *api) requireSelf(next http.HandlerFunc) http.HandlerFunc {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r.Context())
		if !ok {
			WriteDomainError(w, domain.ErrUnauthorized)
			return
		}
		uid, err := pathID(r, "uid")
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		if uid != u.ID {
			WriteDomainError(w, domain.ErrPermissionDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func CurrentUser(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(authUserKey).(domain.User)
	return u, ok
}

func CurrentSessionID(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(authSessionKey).(string)
	return s, ok
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
