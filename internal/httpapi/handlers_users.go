package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"FriendFeedwebserver/internal/domain"
)

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name"`
	Location    string    `json:"location,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

func newUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Location:    u.Location,
		AvatarURL:   u.AvatarURL,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   formatMillis(u.UpdatedAt),
	}
}

func writeUser(w http.ResponseWriter, status int, u domain.User) {
	w.Header().Set("ETag", userETag(u))
	WriteJSON(w, status, newUserResponse(u))
}

func (a *api) handleUsersMe(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=0")
	if etagMatches(r.Header.Get("If-None-Match"), userETag(u)) {
		w.Header().Set("ETag", userETag(u))
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeUser(w, http.StatusOK, u)
}

// userETag changes whenever the profile row is updated.
func userETag(u domain.User) string {
	return `W/"user:` + u.ID + ":" + strconv.FormatInt(u.UpdatedAt.UnixNano(), 36) + `"`
}

// etagMatches applies the weak comparison of an If-None-Match or If-Match
// header value against etag.
func etagMatches(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, tag := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(tag), "W/") == want {
			return true
		}
	}
	return false
}

func formatMillis(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
