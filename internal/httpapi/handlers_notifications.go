package httpapi

import (
	"net/http"
	"strings"

	"FriendFeedwebserver/internal/domain"
)

type deviceTokenRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

type deviceTokenResponse struct {
	Token     string `json:"token"`
	Platform  string `json:"platform"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// handleNotificationsTokenUpsert registers the caller's device for
// friendship pushes. A first registration answers 201, a refresh 200.
func (a *api) handleNotificationsTokenUpsert(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req deviceTokenRequest
	if !readJSON(w, r, &req) {
		return
	}
	tok, err := a.notificationsSvc.RegisterToken(r.Context(), u.ID, req.Token, req.Platform)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	status := http.StatusOK
	if tok.CreatedAt.Equal(tok.UpdatedAt) {
		status = http.StatusCreated
	}
	WriteJSON(w, status, deviceTokenResponse{
		Token:     tok.Token,
		Platform:  tok.Platform,
		CreatedAt: formatMillis(tok.CreatedAt),
		UpdatedAt: formatMillis(tok.UpdatedAt),
	})
}

// handleNotificationsTokenDelete takes the token from ?token= or, for
// clients that keep it out of URLs, from a JSON body.
func (a *api) handleNotificationsTokenDelete(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" && r.ContentLength != 0 {
		var req deviceTokenRequest
		if !readJSON(w, r, &req) {
			return
		}
		token = req.Token
	}
	if err := a.notificationsSvc.DeleteToken(r.Context(), u.ID, token); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
