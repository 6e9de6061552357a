package httpapi

import (
	"net/http"

	"FriendFeedwebserver/internal/domain"
)

// handleUsersSearch finds people to befriend by display name. The caller
// is never part of the result.
func (a *api) handleUsersSearch(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}
	limit, err := queryInt(r, "limit", 20, 1, 50)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	found, err := a.usersSvc.Search(r.Context(), r.URL.Query().Get("q"), limit, u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "private, no-store")
	WriteJSON(w, http.StatusOK, nonNil(found))
}
