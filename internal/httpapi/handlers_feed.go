package httpapi

import (
	"mime"
	"net/http"

	"FriendFeedwebserver/internal/domain"
	"FriendFeedwebserver/internal/service"
)

func (a *api) handleFeed(w http.ResponseWriter, r *http.Request) {
	items, err := a.feedSvc.Compose(r.Context(), r.PathValue("uid"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "private, no-store")
	WriteJSON(w, http.StatusOK, nonNil(items))
}

type createPostRequest struct {
	Caption  string `json:"caption"`
	ImageURL string `json:"image_url"`
}

// handlePostsCreate accepts JSON with an already hosted image_url, or a
// multipart form with a caption field and an optional image file.
func (a *api) handlePostsCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var in service.NewPost
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		upload, cleanup, err := readImagePart(w, r, "image", false)
		defer cleanup()
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		in = service.NewPost{Caption: r.FormValue("caption"), Image: upload}
	} else {
		var req createPostRequest
		if !readJSON(w, r, &req) {
			return
		}
		in = service.NewPost{Caption: req.Caption, ImageURL: req.ImageURL}
	}

	post, err := a.postSvc.Create(r.Context(), u.ID, in)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, post)
}
