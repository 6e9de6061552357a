package httpapi

import (
	"bufio"
	"net/http"
	"strings"

	"FriendFeedwebserver/internal/domain"
	"FriendFeedwebserver/internal/service"
)

const maxImageSize = 8 << 20

type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Location    *string `json:"location"`
}

func (a *api) handleUsersMeUpdate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	// A client editing a stale copy of the profile gets 412 instead of
	// silently overwriting a newer change.
	if ifMatch := r.Header.Get("If-Match"); ifMatch != "" && !etagMatches(ifMatch, userETag(u)) {
		w.Header().Set("ETag", userETag(u))
		WriteError(w, http.StatusPreconditionFailed, "precondition_failed", "profile was modified")
		return
	}

	var req updateProfileRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.DisplayName == nil && req.Location == nil {
		WriteDomainError(w, domain.NewValidationError(map[string]string{
			"display_name": "display_name or location required",
			"location":     "display_name or location required",
		}))
		return
	}

	displayName, location := u.DisplayName, u.Location
	if req.DisplayName != nil {
		displayName = *req.DisplayName
	}
	if req.Location != nil {
		location = *req.Location
	}

	updated, err := a.profileSvc.UpdateProfile(r.Context(), u.ID, displayName, location)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeUser(w, http.StatusOK, updated)
}

func (a *api) handleUsersMeAvatar(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	upload, cleanup, err := readImagePart(w, r, "avatar", true)
	defer cleanup()
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	updated, err := a.profileSvc.SetAvatar(r.Context(), u.ID, *upload)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	writeUser(w, http.StatusOK, updated)
}

// readImagePart parses a multipart body and returns the named file part.
// The content type is sniffed from the bytes rather than trusted from the
// client. A nil upload with no error means the part is absent and optional.
// cleanup closes the part and removes any spooled temp files.
func readImagePart(w http.ResponseWriter, r *http.Request, field string, required bool) (*service.Upload, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize+(1<<20))
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		return nil, func() {}, domain.NewValidationError(map[string]string{field: "invalid multipart body or file too large"})
	}
	removeForm := func() { _ = r.MultipartForm.RemoveAll() }

	file, header, err := r.FormFile(field)
	if err != nil {
		if required {
			return nil, removeForm, domain.NewValidationError(map[string]string{field: "file is required"})
		}
		return nil, removeForm, nil
	}
	cleanup := func() {
		_ = file.Close()
		removeForm()
	}
	if header.Size > maxImageSize {
		return nil, cleanup, domain.NewValidationError(map[string]string{field: "file is too large"})
	}

	br := bufio.NewReader(file)
	head, _ := br.Peek(512)
	contentType := http.DetectContentType(head)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if contentType == "application/octet-stream" {
		// DetectContentType does not know HEIC.
		contentType = strings.TrimSpace(header.Header.Get("Content-Type"))
	}

	return &service.Upload{Body: br, Size: header.Size, ContentType: contentType}, cleanup, nil
}
