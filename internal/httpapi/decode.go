package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

const maxJSONBody = 1 << 20

// readJSON decodes exactly one JSON object from the body into dst. On
// failure it has already written the error response.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || (mt != "application/json" && !strings.HasSuffix(mt, "+json")) {
			WriteError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
			return false
		}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if err == nil {
		if extra := dec.Decode(&struct{}{}); !errors.Is(extra, io.EOF) {
			err = errors.New("body must contain a single json object")
		}
	}
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case errors.As(err, &tooLarge):
		WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
	case errors.Is(err, io.EOF):
		WriteError(w, http.StatusBadRequest, "bad_json", "body is empty")
	case errors.As(err, &syntax):
		WriteError(w, http.StatusBadRequest, "bad_json", fmt.Sprintf("malformed json at offset %d", syntax.Offset))
	case errors.As(err, &typ):
		WriteError(w, http.StatusBadRequest, "bad_json", fmt.Sprintf("field %q must be %s", typ.Field, typ.Type))
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		WriteError(w, http.StatusBadRequest, "bad_json", strings.TrimPrefix(err.Error(), "json: "))
	default:
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
	}
	return false
}
