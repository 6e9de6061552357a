package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"FriendFeedwebserver/internal/domain"
)

const maxIDLen = 128

// pathID reads a user id path segment.
func pathID(r *http.Request, name string) (string, error) {
	id := strings.TrimSpace(r.PathValue(name))
	switch {
	case id == "":
		return "", domain.NewValidationError(map[string]string{name: "required"})
	case len(id) > maxIDLen:
		return "", domain.NewValidationError(map[string]string{name: "too long"})
	}
	return id, nil
}

func queryBool(r *http.Request, name string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// queryInt parses an optional integer parameter within [lo, hi].
func queryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, domain.NewValidationError(map[string]string{name: fmt.Sprintf("must be an integer from %d to %d", lo, hi)})
	}
	return n, nil
}
