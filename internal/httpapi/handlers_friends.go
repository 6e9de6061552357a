package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"FriendFeedwebserver/internal/domain"
	"FriendFeedwebserver/internal/friendship"
)

type edgeResponse struct {
	OwnerID       string    `json:"owner_id"`
	OtherID       string    `json:"other_id"`
	Status        string    `json:"status"`
	RequestSender string    `json:"request_sender,omitempty"`
	LastUpdated   time.Time `json:"last_updated,omitzero"`
}

func toEdgeResponse(e domain.Edge) edgeResponse {
	status := string(e.Status)
	if e.Status == domain.EdgeStatusNone {
		status = "none"
	}
	return edgeResponse{
		OwnerID:       e.OwnerID,
		OtherID:       e.OtherID,
		Status:        status,
		RequestSender: e.RequestSender,
		LastUpdated:   e.LastUpdated,
	}
}

func toEdgeResponses(edges []domain.Edge) []edgeResponse {
	out := make([]edgeResponse, 0, len(edges))
	for _, e := range edges {
		out = append(out, toEdgeResponse(e))
	}
	return out
}

// pair reads the {uid} and {other} path segments. requireSelf has already
// checked uid against the acting user.
func pair(r *http.Request) (string, string, error) {
	uid, err := pathID(r, "uid")
	if err != nil {
		return "", "", err
	}
	other, err := pathID(r, "other")
	if err != nil {
		return "", "", err
	}
	return uid, other, nil
}

func (a *api) handleFriendsList(w http.ResponseWriter, r *http.Request) {
	out, err := a.friendsSvc.ListFriends(r.Context(), r.PathValue("uid"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, nonNil(out))
}

func (a *api) handleFriendsPending(w http.ResponseWriter, r *http.Request) {
	out, err := a.friendsSvc.ListPending(r.Context(), r.PathValue("uid"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, nonNil(out))
}

func (a *api) handleFriendsConnections(w http.ResponseWriter, r *http.Request) {
	out, err := a.friendsSvc.ListConnections(r.Context(), r.PathValue("uid"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, nonNil(out))
}

func (a *api) handleExplore(w http.ResponseWriter, r *http.Request) {
	out, err := a.friendsSvc.ExploreCandidates(r.Context(), r.PathValue("uid"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, nonNil(out))
}

func (a *api) handleFriendsGetEdge(w http.ResponseWriter, r *http.Request) {
	uid, other, err := pair(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	e, err := a.friendsSvc.GetEdge(r.Context(), uid, other)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toEdgeResponse(e))
}

type sendRequestResponse struct {
	Outcome friendship.Outcome `json:"outcome"`
	Edge    *edgeResponse      `json:"edge,omitempty"`
}

func (a *api) handleFriendsSendRequest(w http.ResponseWriter, r *http.Request) {
	uid, other, err := pair(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	outcome, err := a.friendsSvc.SendRequest(r.Context(), uid, other, queryBool(r, "strict"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	resp := sendRequestResponse{Outcome: outcome}
	if e, err := a.friendsSvc.GetEdge(r.Context(), uid, other); err == nil {
		er := toEdgeResponse(e)
		resp.Edge = &er
	} else {
		a.logger.Warn("read edge after send failed", "owner", uid, "other", other, "err", err)
	}

	status := http.StatusOK
	if outcome == friendship.OutcomeApplied {
		status = http.StatusCreated
	}
	WriteJSON(w, status, resp)
}

func (a *api) handleFriendsAccept(w http.ResponseWriter, r *http.Request) {
	uid, other, err := pair(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if err := a.friendsSvc.AcceptRequest(r.Context(), uid, other); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFriendsRemove unfriends, rejects an incoming request or cancels an
// outgoing one. Removing a relationship that does not exist succeeds.
func (a *api) handleFriendsRemove(w http.ResponseWriter, r *http.Request) {
	uid, other, err := pair(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if _, err := a.friendsSvc.RemoveOrReject(r.Context(), uid, other); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type edgeSnapshot struct {
	edges []domain.Edge
	err   error
}

// handleFriendsStream serves the caller's edge set as server-sent events:
// a "snapshot" event with the full set on connect and after every change,
// and comment heartbeats in between.
func (a *api) handleFriendsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported")
		return
	}
	uid := r.PathValue("uid")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	snapshots := make(chan edgeSnapshot)
	go func() {
		defer close(snapshots)
		for edges, err := range a.friendsSvc.Subscribe(ctx, uid) {
			select {
			case snapshots <- edgeSnapshot{edges: edges, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()

	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(a.heartbeat)
	defer heartbeat.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			_, err = fmt.Fprint(w, ": ping\n\n")
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if snap.err != nil {
				a.logger.Warn("friends stream snapshot failed", "owner", uid, "err", snap.err)
				err = writeEvent(w, "error", apiError{Code: streamErrorCode(snap.err), Message: "snapshot unavailable"})
			} else {
				err = writeEvent(w, "snapshot", toEdgeResponses(snap.edges))
			}
		}
		if err != nil {
			return
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func streamErrorCode(err error) string {
	if errors.Is(err, domain.ErrUnavailable) {
		return "unavailable"
	}
	return "internal_error"
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
