package domain

import "time"

// EdgeStatus is the state of one side of a relationship. The zero value
// means no record exists.
type EdgeStatus string

const (
	EdgeStatusNone     EdgeStatus = ""
	EdgeStatusPending  EdgeStatus = "pending"
	EdgeStatusAccepted EdgeStatus = "accepted"
)

func (s EdgeStatus) Valid() bool {
	switch s {
	case EdgeStatusNone, EdgeStatusPending, EdgeStatusAccepted:
		return true
	}
	return false
}

// Edge is OwnerID's stored view of its relationship with OtherID.
type Edge struct {
	OwnerID       string     `json:"owner_id"`
	OtherID       string     `json:"other_id"`
	Status        EdgeStatus `json:"status"`
	RequestSender string     `json:"request_sender,omitempty"`
	LastUpdated   time.Time  `json:"last_updated"`
}

func (e Edge) Exists() bool { return e.Status != EdgeStatusNone }

type FriendStatus string

const (
	FriendStatusAccepted FriendStatus = "accepted"
	FriendStatusIncoming FriendStatus = "incoming"
	FriendStatusOutgoing FriendStatus = "outgoing"
)

// Direction reports how the owner sees the edge: accepted, or a pending
// request they received (incoming) or sent (outgoing).
func (e Edge) Direction() FriendStatus {
	switch {
	case e.Status == EdgeStatusAccepted:
		return FriendStatusAccepted
	case e.RequestSender == e.OwnerID:
		return FriendStatusOutgoing
	default:
		return FriendStatusIncoming
	}
}

type FriendRequest struct {
	User          UserSummary `json:"user"`
	RequestSender string      `json:"request_sender"`
	LastUpdated   time.Time   `json:"last_updated"`
}

type FriendConnection struct {
	User          UserSummary  `json:"user"`
	Status        FriendStatus `json:"status"`
	RequestSender string       `json:"request_sender,omitempty"`
	LastUpdated   time.Time    `json:"last_updated"`
}

// EdgePair is both sides of one relationship as read inside a single
// transaction. Forward is the acting user's edge, Reverse the other user's.
type EdgePair struct {
	Forward Edge
	Reverse Edge
}

// Consistent reports whether both sides agree on status and, when a
// relationship exists, on who sent the request.
func (p EdgePair) Consistent() bool {
	if p.Forward.Status != p.Reverse.Status {
		return false
	}
	if p.Forward.Status == EdgeStatusNone {
		return true
	}
	if p.Forward.RequestSender != p.Reverse.RequestSender {
		return false
	}
	s := p.Forward.RequestSender
	return s == p.Forward.OwnerID || s == p.Forward.OtherID
}

// Status is the logical status of the pair. It is only meaningful when
// Consistent returns true.
func (p EdgePair) Status() EdgeStatus { return p.Forward.Status }

// UserSearchResult is a user found by search, annotated with how the
// searching user is related to them. Relationship is empty for strangers.
type UserSearchResult struct {
	UserSummary
	Relationship FriendStatus `json:"relationship,omitempty"`
}
