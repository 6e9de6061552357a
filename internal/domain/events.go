package domain

import "time"

type FriendshipEventType string

const (
	FriendshipRequested FriendshipEventType = "friendship.requested"
	FriendshipAccepted  FriendshipEventType = "friendship.accepted"
	FriendshipRemoved   FriendshipEventType = "friendship.removed"
)

// FriendshipEvent is published after a relationship change commits.
type FriendshipEvent struct {
	Type          FriendshipEventType `json:"type"`
	ActorID       string              `json:"actor_id"`
	OtherID       string              `json:"other_id"`
	RequestSender string              `json:"request_sender,omitempty"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

const PostCreated = "post.created"

type PostEvent struct {
	Type       string    `json:"type"`
	PostID     string    `json:"post_id"`
	AuthorID   string    `json:"author_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
