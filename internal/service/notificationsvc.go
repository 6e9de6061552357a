package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"FriendFeedwebserver/internal/domain"
	"FriendFeedwebserver/internal/notifications"
)

type NotificationTokensStore interface {
	UpsertToken(ctx context.Context, userID, token, platform string, when time.Time) (domain.NotificationToken, error)
	DeleteToken(ctx context.Context, userID, token string) error
	ListTokens(ctx context.Context, userID string) ([]domain.NotificationToken, error)
}

type NotificationUsersStore interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
}

type PushSender interface {
	Send(ctx context.Context, token string, msg notifications.Message) error
}

type FriendshipNotificationKind string

const (
	NotifyRequestReceived FriendshipNotificationKind = "friend_request"
	NotifyRequestAccepted FriendshipNotificationKind = "friend_accepted"
)

// FriendshipNotification tells RecipientID that ActorID changed their
// relationship.
type FriendshipNotification struct {
	Kind        FriendshipNotificationKind
	ActorID     string
	RecipientID string
}

type FriendshipNotifier interface {
	NotifyFriendship(ctx context.Context, n FriendshipNotification) error
}

var platforms = map[string]bool{"android": true, "ios": true}

type NotificationService struct {
	Tokens NotificationTokensStore
	Users  NotificationUsersStore
	Sender PushSender
	Logger *slog.Logger
	Now    func() time.Time
}

func (s *NotificationService) RegisterToken(ctx context.Context, userID, token, platform string) (domain.NotificationToken, error) {
	if s.Tokens == nil {
		return domain.NotificationToken{}, fmt.Errorf("notification tokens: %w", domain.ErrUnavailable)
	}
	token = strings.TrimSpace(token)
	platform = strings.TrimSpace(strings.ToLower(platform))

	fields := map[string]string{}
	if token == "" {
		fields["token"] = "required"
	}
	switch {
	case platform == "":
		fields["platform"] = "required"
	case !platforms[platform]:
		fields["platform"] = "must be ios or android"
	}
	if len(fields) > 0 {
		return domain.NotificationToken{}, domain.NewValidationError(fields)
	}

	return s.Tokens.UpsertToken(ctx, userID, token, platform, s.now().UTC().Truncate(time.Millisecond))
}

func (s *NotificationService) DeleteToken(ctx context.Context, userID, token string) error {
	if s.Tokens == nil {
		return fmt.Errorf("notification tokens: %w", domain.ErrUnavailable)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.NewValidationError(map[string]string{"token": "required"})
	}
	return s.Tokens.DeleteToken(ctx, userID, token)
}

// NotifyFriendship pushes n to every device of the recipient. Tokens the
// push service reports as unregistered are dropped. Other per-device
// failures are logged and skipped.
func (s *NotificationService) NotifyFriendship(ctx context.Context, n FriendshipNotification) error {
	if s.Tokens == nil || s.Sender == nil || s.Users == nil {
		return nil
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tokens, err := s.Tokens.ListTokens(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("list push tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	actor, err := s.Users.GetUserByID(ctx, n.ActorID)
	if err != nil {
		return fmt.Errorf("load actor: %w", err)
	}
	data, alert := friendshipMessage(n.Kind, actor)

	for _, tok := range tokens {
		msg := notifications.Message{Data: data, CollapseKey: string(n.Kind) + ":" + actor.ID}
		if tok.Platform == "ios" {
			msg.Notification = alert
		}
		err := s.Sender.Send(ctx, tok.Token, msg)
		switch {
		case err == nil:
		case errors.Is(err, notifications.ErrInvalidToken):
			if err := s.Tokens.DeleteToken(ctx, n.RecipientID, tok.Token); err != nil {
				logger.Warn("notifications: drop unregistered token failed", "err", err, "user_id", n.RecipientID)
			}
		default:
			var se *notifications.SendError
			temporary := errors.As(err, &se) && se.Temporary()
			logger.Warn("notifications: send failed", "err", err, "user_id", n.RecipientID, "platform", tok.Platform, "temporary", temporary)
		}
	}
	return nil
}

func friendshipMessage(kind FriendshipNotificationKind, actor domain.User) (map[string]string, *notifications.Notification) {
	name := strings.TrimSpace(actor.DisplayName)
	data := map[string]string{
		"type":         string(kind),
		"actor_id":     actor.ID,
		"display_name": name,
	}

	alert := &notifications.Notification{}
	switch kind {
	case NotifyRequestAccepted:
		alert.Title = "Friend request accepted"
		alert.Body = "Your friend request was accepted."
		if name != "" {
			alert.Body = name + " accepted your friend request."
		}
	default:
		alert.Title = "Friend request"
		alert.Body = "You received a friend request."
		if name != "" {
			alert.Body = name + " sent you a friend request."
		}
	}
	return data, alert
}

func (s *NotificationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
