// Package events publishes relationship and post changes to message
// brokers after they commit. Delivery is best-effort.
package events

import (
	"context"
	"errors"

	"FriendFeedwebserver/internal/domain"
)

type Publisher interface {
	PublishFriendship(ctx context.Context, ev domain.FriendshipEvent) error
	PublishPost(ctx context.Context, ev domain.PostEvent) error
}

// Multi fans every event out to all publishers and joins their errors.
type Multi []Publisher

func (m Multi) PublishFriendship(ctx context.Context, ev domain.FriendshipEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishFriendship(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) PublishPost(ctx context.Context, ev domain.PostEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishPost(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event. It stands in when no broker is configured.
type Discard struct{}

func (Discard) PublishFriendship(context.Context, domain.FriendshipEvent) error { return nil }
func (Discard) PublishPost(context.Context, domain.PostEvent) error             { return nil }
