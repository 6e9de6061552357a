package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"FriendFeedwebserver/internal/domain"
)

// NATSPublisher publishes each event on a subject named after its type,
// e.g. "friendship.accepted".
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSPublisher(nc *nats.Conn, subjectPrefix string) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: subjectPrefix}
}

func (p *NATSPublisher) PublishFriendship(ctx context.Context, ev domain.FriendshipEvent) error {
	return p.publish(ctx, string(ev.Type), ev)
}

func (p *NATSPublisher) PublishPost(ctx context.Context, ev domain.PostEvent) error {
	return p.publish(ctx, ev.Type, ev)
}

func (p *NATSPublisher) publish(ctx context.Context, eventType string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	msg := &nats.Msg{
		Subject: p.prefix + eventType,
		Data:    data,
		Header:  nats.Header{},
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}
