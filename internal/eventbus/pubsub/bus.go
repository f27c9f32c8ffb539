// Package pubsub is the production Event Bus Adapter: it wraps a Cloud
// Pub/Sub topic and subscription, grounded in
// original_source/whisper_queue/app/main.py's functions_framework
// cloud_event entry point (whisper_queue_pubsub / handle_batch_completion).
package pubsub

import (
	"context"

	"cloud.google.com/go/pubsub"

	"whisperqueue/internal/eventbus"
)

// Bus publishes to one topic and, when Subscribe is called, pulls from
// one subscription. Both are expected to already exist; provisioning
// topics/subscriptions is out of scope for this adapter.
type Bus struct {
	topic *pubsub.Topic
	sub   *pubsub.Subscription
}

// New wraps an already-resolved topic and subscription. sub may be nil
// for a publish-only bus.
func New(topic *pubsub.Topic, sub *pubsub.Subscription) *Bus {
	return &Bus{topic: topic, sub: sub}
}

func (b *Bus) Publish(ctx context.Context, env eventbus.Envelope) error {
	payload, err := eventbus.Encode(env)
	if err != nil {
		return err
	}
	result := b.topic.Publish(ctx, &pubsub.Message{Data: payload})
	_, err = result.Get(ctx)
	return err
}

// Subscribe pulls messages until ctx is canceled or Receive returns an
// unrecoverable error. Each message is Ack'd if handle succeeds and
// Nack'd otherwise so Pub/Sub redelivers it — the idempotent
// domain.Transition makes redelivery safe.
func (b *Bus) Subscribe(ctx context.Context, handle func(ctx context.Context, payload []byte) error) error {
	return b.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := handle(ctx, msg.Data); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}
