// Package local is an in-process Event Bus backend for tests and the
// single-process dev profile: a buffered channel standing in for the
// pub/sub topic/subscription pair.
package local

import (
	"context"
	"fmt"

	"whisperqueue/internal/eventbus"
)

// Bus is a buffered, in-process eventbus.Bus.
type Bus struct {
	ch chan []byte
}

// New creates a local bus with the given channel buffer size.
func New(buffer int) *Bus {
	return &Bus{ch: make(chan []byte, buffer)}
}

func (b *Bus) Publish(ctx context.Context, env eventbus.Envelope) error {
	payload, err := eventbus.Encode(env)
	if err != nil {
		return err
	}
	select {
	case b.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("local eventbus: channel full")
	}
}

func (b *Bus) Subscribe(ctx context.Context, handle func(ctx context.Context, payload []byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-b.ch:
			if err := handle(ctx, payload); err != nil {
				// A handler error does not stop the loop: the bus goes
				// on delivering subsequent messages. The failed message
				// is not redelivered and the error is not logged here.
				continue
			}
		}
	}
}

// PublishRaw is a test helper that injects a raw payload directly, as
// if it had arrived from an external publisher using a legacy event
// name.
func (b *Bus) PublishRaw(ctx context.Context, payload []byte) error {
	select {
	case b.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
