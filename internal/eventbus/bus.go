package eventbus

import "context"

// Bus is the Event Bus Adapter (C3): publish terminal events, and
// deliver inbound ones to a handler.
type Bus interface {
	// Publish sends env with at-least-once delivery; retries on
	// transport error are internal to the backend.
	Publish(ctx context.Context, env Envelope) error

	// Subscribe blocks, delivering every inbound message to handle
	// until ctx is canceled or the backend's receive loop returns an
	// unrecoverable error. handle is called with the raw payload
	// bytes; callers typically wrap it with Decode.
	Subscribe(ctx context.Context, handle func(ctx context.Context, payload []byte) error) error
}
