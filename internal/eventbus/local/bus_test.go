package local_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"whisperqueue/internal/domain"
	"whisperqueue/internal/eventbus"
	"whisperqueue/internal/eventbus/local"
)

func TestPublishSubscribeRoundTrip(t *testing.T) {
	bus := local.New(4)
	env := eventbus.NewEnvelope("j1", domain.EventJobCompleted, time.Now(), nil)
	require.NoError(t, bus.Publish(context.Background(), env))

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan eventbus.Event, 1)
	go func() {
		_ = bus.Subscribe(ctx, func(ctx context.Context, payload []byte) error {
			evt, err := eventbus.Decode(payload)
			if err != nil {
				return err
			}
			received <- evt
			cancel()
			return nil
		})
	}()

	select {
	case evt := <-received:
		require.Equal(t, "j1", evt.JobID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}
