package broadcast_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mukhtar-github/taxpoynt-platform-sub003/pkg/broadcast"
)

func newRedisBroadcaster(t *testing.T, mr *miniredis.Miniredis) *broadcast.RedisBroadcaster {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := broadcast.NewRedisBroadcaster(client, "", nil)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestRedisBroadcaster(t *testing.T) {
	t.Parallel()

	t.Run("PublisherReceivesOwnEvent", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		mr := miniredis.RunT(t)
		b := newRedisBroadcaster(t, mr)

		sub := b.Subscribe(ctx)

		// Let the relay establish its pub-sub subscription first.
		require.Eventually(t, func() bool {
			require.NoError(t, b.Broadcast(ctx, broadcast.Event{
				Origin: "proc-1",
				Kind:   broadcast.KindOverrideSet,
				At:     time.Now(),
			}))
			select {
			case got := <-sub.Receive(ctx):
				assert.Equal(t, broadcast.KindOverrideSet, got.Kind)
				assert.Equal(t, "proc-1", got.Origin)
				return true
			default:
				return false
			}
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("CrossInstanceDelivery", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()

		mr := miniredis.RunT(t)
		publisher := newRedisBroadcaster(t, mr)
		receiver := newRedisBroadcaster(t, mr)

		sub := receiver.Subscribe(ctx)

		require.Eventually(t, func() bool {
			require.NoError(t, publisher.Broadcast(ctx, broadcast.Event{
				Origin:    "proc-a",
				SubjectID: "sub-1",
				Kind:      broadcast.KindLogout,
				At:        time.Now(),
			}))
			select {
			case got := <-sub.Receive(ctx):
				assert.Equal(t, broadcast.KindLogout, got.Kind)
				assert.Equal(t, "sub-1", got.SubjectID)
				return true
			default:
				return false
			}
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		b := broadcast.NewRedisBroadcaster(client, "custom:channel", nil)
		require.NoError(t, b.Close())
		require.NoError(t, b.Close())
	})
}
