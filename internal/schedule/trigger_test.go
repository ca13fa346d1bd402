package schedule

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan time.Time) {
	t.Helper()
	select {
	case _, ok := <-ch:
		require.True(t, ok, "channel closed early")
	case <-time.After(2 * time.Second):
		t.Fatal("trigger did not fire")
	}
}

func waitClosed(t *testing.T, ch <-chan time.Time) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func TestEveryFiresAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := Every(10 * time.Millisecond).Start(ctx)

	receive(t, ch)
	receive(t, ch)
	cancel()
	waitClosed(t, ch)
}

func TestEveryZeroNeverFires(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ch := Every(0).Start(ctx)

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "zero interval must not fire")
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}

func TestMerge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := Merge(Every(0), Every(10*time.Millisecond)).Start(ctx)

	receive(t, ch)
	cancel()
	waitClosed(t, ch)
}

func TestNATSTriggerCollapsesBurstsAndUnsubscribes(t *testing.T) {
	s := natsserver.RunRandClientPortServer()
	defer s.Shutdown()
	nc, err := nats.Connect(s.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := NATSTrigger{Conn: nc, Subject: "rides.changed"}.Start(ctx)
	require.NoError(t, nc.Flush())
	assert.Equal(t, 1, nc.NumSubscriptions())

	for i := 0; i < 5; i++ {
		require.NoError(t, nc.Publish("rides.changed", nil))
	}
	require.NoError(t, nc.Flush())
	time.Sleep(100 * time.Millisecond)

	fires := 0
	for done := false; !done; {
		select {
		case <-ch:
			fires++
		case <-time.After(200 * time.Millisecond):
			done = true
		}
	}
	// One fire may already be in flight while the rest collapse into one.
	assert.GreaterOrEqual(t, fires, 1)
	assert.LessOrEqual(t, fires, 2)

	cancel()
	waitClosed(t, ch)
	assert.Equal(t, 0, nc.NumSubscriptions())

	// Messages after shutdown are ignored.
	require.NoError(t, nc.Publish("rides.changed", nil))
	require.NoError(t, nc.Flush())
}
