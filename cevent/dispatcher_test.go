package cevent_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spindlebot/cozmo/cevent"
	"github.com/spindlebot/cozmo/cpacket"
)

func TestDispatcher_registrationOrder(t *testing.T) {
	t.Parallel()

	d := cevent.NewDispatcher()

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		d.Register(cevent.KindTick, func(cevent.Event) {
			order = append(order, i)
		})
	}

	d.Dispatch(cevent.Event{Kind: cevent.KindTick})
	require.Equal(t, []int{0, 1, 2}, order)

	d.Dispatch(cevent.Event{Kind: cevent.KindTick})
	require.Equal(t, []int{0, 1, 2, 0, 1, 2}, order)
}

func TestDispatcher_kindIsolation(t *testing.T) {
	t.Parallel()

	d := cevent.NewDispatcher()

	var got []cevent.Kind
	d.Register(cevent.KindRobotReady, func(e cevent.Event) {
		got = append(got, e.Kind)
	})

	d.Dispatch(cevent.Event{Kind: cevent.KindTick})
	require.Empty(t, got)

	d.Dispatch(cevent.Event{Kind: cevent.KindRobotReady})
	require.Equal(t, []cevent.Kind{cevent.KindRobotReady}, got)
}

func TestDispatcher_onceRemovedBeforeInvocation(t *testing.T) {
	t.Parallel()

	d := cevent.NewDispatcher()

	var calls int
	d.RegisterOnce(cevent.KindRobotReady, func(cevent.Event) {
		calls++
		// Re-dispatching from inside the handler must not fire
		// this subscription again: removal is immediate, not lazy.
		if calls == 1 {
			d.Dispatch(cevent.Event{Kind: cevent.KindRobotReady})
		}
	})

	d.Dispatch(cevent.Event{Kind: cevent.KindRobotReady})
	d.Dispatch(cevent.Event{Kind: cevent.KindRobotReady})
	require.Equal(t, 1, calls)
}

func TestDispatcher_mixedOnceAndPersistent(t *testing.T) {
	t.Parallel()

	d := cevent.NewDispatcher()

	var persistent, once int
	d.Register(cevent.KindRobotFound, func(cevent.Event) { persistent++ })
	d.RegisterOnce(cevent.KindRobotFound, func(cevent.Event) { once++ })

	for i := 0; i < 3; i++ {
		d.Dispatch(cevent.Event{Kind: cevent.KindRobotFound})
	}
	require.Equal(t, 3, persistent)
	require.Equal(t, 1, once)
}

func TestDispatcher_reset(t *testing.T) {
	t.Parallel()

	d := cevent.NewDispatcher()

	var calls int
	d.Register(cevent.KindTick, func(cevent.Event) { calls++ })

	d.Reset()
	d.Dispatch(cevent.Event{Kind: cevent.KindTick})
	require.Zero(t, calls)
}

func TestKindOf_mirrorsPacketKind(t *testing.T) {
	t.Parallel()

	require.Equal(t, cevent.Kind(cpacket.KindPing), cevent.KindOf(cpacket.Ping{}))
	require.Equal(t, cevent.Kind(cpacket.KindConnect), cevent.KindOf(cpacket.Connect{}))
	require.Equal(t, cevent.Kind(0x7f), cevent.KindOf(cpacket.Unknown{RawKind: 0x7f}))
}
