package events_test

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/wallet-provider/internal/provider/events"
)

func TestOnIsIdempotentPerHandle(t *testing.T) {
	bus := events.NewBus()

	calls := 0
	l := events.NewListener(func(_ ...any) error {
		calls++
		return nil
	})

	bus.On("x", l).On("x", l)
	assert.Equal(t, 1, bus.ListenerCount("x"))

	assert.True(t, bus.Emit("x"))
	assert.Equal(t, 1, calls)
}

func TestEmitPassesArguments(t *testing.T) {
	bus := events.NewBus()

	var got []any
	bus.Subscribe("chainChanged", func(args ...any) error {
		got = args
		return nil
	})

	bus.Emit("chainChanged", "0x1", 2)
	assert.Equal(t, []any{"0x1", 2}, got)
}

func TestEmitWithoutListenersIsDropped(t *testing.T) {
	bus := events.NewBus()
	assert.False(t, bus.Emit("nobody"))

	ran := false
	bus.Subscribe("nobody", func(_ ...any) error {
		ran = true
		return nil
	})
	assert.False(t, ran)
}

func TestRemoveListener(t *testing.T) {
	bus := events.NewBus()

	calls := 0
	l := bus.Subscribe("x", func(_ ...any) error {
		calls++
		return nil
	})

	bus.RemoveListener("x", l)
	bus.RemoveListener("x", l)
	bus.RemoveListener("other", events.NewListener(nil))

	assert.False(t, bus.Emit("x"))
	assert.Equal(t, 0, calls)
}

func TestFailingListenerIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	bus := events.NewBus().WithLogger(zerolog.New(&buf))

	second := false
	third := false
	bus.Subscribe("x", func(_ ...any) error {
		return errors.New("boom")
	})
	bus.Subscribe("x", func(_ ...any) error {
		second = true
		panic("kaboom")
	})
	bus.Subscribe("x", func(_ ...any) error {
		third = true
		return nil
	})

	require.NotPanics(t, func() { bus.Emit("x") })
	assert.True(t, second)
	assert.True(t, third)
	assert.Contains(t, buf.String(), "boom")
	assert.Contains(t, buf.String(), "kaboom")
}

func TestOnce(t *testing.T) {
	bus := events.NewBus()

	calls := 0
	bus.Once("x", func(_ ...any) error {
		calls++
		return nil
	})

	bus.Emit("x")
	bus.Emit("x")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.ListenerCount("x"))
}

func TestListenerAddedDuringEmitRunsNextTime(t *testing.T) {
	bus := events.NewBus()

	late := 0
	bus.Once("x", func(_ ...any) error {
		bus.Subscribe("x", func(_ ...any) error {
			late++
			return nil
		})
		return nil
	})

	bus.Emit("x")
	assert.Equal(t, 0, late)

	bus.Emit("x")
	assert.Equal(t, 1, late)
}

func TestRemoveAllListeners(t *testing.T) {
	bus := events.NewBus()
	bus.Subscribe("a", func(_ ...any) error { return nil })
	bus.Subscribe("b", func(_ ...any) error { return nil })

	bus.RemoveAllListeners("a")
	assert.Equal(t, 0, bus.ListenerCount("a"))
	assert.Equal(t, 1, bus.ListenerCount("b"))

	bus.RemoveAllListeners("")
	assert.Equal(t, 0, bus.ListenerCount("b"))
}
