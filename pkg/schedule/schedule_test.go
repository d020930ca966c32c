package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_AfterFunc(t *testing.T) {
	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	m := NewManual(start)

	var fired []time.Time
	m.AfterFunc(2*time.Second, func() { fired = append(fired, m.Now()) })

	m.Advance(time.Second)
	assert.Empty(t, fired)
	m.Advance(time.Second)
	require.Len(t, fired, 1)
	assert.Equal(t, start.Add(2*time.Second), fired[0])
	assert.Equal(t, 0, m.Pending())
}

func TestManual_EveryAndStop(t *testing.T) {
	m := NewManual(time.Unix(0, 0))

	ticks := 0
	timer := m.Every(time.Second, func() { ticks++ })
	m.Advance(3500 * time.Millisecond)
	assert.Equal(t, 3, ticks)

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	m.Advance(5 * time.Second)
	assert.Equal(t, 3, ticks)
}

func TestManual_OrderAndReentrancy(t *testing.T) {
	m := NewManual(time.Unix(0, 0))

	var order []string
	m.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	m.AfterFunc(time.Second, func() {
		order = append(order, "a")
		// scheduled from inside a callback and due within the same Advance
		m.AfterFunc(500*time.Millisecond, func() { order = append(order, "a2") })
	})

	m.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "a2", "b"}, order)
}

func TestManual_StopFromCallback(t *testing.T) {
	m := NewManual(time.Unix(0, 0))

	ticks := 0
	var timer Timer
	timer = m.Every(time.Second, func() {
		ticks++
		timer.Stop()
	})
	m.Advance(5 * time.Second)
	assert.Equal(t, 1, ticks)
}

func TestReal_Every(t *testing.T) {
	s := NewReal()
	var ticks atomic.Int32
	timer := s.Every(5*time.Millisecond, func() { ticks.Add(1) })

	assert.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
}

func TestReal_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	NewReal().AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}
