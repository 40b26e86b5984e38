package session_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tally/pkg/core"
	"github.com/aretw0/tally/pkg/session"
)

func newMonitor(t *testing.T, timeout time.Duration, opts ...session.Option) (*session.Monitor, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	opts = append([]session.Option{
		session.WithTimeout(timeout),
		session.WithTerminate(func() { calls.Add(1) }),
	}, opts...)
	m := session.New(opts...)
	t.Cleanup(m.Stop)
	return m, &calls
}

func waitExpired(t *testing.T, m *session.Monitor, within time.Duration) {
	t.Helper()
	select {
	case <-m.Expired():
	case <-time.After(within):
		t.Fatalf("monitor did not expire within %s", within)
	}
}

func TestMonitorStartsDisarmed(t *testing.T) {
	m, calls := newMonitor(t, 20*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, session.StatusDisarmed, m.Status())
	assert.Zero(t, calls.Load())
}

func TestHeartbeatRearmPreventsExpiry(t *testing.T) {
	m, calls := newMonitor(t, 80*time.Millisecond)

	for i := 0; i < 6; i++ {
		m.Heartbeat()
		time.Sleep(30 * time.Millisecond)
	}
	assert.Equal(t, session.StatusArmed, m.Status())
	assert.Zero(t, calls.Load())
}

func TestExpiryFiresExactlyOnce(t *testing.T) {
	m, calls := newMonitor(t, 20*time.Millisecond)

	m.Heartbeat()
	waitExpired(t, m, time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, session.StatusExpired, m.Status())

	// Terminal: later heartbeats do not re-arm.
	m.Heartbeat()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, session.StatusExpired, m.Status())
}

func TestDisabledNeverArms(t *testing.T) {
	m, calls := newMonitor(t, 20*time.Millisecond, session.WithEnabled(false))

	m.Heartbeat()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, session.StatusDisarmed, m.Status())
	assert.Zero(t, calls.Load())
}

func TestSuppressedNeverArms(t *testing.T) {
	m, calls := newMonitor(t, 20*time.Millisecond, session.WithSuppressed(true))

	m.Heartbeat()
	enabled := true
	_, _, err := m.Configure(nil, &enabled)
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, session.StatusDisarmed, m.Status())
	assert.Zero(t, calls.Load())
	assert.True(t, m.State().(session.MonitorState).Suppressed)
}

func TestConfigureRearms(t *testing.T) {
	t.Run("Disable Cancels Countdown", func(t *testing.T) {
		m, calls := newMonitor(t, 40*time.Millisecond)
		m.Heartbeat()

		disabled := false
		timeout, enabled, err := m.Configure(nil, &disabled)
		require.NoError(t, err)
		assert.Equal(t, 40*time.Millisecond, timeout)
		assert.False(t, enabled)

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, session.StatusDisarmed, m.Status())
		assert.Zero(t, calls.Load())
	})

	t.Run("New Timeout Applies Immediately", func(t *testing.T) {
		m, calls := newMonitor(t, time.Hour)
		m.Heartbeat()

		short := 20 * time.Millisecond
		_, _, err := m.Configure(&short, nil)
		require.NoError(t, err)

		waitExpired(t, m, time.Second)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("Enable Arms Without Heartbeat", func(t *testing.T) {
		m, _ := newMonitor(t, time.Hour, session.WithEnabled(false))

		enabled := true
		_, _, err := m.Configure(nil, &enabled)
		require.NoError(t, err)
		assert.Equal(t, session.StatusArmed, m.Status())
	})

	t.Run("Rejects Non Positive Timeout", func(t *testing.T) {
		m, _ := newMonitor(t, time.Hour)

		zero := time.Duration(0)
		timeout, _, err := m.Configure(&zero, nil)
		assert.True(t, errors.Is(err, core.ErrValidation))
		assert.Equal(t, time.Hour, timeout)
	})
}

func TestTabClosedKeepsCountdown(t *testing.T) {
	m, calls := newMonitor(t, time.Hour)
	m.Heartbeat()
	m.TabClosed()

	assert.Equal(t, session.StatusArmed, m.Status())
	assert.Zero(t, calls.Load())
}

func TestStopDisarms(t *testing.T) {
	m, calls := newMonitor(t, 20*time.Millisecond)
	m.Heartbeat()
	m.Stop()
	m.Heartbeat()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, session.StatusDisarmed, m.Status())
	assert.Zero(t, calls.Load())
}

func TestMonitorState(t *testing.T) {
	m, _ := newMonitor(t, time.Hour)
	m.Heartbeat()
	m.Heartbeat()

	state := m.State().(session.MonitorState)
	assert.Equal(t, 2, state.Heartbeats)
	assert.NotNil(t, state.LastHeartbeat)
	assert.Equal(t, "1h0m0s", state.Timeout)
	assert.Equal(t, "session-monitor", m.ComponentType())
}
