// Package session implements the heartbeat dead man's switch: the daemon
// stays alive only while its browser client keeps sending heartbeats.
package session

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/tally/pkg/core"
)

// DefaultTimeout is the countdown armed by each heartbeat.
const DefaultTimeout = 15 * time.Second

// Bounds for timeouts coming from clients and configuration files.
const (
	MinTimeout = time.Second
	MaxTimeout = 24 * time.Hour
)

// Status of the countdown.
type Status string

const (
	StatusArmed    Status = "ARMED"
	StatusDisarmed Status = "DISARMED"
	StatusExpired  Status = "EXPIRED"
)

// Monitor owns the countdown. Only Heartbeat, Configure and TabClosed change
// it; the timer handle never leaves the struct.
type Monitor struct {
	logger     *slog.Logger
	terminate  func()
	suppressed bool

	mu            sync.Mutex
	timeout       time.Duration
	enabled       bool
	status        Status
	timer         *time.Timer
	generation    uint64
	heartbeats    int
	lastHeartbeat *time.Time
	stopped       bool
	expired       chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithTimeout sets the initial countdown length.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithEnabled sets whether heartbeats arm the countdown.
func WithEnabled(enabled bool) Option {
	return func(m *Monitor) {
		m.enabled = enabled
	}
}

// WithSuppressed disables the monitor for good. Used for automated runs,
// which have no browser to send heartbeats.
func WithSuppressed(suppressed bool) Option {
	return func(m *Monitor) {
		m.suppressed = suppressed
	}
}

// WithTerminate replaces the expiry action. The default exits the process.
func WithTerminate(fn func()) Option {
	return func(m *Monitor) {
		if fn != nil {
			m.terminate = fn
		}
	}
}

// New creates a disarmed monitor. The first heartbeat arms it.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		timeout:   DefaultTimeout,
		enabled:   true,
		status:    StatusDisarmed,
		terminate: func() { os.Exit(0) },
		expired:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.suppressed {
		m.logger.Info("session monitor suppressed for non-interactive run")
	}
	return m
}

// Heartbeat records client liveness and restarts the countdown.
func (m *Monitor) Heartbeat() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.heartbeats++
	m.lastHeartbeat = &now
	m.rearm()
}

// Configure updates the settings and re-arms under them right away. Nil
// arguments keep the current value. It returns the effective settings.
func (m *Monitor) Configure(timeout *time.Duration, enabled *bool) (time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if timeout != nil {
		if *timeout <= 0 {
			return m.timeout, m.enabled, fmt.Errorf("%w: timeout must be positive, got %s", core.ErrValidation, *timeout)
		}
		m.timeout = *timeout
	}
	if enabled != nil {
		m.enabled = *enabled
	}
	m.logger.Info("session settings updated", "timeout", m.timeout, "enabled", m.enabled)
	m.rearm()
	return m.timeout, m.enabled, nil
}

// TabClosed logs that the client announced it is going away. The countdown
// keeps running: a reload sends a new heartbeat soon after.
func (m *Monitor) TabClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Info("client reported tab closed", "status", m.status, "timeout", m.timeout)
}

// Settings returns the current timeout and enabled flag.
func (m *Monitor) Settings() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout, m.enabled
}

// Status returns the countdown status.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Expired is closed when the countdown fired.
func (m *Monitor) Expired() <-chan struct{} {
	return m.expired
}

// Stop disarms the monitor for good, for an orderly shutdown.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	m.cancel()
	if m.status == StatusArmed {
		m.status = StatusDisarmed
	}
}

// rearm must be called with mu held.
func (m *Monitor) rearm() {
	if m.status == StatusExpired || m.stopped {
		return
	}
	m.cancel()
	if m.suppressed || !m.enabled {
		m.status = StatusDisarmed
		return
	}

	gen := m.generation
	m.timer = time.AfterFunc(m.timeout, func() { m.expire(gen) })
	m.status = StatusArmed
}

// cancel invalidates the pending countdown, if any. A callback that already
// started sees a newer generation and does nothing.
func (m *Monitor) cancel() {
	m.generation++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Monitor) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.status != StatusArmed {
		m.mu.Unlock()
		return
	}
	m.status = StatusExpired
	m.timer = nil
	close(m.expired)
	timeout := m.timeout
	m.mu.Unlock()

	m.logger.Warn("no heartbeat received, shutting down", "timeout", timeout)
	m.terminate()
}

// MonitorState exposes internal state for observability.
type MonitorState struct {
	Status        Status     `json:"status"`
	Timeout       string     `json:"timeout"`
	Enabled       bool       `json:"enabled"`
	Suppressed    bool       `json:"suppressed"`
	Heartbeats    int        `json:"heartbeats"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
}

// State implements introspection.Introspectable.
func (m *Monitor) State() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MonitorState{
		Status:        m.status,
		Timeout:       m.timeout.String(),
		Enabled:       m.enabled,
		Suppressed:    m.suppressed,
		Heartbeats:    m.heartbeats,
		LastHeartbeat: m.lastHeartbeat,
	}
}

// ComponentType implements introspection.Component.
func (m *Monitor) ComponentType() string {
	return "session-monitor"
}

var _ introspection.Introspectable = (*Monitor)(nil)
var _ introspection.Component = (*Monitor)(nil)
