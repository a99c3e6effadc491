package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// A Dialer opens one logical connection to the realtime transport.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// A Conn delivers decoded realtime events until it fails or is closed.
type Conn interface {
	ReadEvent() (Event, error)
	Close() error
}

// An EventSink consumes what the monitor produces: decoded events, and a
// directory refresh after a reconnect. *Store satisfies it.
type EventSink interface {
	HandleEvent(ctx context.Context, ev Event) error
	Refresh(ctx context.Context) error
}

const (
	reconnectBase = time.Second
	reconnectCap  = 30 * time.Second
)

// Monitor maintains the connection to the realtime transport and reports its
// state. Connection failures are never returned to callers; they show up as
// a ConnectionState value while the monitor retries with bounded exponential
// backoff.
type Monitor struct {
	Logger *slog.Logger
	Dialer Dialer
	Sink   EventSink

	once sync.Once
	mu   sync.Mutex

	state           ConnectionState
	lastConnectedAt time.Time
	conn            Conn

	gen       uint64 // bumped by Connect/Disconnect to invalidate old loops
	retry     *backoff.ExponentialBackOff
	stopRetry func()

	// retryAfter schedules a retry callback and returns a cancel func.
	retryAfter func(d time.Duration, f func()) func()
}

func (m *Monitor) init() {
	m.once.Do(func() {
		m.state = StateDisconnected
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = reconnectBase
		b.MaxInterval = reconnectCap
		b.Multiplier = 2
		b.MaxElapsedTime = 0 // retry forever
		m.retry = b
		if m.retryAfter == nil {
			m.retryAfter = func(d time.Duration, f func()) func() {
				t := time.AfterFunc(d, f)
				return func() { t.Stop() }
			}
		}
		if m.Logger == nil {
			m.Logger = slog.Default()
		}
	})
}

// State returns the current connection state.
func (m *Monitor) State() ConnectionState {
	m.init()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastConnectedAt returns when the transport was last successfully
// connected, or the zero time if it never was.
func (m *Monitor) LastConnectedAt() time.Time {
	m.init()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastConnectedAt
}

// Connect starts the connection if it is not already up or being
// established. It is idempotent and returns immediately; progress is
// observable through State. Calling Connect while a retry is pending
// replaces the pending timer with an immediate attempt.
func (m *Monitor) Connect(ctx context.Context) {
	m.init()
	m.mu.Lock()
	if m.state == StateConnected || m.state == StateConnecting {
		m.mu.Unlock()
		return
	}
	if m.stopRetry != nil {
		m.stopRetry()
		m.stopRetry = nil
	}
	m.state = StateConnecting
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	go m.dial(ctx, gen)
}

// Disconnect tears the connection down and cancels any pending retry.
func (m *Monitor) Disconnect() {
	m.init()
	m.mu.Lock()
	m.gen++
	if m.stopRetry != nil {
		m.stopRetry()
		m.stopRetry = nil
	}
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (m *Monitor) dial(ctx context.Context, gen uint64) {
	conn, err := m.Dialer.Dial(ctx)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if err == nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		m.scheduleRetry(ctx, gen, err)
		m.mu.Unlock()
		return
	}
	m.conn = conn
	m.state = StateConnected
	catchUp := !m.lastConnectedAt.IsZero()
	m.lastConnectedAt = time.Now()
	m.retry.Reset()
	m.mu.Unlock()

	m.Logger.Info("Transport connected")
	if catchUp {
		// Reconcile whatever happened while we were offline.
		if err := m.Sink.Refresh(ctx); err != nil {
			m.Logger.Error("Could not refresh after reconnect", "error", err.Error())
		}
	}
	m.readLoop(ctx, gen, conn)
}

func (m *Monitor) readLoop(ctx context.Context, gen uint64, conn Conn) {
	for {
		ev, err := conn.ReadEvent()
		if err != nil {
			m.mu.Lock()
			if gen != m.gen {
				// Deliberate disconnect already handled the state.
				m.mu.Unlock()
				return
			}
			m.conn = nil
			m.scheduleRetry(ctx, gen, err)
			m.mu.Unlock()
			conn.Close()
			return
		}
		if err := m.Sink.HandleEvent(ctx, ev); err != nil {
			m.Logger.Error("Dropped malformed event", "type", string(ev.Type), "error", err.Error())
		}
	}
}

// scheduleRetry moves to reconnecting and arms the next attempt. Callers
// must hold m.mu.
func (m *Monitor) scheduleRetry(ctx context.Context, gen uint64, cause error) {
	m.state = StateReconnecting
	d := m.retry.NextBackOff()
	if d == backoff.Stop || d > reconnectCap {
		d = reconnectCap
	}
	m.Logger.Warn("Transport connection lost", "error", cause.Error(), "retry_in", d.String())
	m.stopRetry = m.retryAfter(d, func() {
		m.mu.Lock()
		if gen != m.gen || m.state != StateReconnecting {
			m.mu.Unlock()
			return
		}
		m.stopRetry = nil
		m.state = StateConnecting
		m.mu.Unlock()
		m.dial(ctx, gen)
	})
}
