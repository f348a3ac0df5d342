package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"fixora/internal/api"
	"fixora/internal/config"
	"fixora/internal/events"
	"fixora/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var ErrNotConfigured = errors.New("realtime url is not configured")

// Frame is one message on the channel: {"event": "...", "data": {...}}.
// Some deployments send "type" instead of "event".
type Frame struct {
	Event string          `json:"event"`
	Type  string          `json:"type,omitempty"`
	Data  json.RawMessage `json:"data"`
}

func (f Frame) eventType() string {
	if f.Event != "" {
		return f.Event
	}
	return f.Type
}

// reconnectedPayload is published as a notification without a booking
// snapshot after a reconnect, so subscribers re-fetch what they missed.
var reconnectedPayload = []byte(`{"type":"reconnected"}`)

// Manager owns the single realtime connection of a session. Views acquire
// it when they mount and release it when they unmount; the socket is
// opened on the first Acquire and closed on the last Release.
type Manager struct {
	url    string
	token  string
	dialer *websocket.Dialer
	policy RetryPolicy
	bus    *events.EventBus
	logger *zerolog.Logger

	mu     sync.Mutex
	refs   int
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg config.RealtimeConfig, token string, logger *zerolog.Logger) *Manager {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Manager{
		url:    cfg.URL,
		token:  token,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		policy: PolicyFromConfig(cfg.Reconnect),
		bus:    events.NewEventBus(),
		logger: logger,
	}
}

// Subscribe attaches a handler for an event type. Handlers run on the
// connection's read goroutine.
func (m *Manager) Subscribe(eventType string, handler events.EventHandler) func() {
	return m.bus.Subscribe(eventType, handler)
}

// Refs returns the number of current holders.
func (m *Manager) Refs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs
}

// Acquire takes a reference on the connection, dialing when there is none.
// The first dial is synchronous so an auth failure reaches the caller.
func (m *Manager) Acquire(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs > 0 && m.running() {
		m.refs++
		return nil
	}

	conn, err := m.dial(ctx)
	if err != nil {
		return err
	}

	if m.cancel != nil {
		m.cancel()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.refs++
	metrics.SetRealtimeConnections(1)
	m.logger.Info().Int("refs", m.refs).Msg("realtime connected")

	go m.run(runCtx, conn, m.done)
	return nil
}

// Release drops a reference and closes the connection with the last one.
// It waits for the read goroutine to exit.
func (m *Manager) Release() {
	m.mu.Lock()
	if m.refs == 0 {
		m.mu.Unlock()
		return
	}
	m.refs--
	if m.refs > 0 {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	metrics.SetRealtimeConnections(0)
	m.logger.Info().Msg("realtime disconnected")
}

// running must be called with mu held.
func (m *Manager) running() bool {
	if m.done == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	if m.url == "" {
		return nil, ErrNotConfigured
	}
	u, err := url.Parse(m.url)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}
	header := http.Header{}
	if m.token != "" {
		q := u.Query()
		q.Set("token", m.token)
		u.RawQuery = q.Encode()
		header.Set("Authorization", "Bearer "+m.token)
	}

	conn, resp, err := m.dialer.DialContext(ctx, u.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, &api.AuthError{StatusCode: resp.StatusCode, Message: "realtime channel rejected the session"}
		}
		return nil, &api.TransportError{Op: "realtime_dial", Err: err}
	}
	return conn, nil
}

func (m *Manager) run(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		err := m.readLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		m.logger.Warn().Err(err).Msg("realtime connection lost")

		conn = m.reconnect(ctx)
		if conn == nil {
			metrics.SetRealtimeConnections(0)
			return
		}
		m.publish(events.EventNotification, reconnectedPayload)
	}
}

func (m *Manager) reconnect(ctx context.Context) *websocket.Conn {
	for attempt := 1; ; attempt++ {
		if m.policy.Exhausted(attempt) {
			m.logger.Error().Int("attempts", attempt-1).Msg("realtime reconnect gave up")
			return nil
		}
		delay := m.policy.NextDelay(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, err := m.dial(ctx)
		if err == nil {
			m.logger.Info().Int("attempt", attempt).Msg("realtime reconnected")
			return conn
		}
		var aerr *api.AuthError
		if errors.As(err, &aerr) {
			m.logger.Error().Err(err).Msg("realtime session rejected, not retrying")
			return nil
		}
		m.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("realtime reconnect failed")
	}
}

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.eventType() == "" {
			m.logger.Warn().Err(err).Int("bytes", len(data)).Msg("dropping malformed realtime frame")
			metrics.IncPushEvent("unknown", "malformed")
			continue
		}
		m.publish(frame.eventType(), frame.Data)
	}
}

func (m *Manager) publish(eventType string, payload []byte) {
	event := &events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	if err := m.bus.Publish(event); err != nil {
		m.logger.Warn().Err(err).Str("event", eventType).Str("event_id", event.ID).Msg("realtime handler failed")
	}
}
