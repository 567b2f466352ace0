// Package feed consumes the relay's /ws status stream and keeps the
// connection alive with a fixed reconnect delay.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koios/octodash/pkg/models"
	"go.uber.org/zap"
)

// DefaultReconnectDelay is the fixed wait between connection attempts
const DefaultReconnectDelay = 3 * time.Second

const handshakeTimeout = 10 * time.Second

// State is the connection state of a Subscriber
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Subscriber connects to a status feed and delivers update envelopes.
// It retries forever with a fixed delay until its context is cancelled.
type Subscriber struct {
	url            string
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
	logger         *zap.Logger

	state atomic.Int32

	mu            sync.RWMutex
	onUpdate      func(*models.Update)
	onStateChange func(State)
}

// NewSubscriber creates a subscriber for the given ws:// or wss:// URL
func NewSubscriber(feedURL string, reconnectDelay time.Duration, logger *zap.Logger) *Subscriber {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Subscriber{
		url:            feedURL,
		reconnectDelay: reconnectDelay,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		logger: logger.With(zap.String("feed_url", feedURL)),
	}
}

// FeedURL turns a relay base URL (http or https) into its /ws endpoint
func FeedURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid relay URL: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid relay URL %q: unsupported scheme %q", base, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid relay URL %q: missing host", base)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

// OnUpdate registers the callback for update envelopes
func (s *Subscriber) OnUpdate(fn func(*models.Update)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

// OnStateChange registers the callback for state transitions
func (s *Subscriber) OnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = fn
}

// State returns the current connection state
func (s *Subscriber) State() State {
	return State(s.state.Load())
}

// IsConnected reports whether the feed connection is open
func (s *Subscriber) IsConnected() bool {
	return s.State() == Connected
}

// Run connects and reconnects until ctx is cancelled, then returns ctx.Err()
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		s.session(ctx)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Info("Feed disconnected, reconnecting", zap.Duration("delay", s.reconnectDelay))

		timer := time.NewTimer(s.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection attempt through to its close
func (s *Subscriber) session(ctx context.Context) {
	defer s.setState(Disconnected)

	s.setState(Connecting)
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("Feed connection failed", zap.Error(err))
		}
		return
	}
	defer conn.Close()

	s.setState(Connected)
	s.logger.Info("Feed connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("Feed read failed", zap.Error(err))
			}
			return
		}
		s.handleMessage(data)
	}
}

// handleMessage decodes one frame. Malformed payloads are logged and dropped.
func (s *Subscriber) handleMessage(data []byte) {
	var update models.Update
	if err := json.Unmarshal(data, &update); err != nil {
		s.logger.Warn("Dropping malformed feed message", zap.Int("bytes", len(data)), zap.Error(err))
		return
	}
	if update.Type != models.UpdateType {
		s.logger.Debug("Ignoring feed message", zap.String("type", update.Type))
		return
	}

	s.mu.RLock()
	fn := s.onUpdate
	s.mu.RUnlock()
	if fn != nil {
		fn(&update)
	}
}

func (s *Subscriber) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev == next {
		return
	}

	s.mu.RLock()
	fn := s.onStateChange
	s.mu.RUnlock()
	if fn != nil {
		fn(next)
	}
}
