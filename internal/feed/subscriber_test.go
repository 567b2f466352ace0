package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koios/octodash/pkg/models"
	"go.uber.org/zap"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

// attemptLog records when the fake feed server saw each connection attempt
type attemptLog struct {
	mu    sync.Mutex
	times []time.Time
}

func (a *attemptLog) add() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.times = append(a.times, time.Now())
}

func (a *attemptLog) snapshot() []time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Time(nil), a.times...)
}

func TestFeedURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws", false},
		{"https://dash.example.com/", "wss://dash.example.com/ws", false},
		{"http://host/prefix", "ws://host/prefix/ws", false},
		{"ftp://host", "", true},
		{"http://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := FeedURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("FeedURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if Disconnected.String() != "disconnected" || Connecting.String() != "connecting" || Connected.String() != "connected" {
		t.Error("unexpected state names")
	}
}

func TestReconnectsAfterCloseWithFixedDelay(t *testing.T) {
	const (
		delay   = 80 * time.Millisecond
		timeout = 500 * time.Millisecond
	)
	attempts := &attemptLog{}
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.add()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// drop every connection right away
		conn.Close()
	}))
	defer srv.Close()

	sub := NewSubscriber(wsURL(srv), delay, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := sub.Run(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Run returned %v, want deadline exceeded", err)
	}

	times := attempts.snapshot()
	if len(times) < 3 {
		t.Fatalf("expected at least 3 connection attempts, got %d", len(times))
	}
	if limit := int(timeout/delay) + 1; len(times) > limit {
		t.Errorf("got %d connection attempts in %v, want at most %d", len(times), timeout, limit)
	}
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		if gap < delay-5*time.Millisecond {
			t.Errorf("attempt %d came %v after the previous one, want >= %v", i, gap, delay)
		}
		// the delay is fixed, never backed off
		if gap > 2*delay {
			t.Errorf("attempt %d came %v after the previous one, want < %v", i, gap, 2*delay)
		}
	}
	if sub.IsConnected() {
		t.Error("subscriber should be disconnected after Run returns")
	}
}

func TestRetriesFailedDialsIndefinitely(t *testing.T) {
	attempts := &attemptLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.add()
		http.Error(w, "relay restarting", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sub := NewSubscriber(wsURL(srv), 30*time.Millisecond, zap.NewNop())

	var mu sync.Mutex
	var states []State
	sub.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	sub.Run(ctx)

	if n := len(attempts.snapshot()); n < 4 {
		t.Errorf("expected repeated dial attempts, got %d", n)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, s := range states {
		if s == Connected {
			t.Fatal("never expected to reach connected")
		}
	}
	if len(states) < 2 || states[0] != Connecting || states[1] != Disconnected {
		t.Errorf("state transitions = %v", states)
	}
}

func TestMalformedMessagesAreDropped(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
		conn.WriteJSON(models.NewUpdate(&models.PrinterStatus{
			State: models.PrinterState{Text: "Printing"},
		}, &models.JobInfo{}))

		// hold the connection open until the client leaves
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	sub := NewSubscriber(wsURL(srv), time.Second, zap.NewNop())
	updates := make(chan *models.Update, 4)
	sub.OnUpdate(func(u *models.Update) { updates <- u })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	select {
	case u := <-updates:
		if u.Data.Status == nil || u.Data.Status.State.Text != "Printing" {
			t.Errorf("update = %+v", u.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}

	if !sub.IsConnected() {
		t.Error("malformed message should not change connection state")
	}
	select {
	case u := <-updates:
		t.Errorf("unexpected extra update %+v", u)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if sub.State() != Disconnected {
		t.Errorf("state = %v after cancel", sub.State())
	}
}
