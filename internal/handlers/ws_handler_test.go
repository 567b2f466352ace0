package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koios/octodash/pkg/models"
)

const (
	printerJSON = `{"state":{"text":"Operational","flags":{"operational":true,"ready":true}},"temperature":{"bed":{"actual":21.5,"target":0}}}`
	jobJSON     = `{"job":{"file":{"name":"cube.gcode"}},"progress":{"completion":42.5,"printTime":120}}`
)

func dialFeed(t *testing.T, relay *testRelay) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(relay.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn, within time.Duration) models.Update {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(within))
	var update models.Update
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read update: %v", err)
	}
	return update
}

func countPath(calls []recordedCall, path string) int {
	n := 0
	for _, c := range calls {
		if c.Path == path {
			n++
		}
	}
	return n
}

func TestFeedPushesImmediatelyOnConnect(t *testing.T) {
	up := newUpstream(t)
	up.responses["/api/printer"] = printerJSON
	up.responses["/api/job"] = jobJSON
	relay := newTestRelay(t, configuredFor(up), time.Hour)

	conn := dialFeed(t, relay)

	// the interval is an hour, so this can only be the initial push
	update := readUpdate(t, conn, 2*time.Second)

	if update.Type != models.UpdateType {
		t.Errorf("type = %q", update.Type)
	}
	if update.Data.Status == nil || update.Data.Status.State.Text != "Operational" {
		t.Errorf("status = %+v", update.Data.Status)
	}
	if update.Data.Job == nil || update.Data.Job.Progress.Completion == nil || *update.Data.Job.Progress.Completion != 42.5 {
		t.Errorf("job = %+v", update.Data.Job)
	}
	if update.Data.Job.Job.File.Name == nil || *update.Data.Job.Job.File.Name != "cube.gcode" {
		t.Errorf("job file = %+v", update.Data.Job.Job.File)
	}
}

func TestFeedPushesEveryInterval(t *testing.T) {
	up := newUpstream(t)
	up.responses["/api/printer"] = printerJSON
	up.responses["/api/job"] = jobJSON
	relay := newTestRelay(t, configuredFor(up), 30*time.Millisecond)

	conn := dialFeed(t, relay)

	for i := 0; i < 3; i++ {
		readUpdate(t, conn, 2*time.Second)
	}

	calls := up.Calls()
	if countPath(calls, "/api/printer") < 3 || countPath(calls, "/api/job") < 3 {
		t.Errorf("expected at least 3 polls of each endpoint, got %+v", calls)
	}
}

func TestFeedStopsPollingAfterClose(t *testing.T) {
	up := newUpstream(t)
	up.responses["/api/printer"] = printerJSON
	up.responses["/api/job"] = jobJSON
	relay := newTestRelay(t, configuredFor(up), 20*time.Millisecond)

	conn := dialFeed(t, relay)
	readUpdate(t, conn, 2*time.Second)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	// let the server notice the close and finish any in-flight tick
	time.Sleep(150 * time.Millisecond)
	before := len(up.Calls())

	time.Sleep(150 * time.Millisecond)
	if after := len(up.Calls()); after != before {
		t.Errorf("upstream calls continued after close: %d -> %d", before, after)
	}
}

func TestFeedSilentWhenNotConfigured(t *testing.T) {
	up := newUpstream(t)
	relay := newTestRelay(t, models.ConnectionSettings{ServerURL: up.server.URL}, 20*time.Millisecond)

	conn := dialFeed(t, relay)

	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected no message while unconfigured")
	}
	if calls := up.Calls(); len(calls) != 0 {
		t.Errorf("expected no upstream calls, got %+v", calls)
	}
}

func TestFeedSurvivesUpstreamFailure(t *testing.T) {
	up := newUpstream(t)
	up.responses["/api/printer"] = printerJSON
	up.responses["/api/job"] = jobJSON
	up.setStatus(http.StatusInternalServerError)
	relay := newTestRelay(t, configuredFor(up), 20*time.Millisecond)

	conn := dialFeed(t, relay)

	// a few failing ticks go by without a push
	time.Sleep(100 * time.Millisecond)
	if len(up.Calls()) == 0 {
		t.Fatal("expected polling attempts while upstream fails")
	}

	up.setStatus(http.StatusOK)
	update := readUpdate(t, conn, 2*time.Second)
	if update.Type != models.UpdateType {
		t.Errorf("type = %q", update.Type)
	}
}

func TestFeedConnectionsPollIndependently(t *testing.T) {
	up := newUpstream(t)
	up.responses["/api/printer"] = printerJSON
	up.responses["/api/job"] = jobJSON
	relay := newTestRelay(t, configuredFor(up), time.Hour)

	first := dialFeed(t, relay)
	second := dialFeed(t, relay)
	readUpdate(t, first, 2*time.Second)
	readUpdate(t, second, 2*time.Second)

	if n := countPath(up.Calls(), "/api/printer"); n != 2 {
		t.Errorf("expected one initial poll per connection, got %d", n)
	}
}

func TestFeedCloseDisconnectsClients(t *testing.T) {
	up := newUpstream(t)
	up.responses["/api/printer"] = printerJSON
	up.responses["/api/job"] = jobJSON
	relay := newTestRelay(t, configuredFor(up), time.Hour)

	conn := dialFeed(t, relay)
	readUpdate(t, conn, 2*time.Second)

	relay.feed.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected going-away close, got %v", err)
	}
}
