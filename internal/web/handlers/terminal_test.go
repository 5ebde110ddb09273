package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/facekiosk/facekiosk/internal/config"
	"github.com/facekiosk/facekiosk/internal/store/mock"
	"github.com/facekiosk/facekiosk/internal/terminal"
)

type noFrames struct{}

func (noFrames) Capture(ctx context.Context) ([]byte, error) { return nil, context.Canceled }

func testController() *terminal.Controller {
	cfg := &config.TerminalConfig{
		Interval: 2 * time.Second,
		Cooldown: 30 * time.Second,
		MinShift: time.Hour,
	}
	return terminal.NewController(
		cfg, noFrames{}, &fakeEncoder{}, &fakeRecognizer{}, mock.NewMockStore(), &terminal.EventBroadcaster{})
}

func TestTerminalStatus(t *testing.T) {
	c := testController()
	c.SetRosterSizeFunc(func() int { return 7 })
	h := NewTerminalHandler(c)

	req := httptest.NewRequest(http.MethodGet, "/terminal/status", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	assertStatusCode(t, rec, http.StatusOK)

	var status terminal.Status
	parseJSONResponse(t, rec, &status)
	if status.Running {
		t.Error("expected idle terminal")
	}
	if status.RosterSize != 7 {
		t.Errorf("expected roster size 7, got %d", status.RosterSize)
	}
}

func TestTerminalEvents_StreamsSSE(t *testing.T) {
	c := testController()
	h := NewTerminalHandler(c)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/terminal/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Events(rec, req)
	}()

	// Wait for the listener to register before broadcasting.
	deadline := time.After(2 * time.Second)
	for c.Events().ListenerCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("listener never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	c.Events().SendEvent(terminal.Event{Type: terminal.EventCheckIn, Name: "Alice", At: time.Now()})

	// Give the handler a moment to flush, then disconnect.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("expected SSE content type, got %q", got)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: status\n") {
		t.Error("expected an initial status event")
	}
	if !strings.Contains(body, "event: check_in\n") {
		t.Errorf("expected a check_in event in stream:\n%s", body)
	}
	if !strings.Contains(body, `"name":"Alice"`) {
		t.Errorf("expected event payload in stream:\n%s", body)
	}
}
