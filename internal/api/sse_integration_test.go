package api

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/branchout/internal/events"
	"github.com/smazurov/branchout/internal/logging"
)

type sseMessage struct {
	event string
	data  string
}

// openStream connects to an SSE endpoint and forwards complete messages.
func openStream(t *testing.T, url string) <-chan sseMessage {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Failed to connect to SSE: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("Expected SSE content type, got %s", resp.Header.Get("Content-Type"))
	}

	messages := make(chan sseMessage, 64)
	go func() {
		defer close(messages)
		scanner := bufio.NewScanner(resp.Body)
		var msg sseMessage
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				msg.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				msg.data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			case line == "" && msg.data != "":
				messages <- msg
				msg = sseMessage{}
			}
		}
	}()
	return messages
}

func nextMessage(t *testing.T, messages <-chan sseMessage) sseMessage {
	t.Helper()
	select {
	case msg, ok := <-messages:
		if !ok {
			t.Fatal("SSE stream closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for SSE message")
	}
	return sseMessage{}
}

func TestSSEEventsStream(t *testing.T) {
	ts, _, bus := newTestServer(t)

	creds := base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	messages := openStream(t, fmt.Sprintf("%s/api/events?auth=%s", ts.URL, creds))

	first := nextMessage(t, messages)
	if first.event != "status" || !strings.Contains(first.data, `"filter":"Branch 1"`) {
		t.Fatalf("Expected status snapshot, got %+v", first)
	}

	bus.Publish(events.OutputStateChangedEvent{
		Filter: "Branch 1",
		From:   "connecting",
		To:     "active",
		Reason: "output connected",
	})
	msg := nextMessage(t, messages)
	if msg.event != "output-state-changed" || !strings.Contains(msg.data, `"to":"active"`) {
		t.Errorf("Expected state change, got %+v", msg)
	}

	bus.Publish(events.SourceToggledEvent{Filter: "Branch 1", Enabled: false})
	msg = nextMessage(t, messages)
	if msg.event != "source-toggled" || !strings.Contains(msg.data, `"enabled":false`) {
		t.Errorf("Expected toggle, got %+v", msg)
	}
}

func TestSSEEventsRequiresAuth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestSSELogStreamReplaysHistory(t *testing.T) {
	logging.Initialize(logging.Config{Level: "info", Format: "text", BufferSize: 16})
	ts, _, bus := newTestServer(t)

	logging.GetLogger("output").Info("Output started", "filter", "Branch 1")

	creds := base64.StdEncoding.EncodeToString([]byte("admin:secret"))
	messages := openStream(t, fmt.Sprintf("%s/api/logs/stream?auth=%s", ts.URL, creds))

	deadline := time.After(2 * time.Second)
	for found := false; !found; {
		select {
		case msg, ok := <-messages:
			if !ok {
				t.Fatal("SSE stream closed")
			}
			found = strings.Contains(msg.data, "Output started")
		case <-deadline:
			t.Fatal("buffered entry not replayed")
		}
	}

	bus.Publish(events.LogEntryEvent{Seq: 1 << 40, Level: "warn", Module: "audio", Message: "Audio buffer overflow"})
	deadline = time.After(2 * time.Second)
	for {
		select {
		case msg := <-messages:
			if strings.Contains(msg.data, "Audio buffer overflow") {
				return
			}
		case <-deadline:
			t.Fatal("live entry not streamed")
		}
	}
}
