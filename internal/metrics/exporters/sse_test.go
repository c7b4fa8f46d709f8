package exporters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/branchout/internal/events"
	"github.com/smazurov/branchout/internal/metrics"
)

type mockEventBus struct {
	mu        sync.Mutex
	events    []events.Event
	published chan struct{}
}

func newMockEventBus() *mockEventBus {
	return &mockEventBus{
		events:    make([]events.Event, 0),
		published: make(chan struct{}, 100),
	}
}

func (m *mockEventBus) Publish(ev events.Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	select {
	case m.published <- struct{}{}:
	default:
	}
}

func (m *mockEventBus) getEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

func TestSSEExporterPublishesMetrics(t *testing.T) {
	filter := "sse-test-filter"
	metrics.DeleteAudioMetrics(filter)
	defer metrics.DeleteAudioMetrics(filter)

	metrics.SetBufferedFrames(filter, 1024)
	metrics.AddPushedFrames(filter, 480)
	metrics.IncBufferOverflow(filter)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	exporter.Start(ctx)

	select {
	case <-mock.published:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for metrics publish")
	}

	cancel()
	exporter.Stop()

	var found bool
	for _, ev := range mock.getEvents() {
		ame, ok := ev.(events.AudioMetricsEvent)
		if !ok || ame.Filter != filter {
			continue
		}
		found = true
		if ame.BufferedFrames != "1024" {
			t.Errorf("BufferedFrames = %q, want \"1024\"", ame.BufferedFrames)
		}
		if ame.PushedFrames != "480" {
			t.Errorf("PushedFrames = %q, want \"480\"", ame.PushedFrames)
		}
		if ame.Overflows != "1" {
			t.Errorf("Overflows = %q, want \"1\"", ame.Overflows)
		}
		break
	}
	if !found {
		t.Error("expected AudioMetricsEvent for test filter")
	}
}

func TestSSEExporterNoMetrics(t *testing.T) {
	filter := "sse-no-metrics-filter"
	metrics.DeleteAudioMetrics(filter)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock, 20*time.Millisecond)
	exporter.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	exporter.Stop()

	for _, ev := range mock.getEvents() {
		if ame, ok := ev.(events.AudioMetricsEvent); ok && ame.Filter == filter {
			t.Error("expected no events for deleted filter")
		}
	}
}

func TestSSEExporterStopIdempotent(t *testing.T) {
	filter := "sse-idempotent-filter"
	metrics.SetBufferedFrames(filter, 1)
	defer metrics.DeleteAudioMetrics(filter)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock, 10*time.Millisecond)
	exporter.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	exporter.Stop()
	exporter.Stop()

	countAfterStop := len(mock.getEvents())
	time.Sleep(30 * time.Millisecond)
	if got := len(mock.getEvents()); got != countAfterStop {
		t.Errorf("events published after stop: got %d, want %d", got, countAfterStop)
	}
}

func TestSSEExporterStopBeforeStart(t *testing.T) {
	filter := "sse-stop-before-start-filter"
	metrics.SetBufferedFrames(filter, 2)
	defer metrics.DeleteAudioMetrics(filter)

	mock := newMockEventBus()
	exporter := NewSSEExporter(mock, 10*time.Millisecond)
	exporter.Stop()

	exporter.Start(t.Context())
	time.Sleep(30 * time.Millisecond)
	exporter.Stop()

	if len(mock.getEvents()) == 0 {
		t.Error("expected events after Start(), got none")
	}
}

func TestNewSSEExporterDefaultInterval(t *testing.T) {
	if got := NewSSEExporter(newMockEventBus(), 0).interval; got != time.Second {
		t.Errorf("interval = %v, want 1s", got)
	}
}

func TestGetEventTypes(t *testing.T) {
	if _, ok := GetEventTypes()["audio-metrics"]; !ok {
		t.Error("expected audio-metrics event type")
	}
}
