package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/branchout/internal/events"
	"github.com/smazurov/branchout/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically publishes audio buffer metrics on the event bus.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSSEExporter creates an exporter publishing once per interval. A
// non-positive interval means once per second.
func NewSSEExporter(eventBus EventPublisher, interval time.Duration) *SSEExporter {
	if interval <= 0 {
		interval = time.Second
	}
	return &SSEExporter{
		eventBus: eventBus,
		interval: interval,
	}
}

// Start begins the SSE export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the SSE exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publishMetrics()
		}
	}
}

func (s *SSEExporter) publishMetrics() {
	for filter, m := range metrics.GetAllAudioMetrics() {
		s.eventBus.Publish(events.AudioMetricsEvent{
			Filter:         filter,
			BufferedFrames: strconv.FormatFloat(m.BufferedFrames, 'f', 0, 64),
			PushedFrames:   strconv.FormatFloat(m.PushedFrames, 'f', 0, 64),
			Overflows:      strconv.FormatFloat(m.Overflows, 'f', 0, 64),
			SilentQuanta:   strconv.FormatFloat(m.SilentQuanta, 'f', 0, 64),
		})
	}
}

// GetEventTypes returns the SSE event names this exporter produces.
func GetEventTypes() map[string]any {
	return map[string]any{
		"audio-metrics": events.AudioMetricsEvent{},
	}
}
