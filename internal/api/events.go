package api

import (
	"context"
	"maps"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/branchout/internal/api/models"
	"github.com/smazurov/branchout/internal/events"
	"github.com/smazurov/branchout/internal/metrics/exporters"
)

// registerSSERoutes registers the node event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Current status on connect, then lifecycle transitions, audio overflows and metrics, settings updates and filter toggles",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func() map[string]any {
		eventTypes := map[string]any{
			"status":               models.StatusData{},
			"output-state-changed": events.OutputStateChangedEvent{},
			"audio-overflow":       events.AudioOverflowEvent{},
			"settings-updated":     events.SettingsUpdatedEvent{},
			"source-toggled":       events.SourceToggledEvent{},
		}
		maps.Copy(eventTypes, exporters.GetEventTypes())
		return eventTypes
	}(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		// Subscribe before the snapshot so no transition falls in between.
		unsubscribers := []func(){
			events.SubscribeToChannel[events.OutputStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.AudioOverflowEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SettingsUpdatedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SourceToggledEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.AudioMetricsEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(s.statusData()); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("SSE client disconnected", "dropped_events", s.eventBus.Dropped())
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					s.logger.Debug("SSE client gone", "error", err)
					return
				}
			}
		}
	})
}
