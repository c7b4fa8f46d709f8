package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/branchout/internal/api/models"
	"github.com/smazurov/branchout/internal/events"
	"github.com/smazurov/branchout/internal/logging"
)

// registerLogRoutes registers log history, streaming and level control.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Log History",
		Description: "Buffered log entries, optionally only those after a sequence number",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *models.LogHistoryInput) (*models.LogHistoryResponse, error) {
		entries := bufferedLogs(input.Since)
		return &models.LogHistoryResponse{
			Body: models.LogHistoryData{Entries: entries, Count: len(entries)},
		}, nil
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time log streaming via Server-Sent Events. Sends buffered logs first, then streams new logs.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 100)
		unsubscribe := events.SubscribeToChannel[events.LogEntryEvent](s.eventBus, eventCh)
		defer unsubscribe()

		// Entries logged between subscribing and reading the buffer arrive
		// twice; seq filters the duplicates.
		var last uint64
		for _, entry := range bufferedLogs(0) {
			if err := send.Data(entry); err != nil {
				return
			}
			last = entry.Seq
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if e, ok := event.(events.LogEntryEvent); ok && e.Seq != 0 && e.Seq <= last {
					continue
				}
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-log-levels",
		Method:      http.MethodGet,
		Path:        "/api/logs/levels",
		Summary:     "Log Levels",
		Description: "Global level and the level of every module logger",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.LogLevelsResponse, error) {
		return logLevels(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-log-level",
		Method:      http.MethodPut,
		Path:        "/api/logs/levels",
		Summary:     "Set Log Level",
		Description: "Change one module's log level at runtime",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 422},
	}, func(_ context.Context, input *models.LogLevelRequest) (*models.LogLevelsResponse, error) {
		if err := logging.SetModuleLevel(input.Body.Module, input.Body.Level); err != nil {
			return nil, huma.Error400BadRequest("Invalid log level", err)
		}
		s.logger.Info("Log level changed", "target", input.Body.Module, "level", input.Body.Level)
		return logLevels(), nil
	})
}

func bufferedLogs(since uint64) []events.LogEntryEvent {
	buffer := logging.GetBuffer()
	if buffer == nil {
		return []events.LogEntryEvent{}
	}
	entries := buffer.ReadSince(since)
	out := make([]events.LogEntryEvent, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ToLogEntryEvent(entry))
	}
	return out
}

// ToLogEntryEvent converts a buffered log entry for the event bus.
func ToLogEntryEvent(entry logging.LogEntry) events.LogEntryEvent {
	return events.LogEntryEvent{
		Seq:        entry.Seq,
		Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
		Level:      entry.Level,
		Module:     entry.Module,
		Message:    entry.Message,
		Attributes: entry.Attributes,
	}
}

func logLevels() *models.LogLevelsResponse {
	return &models.LogLevelsResponse{
		Body: models.LogLevelsData{
			Level:   logging.GlobalLevel(),
			Modules: logging.ModuleLevels(),
		},
	}
}
