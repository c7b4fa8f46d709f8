package events

// Event type constants for kelindar/event.
const (
	TypeOutputStateChanged uint32 = iota + 1
	TypeAudioOverflow
	TypeSettingsUpdated
	TypeSourceToggled
	TypeLogEntry
	TypeAudioMetrics
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// OutputStateChangedEvent is published on every lifecycle transition.
type OutputStateChangedEvent struct {
	Filter    string `json:"filter" example:"Branch 1" doc:"Filter name"`
	From      string `json:"from" example:"connecting" doc:"Previous state"`
	To        string `json:"to" example:"active" doc:"New state"`
	Reason    string `json:"reason" example:"output connected" doc:"Why the state changed"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for OutputStateChangedEvent.
func (e OutputStateChangedEvent) Type() uint32 { return TypeOutputStateChanged }

// AudioOverflowEvent is published when the audio buffer was discarded.
type AudioOverflowEvent struct {
	Filter        string `json:"filter" example:"Branch 1" doc:"Filter name"`
	DroppedFrames uint64 `json:"dropped_frames" example:"131000" doc:"Frames discarded"`
	Timestamp     string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for AudioOverflowEvent.
func (e AudioOverflowEvent) Type() uint32 { return TypeAudioOverflow }

// SettingsUpdatedEvent is published after filter settings were saved.
type SettingsUpdatedEvent struct {
	Filter    string   `json:"filter" example:"Branch 1" doc:"Filter name"`
	Keys      []string `json:"keys" doc:"Setting keys present after the update"`
	Source    string   `json:"source" example:"api" doc:"Where the update came from: api or file"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SettingsUpdatedEvent.
func (e SettingsUpdatedEvent) Type() uint32 { return TypeSettingsUpdated }

// SourceToggledEvent is published when the filter is shown or hidden.
type SourceToggledEvent struct {
	Filter    string `json:"filter" example:"Branch 1" doc:"Filter name"`
	Enabled   bool   `json:"enabled" example:"true" doc:"Whether the filter is enabled"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SourceToggledEvent.
func (e SourceToggledEvent) Type() uint32 { return TypeSourceToggled }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"output" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// AudioMetricsEvent is a periodic snapshot of a filter's audio counters.
type AudioMetricsEvent struct {
	Filter         string `json:"filter" example:"Branch 1" doc:"Filter name"`
	BufferedFrames string `json:"buffered_frames" example:"1024" doc:"Frames waiting in the chunk buffer"`
	PushedFrames   string `json:"pushed_frames" example:"480000" doc:"Frames accepted since start"`
	Overflows      string `json:"overflows" example:"0" doc:"Buffer overflows since start"`
	SilentQuanta   string `json:"silent_quanta" example:"3" doc:"Output quanta filled with silence"`
}

// Type returns the event type identifier for AudioMetricsEvent.
func (e AudioMetricsEvent) Type() uint32 { return TypeAudioMetrics }
