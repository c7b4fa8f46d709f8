package models

import (
	"time"

	"github.com/smazurov/branchout/internal/events"
	"github.com/smazurov/branchout/internal/node"
	"github.com/smazurov/branchout/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionResponse struct {
	Body version.Info
}

// StatusData is the externally visible state of the branch output.
type StatusData struct {
	Filter         string     `json:"filter" example:"Branch 1" doc:"Filter name"`
	State          string     `json:"state" example:"active" doc:"Lifecycle state: idle, connecting, active, retry_pending or restart_pending"`
	Enabled        bool       `json:"enabled" example:"true" doc:"Whether the filter is shown"`
	FilterActive   bool       `json:"filter_active" example:"true" doc:"Whether the filter may start output"`
	SessionActive  bool       `json:"session_active" example:"true" doc:"Whether an output session exists"`
	StoredRev      uint64     `json:"stored_rev" example:"3" doc:"Revision of the saved settings"`
	ActiveRev      uint64     `json:"active_rev" example:"3" doc:"Revision the running session was started with"`
	Width          uint32     `json:"width" example:"1920" doc:"Output width"`
	Height         uint32     `json:"height" example:"1080" doc:"Output height"`
	OutputType     string     `json:"output_type,omitempty" example:"rtmp_output" doc:"Resolved output type"`
	AudioMode      string     `json:"audio_mode,omitempty" example:"master" doc:"Audio capture mode"`
	BufferedFrames uint64     `json:"buffered_frames" example:"1024" doc:"Audio frames waiting for the encoder"`
	ConnectAt      *time.Time `json:"connect_at,omitempty" doc:"When the current session started connecting"`
	LastError      string     `json:"last_error,omitempty" doc:"Last start failure"`
}

type StatusResponse struct {
	Body StatusData
}

// SettingsBody carries filter settings. Credential values are redacted on
// read; sending a redacted value back keeps the stored one.
type SettingsBody struct {
	Settings map[string]any `json:"settings" doc:"Filter settings keyed by setting name"`
}

type SettingsResponse struct {
	Body SettingsBody
}

type SettingsRequest struct {
	Body SettingsBody
}

type SettingsUpdateData struct {
	Changed  bool           `json:"changed" example:"true" doc:"Whether the settings differed from the current ones"`
	Settings map[string]any `json:"settings" doc:"Settings now in effect, redacted"`
}

type SettingsUpdateResponse struct {
	Body SettingsUpdateData
}

type EnabledRequest struct {
	Body struct {
		Enabled bool `json:"enabled" example:"false" doc:"Show or hide the filter"`
	}
}

type SourceSizeRequest struct {
	Body struct {
		Width  uint32 `json:"width" minimum:"0" maximum:"16384" example:"1280" doc:"New source width"`
		Height uint32 `json:"height" minimum:"0" maximum:"16384" example:"720" doc:"New source height"`
	}
}

type NetworkRequest struct {
	Body struct {
		Up bool `json:"up" example:"false" doc:"Whether the simulated network is reachable"`
	}
}

type SourcesData struct {
	Sources []node.SourceInfo `json:"sources" doc:"Host sources sorted by name"`
	Count   int               `json:"count" example:"3" doc:"Number of sources"`
}

type SourcesResponse struct {
	Body SourcesData
}

type LogLevelsData struct {
	Level   string            `json:"level" example:"info" doc:"Global log level"`
	Modules map[string]string `json:"modules" doc:"Per-module level overrides"`
}

type LogLevelsResponse struct {
	Body LogLevelsData
}

type LogLevelRequest struct {
	Body struct {
		Module string `json:"module" minLength:"1" example:"output" doc:"Logger module name"`
		Level  string `json:"level" enum:"debug,info,warn,error" example:"debug" doc:"New level"`
	}
}

type LogHistoryInput struct {
	Since uint64 `query:"since" doc:"Only return entries with a sequence number above this"`
}

type LogHistoryData struct {
	Entries []events.LogEntryEvent `json:"entries" doc:"Buffered log entries, oldest first"`
	Count   int                    `json:"count" example:"42" doc:"Number of entries"`
}

type LogHistoryResponse struct {
	Body LogHistoryData
}
