// Package node runs one branch output against the simulated host: it owns
// the engine, the filter and its settings file, and turns lifecycle
// callbacks into bus events.
package node

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/branchout/internal/config"
	"github.com/smazurov/branchout/internal/events"
	"github.com/smazurov/branchout/internal/host"
	"github.com/smazurov/branchout/internal/hostsim"
	"github.com/smazurov/branchout/internal/logging"
	"github.com/smazurov/branchout/internal/output"
	"github.com/smazurov/branchout/internal/settings"
)

// Where a settings change came from.
const (
	OriginAPI  = "api"
	OriginFile = "file"
)

// Config configures a Node.
type Config struct {
	FilterName   string
	SourceName   string
	SourceWidth  uint32
	SourceHeight uint32
	// AudioSourceName names an extra audio-only source that can be picked
	// as a custom audio source.
	AudioSourceName string
	SettingsDir     string
	TickInterval    time.Duration
	ConnectDelay    time.Duration
	// WatchDebounce enables the settings file watcher when positive.
	WatchDebounce time.Duration
}

// SourceInfo describes a host source.
type SourceInfo struct {
	Name   string `json:"name" example:"Camera" doc:"Source name"`
	UUID   string `json:"uuid" example:"0b8c2f5e-8d1c-4c1b-9f0a-6a4f4b2d8e11" doc:"Source identifier, usable as audio_source"`
	Width  uint32 `json:"width" example:"1920" doc:"Source width, 0 for audio-only sources"`
	Height uint32 `json:"height" example:"1080" doc:"Source height, 0 for audio-only sources"`
}

// Node wires a filter to the simulated host.
type Node struct {
	cfg    Config
	logger *slog.Logger
	bus    *events.Bus

	engine *hostsim.Engine
	source *hostsim.Source
	fc     *hostsim.FilterContext
	store  *settings.Store
	filter *output.Filter

	// mu serializes settings application; origin is read by the
	// settings-saved callback while it is held.
	mu     sync.Mutex
	origin string
}

// New builds the scene graph and creates the filter. Settings saved by a
// previous run are picked up as recent settings.
func New(cfg Config, bus *events.Bus) *Node {
	n := &Node{
		cfg:    cfg,
		logger: logging.GetLogger("node"),
		bus:    bus,
		origin: OriginAPI,
	}

	n.engine = hostsim.NewEngine(hostsim.Options{
		Video: host.VideoInfo{
			FPSNum: 30, FPSDen: 1,
			BaseWidth: 1920, BaseHeight: 1080,
			OutputWidth: 1920, OutputHeight: 1080,
		},
		Logger:       logging.GetLogger("hostsim"),
		ConnectDelay: cfg.ConnectDelay,
	})

	scene := n.engine.AddScene("Scene")
	n.source = n.engine.AddSource(cfg.SourceName, cfg.SourceWidth, cfg.SourceHeight)
	scene.AddChild(n.source)
	if cfg.AudioSourceName != "" {
		scene.AddChild(n.engine.AddSource(cfg.AudioSourceName, 0, 0))
	}

	n.store = settings.NewStore(cfg.SettingsDir, logging.GetLogger("settings"))
	n.fc = hostsim.NewFilterContext(cfg.FilterName, n.source, settings.New())

	n.filter = output.New(n.fc, n.engine, output.Options{
		Store:           n.store,
		Logger:          logging.GetLogger("output"),
		OnStateChange:   n.onStateChange,
		OnOverflow:      n.onOverflow,
		OnSettingsSaved: n.onSettingsSaved,
	})

	n.engine.OnTick(n.filter.Tick)
	n.engine.OnFilterAudio(n.filter.FilterAudio)
	return n
}

// Run drives the host clocks and, when enabled, the settings watcher until
// ctx is done. The filter is destroyed on return.
func (n *Node) Run(ctx context.Context) error {
	defer n.filter.Destroy()

	if n.cfg.WatchDebounce > 0 {
		watcher, err := n.watchSettings()
		if err != nil {
			return err
		}
		defer func() {
			if stopErr := watcher.Stop(); stopErr != nil {
				n.logger.Warn("Failed to stop settings watcher", "error", stopErr)
			}
		}()
	}

	n.logger.Info("Node running", "filter", n.cfg.FilterName, "source", n.cfg.SourceName, "settings", n.store.Path())
	return n.engine.Run(ctx, n.cfg.TickInterval)
}

func (n *Node) watchSettings() (*config.Watcher[settings.Data], error) {
	if err := os.MkdirAll(n.cfg.SettingsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}

	watcher := config.NewConfigWatcher(
		n.store.Path(),
		func(string) (settings.Data, error) { return n.store.Load() },
		n.logger,
		config.WithDebounce[settings.Data](n.cfg.WatchDebounce),
	)
	watcher.OnReload(func(d settings.Data) {
		n.ApplySettings(d, OriginFile)
	})

	if err := watcher.Start(); err != nil {
		return nil, fmt.Errorf("failed to watch settings: %w", err)
	}
	return watcher, nil
}

// ApplySettings replaces the filter settings and notifies the filter.
// Settings equal to the current ones are ignored, which also swallows the
// watcher echo of our own saves. Reports whether anything changed.
func (n *Node) ApplySettings(d settings.Data, origin string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if d == nil {
		d = settings.New()
	}
	if d.Equal(n.fc.Settings()) {
		n.logger.Debug("Settings unchanged, ignoring", "origin", origin)
		return false
	}

	n.fc.SetSettings(d.Clone())
	n.origin = origin
	n.filter.Update(n.fc.Settings())
	n.logger.Info("Settings applied", "origin", origin, "keys", len(d))
	return true
}

// Settings returns a copy of the current filter settings.
func (n *Node) Settings() settings.Data {
	return n.fc.Settings().Clone()
}

// Status returns the filter status.
func (n *Node) Status() output.Status {
	return n.filter.Status()
}

// Activate allows the filter to start output without a settings change.
func (n *Node) Activate() {
	n.filter.Activate()
}

// SetEnabled shows or hides the filter.
func (n *Node) SetEnabled(enabled bool) {
	n.fc.SetEnabled(enabled)
	n.logger.Info("Filter toggled", "enabled", enabled)
	n.bus.Publish(events.SourceToggledEvent{
		Filter:    n.cfg.FilterName,
		Enabled:   enabled,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Enabled reports whether the filter is shown.
func (n *Node) Enabled() bool {
	return n.fc.Enabled()
}

// ResizeSource changes the filtered source's resolution.
func (n *Node) ResizeSource(width, height uint32) {
	n.source.Resize(width, height)
	n.logger.Info("Source resized", "width", width, "height", height)
}

// SetNetwork simulates the network going down or coming back.
func (n *Node) SetNetwork(up bool) {
	n.engine.SetNetwork(up)
	n.logger.Info("Network state changed", "up", up)
}

// Sources lists the host sources.
func (n *Node) Sources() []SourceInfo {
	srcs := n.engine.Sources()
	infos := make([]SourceInfo, 0, len(srcs))
	for _, s := range srcs {
		infos = append(infos, SourceInfo{
			Name:   s.Name(),
			UUID:   s.UUID(),
			Width:  s.Width(),
			Height: s.Height(),
		})
	}
	slices.SortFunc(infos, func(a, b SourceInfo) int { return strings.Compare(a.Name, b.Name) })
	return infos
}

func (n *Node) onStateChange(filter string, from, to output.State, reason string) {
	n.bus.Publish(events.OutputStateChangedEvent{
		Filter:    filter,
		From:      string(from),
		To:        string(to),
		Reason:    reason,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (n *Node) onOverflow(filter string, dropped uint64) {
	n.bus.Publish(events.AudioOverflowEvent{
		Filter:        filter,
		DroppedFrames: dropped,
		Timestamp:     time.Now().Format(time.RFC3339),
	})
}

// onSettingsSaved runs inside ApplySettings, so origin is stable.
func (n *Node) onSettingsSaved(filter string, s settings.Data) {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	n.bus.Publish(events.SettingsUpdatedEvent{
		Filter:    filter,
		Keys:      keys,
		Source:    n.origin,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
