// Package output drives a branch output: a secondary encode and stream
// session attached to a single source.
//
// A Filter owns at most one session. Its Tick method is the state machine:
// it starts a session once the filter is active and its source enabled,
// retries when a connect attempt times out, restarts when settings or the
// source resolution change and stops when the source is hidden or removed.
// All lifecycle methods serialize on one mutex; audio producers and the
// audio output consumer only touch the lock-free parts of the audio router.
package output

import (
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/branchout/internal/audio"
	"github.com/smazurov/branchout/internal/host"
	"github.com/smazurov/branchout/internal/metrics"
	"github.com/smazurov/branchout/internal/settings"
)

// Options configures a Filter.
type Options struct {
	// Store persists settings on Update and supplies recent settings on
	// first creation. Nil disables persistence.
	Store  *settings.Store
	Logger *slog.Logger
	// Now is the lifecycle clock. Defaults to time.Now.
	Now           func() time.Time
	OnStateChange StateChangeFunc
	// OnOverflow is called from audio producer threads.
	OnOverflow audio.OverflowFunc
	// OnSettingsSaved is called after Update persisted settings.
	OnSettingsSaved func(filter string, s settings.Data)
}

// session holds the live host handles. Each is nil when absent.
type session struct {
	parent   host.Source
	view     host.View
	video    host.VideoOutput
	audioOut host.AudioOutput
	videoEnc host.Encoder
	audioEnc host.Encoder
	service  host.Service
	output   host.Output
}

// Filter is one branch output instance.
type Filter struct {
	name   string
	ctx    host.FilterContext
	engine host.Engine
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	buffer       *audio.ChunkBuffer
	router       *audio.Router
	sink         *audio.Sink
	availability *availability

	mu           sync.Mutex
	filterActive bool
	destroyed    bool
	state        State
	storedRev    uint64
	activeRev    uint64
	width        uint32
	height       uint32
	connectAt    time.Time
	outputType   string
	lastErr      error
	sess         session
}

// New creates a filter. When the host hands over empty settings the most
// recently saved settings are applied first, minus the connection target and
// audio source. The filter is active immediately when a server is set.
func New(ctx host.FilterContext, engine host.Engine, opts Options) *Filter {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	name := ctx.Name()
	logger := opts.Logger.With("filter", name)
	logger.Debug("Filter creating")

	buffer := audio.NewChunkBuffer(host.MaxAudioBufferFrames, logger)
	router := audio.NewRouter(name, buffer, logger, opts.OnOverflow)

	f := &Filter{
		name:         name,
		ctx:          ctx,
		engine:       engine,
		opts:         opts,
		logger:       logger,
		now:          opts.Now,
		buffer:       buffer,
		router:       router,
		sink:         audio.NewSink(name, buffer, router, engine, logger),
		availability: newAvailability(engine, host.AvailabilityCheckInterval, opts.Now),
		state:        StateIdle,
	}

	s := ctx.Settings()
	if s != nil && s.IsEmpty() && opts.Store != nil {
		if err := opts.Store.LoadRecent(s); err != nil {
			logger.Warn("Failed to load recent settings", "error", err)
		}
	}
	f.filterActive = s.String(settings.KeyServer) != ""

	metrics.SetOutputState(name, string(StateIdle), string(StateIdle), stateLabels())
	logger.Info("Filter created", "active", f.filterActive)
	return f
}

// Name returns the filter name.
func (f *Filter) Name() string {
	return f.name
}

// Update records a settings change. The running session is not touched:
// the new revision is picked up by Tick once the current connect attempt
// has settled. Settings are saved for future filters and a server makes the
// filter active, so a long-running filter created without one can start
// later instead of only at creation.
func (f *Filter) Update(s settings.Data) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.logger.Debug("Filter updating")
	f.storedRev++

	if f.opts.Store != nil {
		if err := f.opts.Store.Save(s); err != nil {
			f.logger.Error("Failed to save settings", "error", err)
		} else if f.opts.OnSettingsSaved != nil {
			f.opts.OnSettingsSaved(f.name, s.Clone())
		}
	}

	if s.String(settings.KeyServer) != "" {
		f.filterActive = true
	}

	f.logger.Info("Filter updated", "stored_rev", f.storedRev)
}

// Activate allows Tick to start output.
func (f *Filter) Activate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.filterActive {
		f.filterActive = true
		f.logger.Info("Filter activated")
	}
}

// FilterAudio is the filter's audio hook. It returns data unchanged.
func (f *Filter) FilterAudio(data *host.AudioData) *host.AudioData {
	return f.router.FilterAudio(data)
}

// Destroy stops any session. Further ticks are ignored.
func (f *Filter) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.destroyed {
		return
	}
	f.logger.Debug("Filter destroying")

	f.stopLocked("filter destroyed")
	f.destroyed = true
	f.filterActive = false

	metrics.DeleteOutputMetrics(f.name)
	metrics.DeleteAudioMetrics(f.name)
	f.logger.Info("Filter destroyed")
}

// State returns the lifecycle state.
func (f *Filter) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Status returns a snapshot of the filter.
func (f *Filter) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := Status{
		Filter:         f.name,
		State:          f.state,
		FilterActive:   f.filterActive,
		SessionActive:  f.router.Active(),
		StoredRev:      f.storedRev,
		ActiveRev:      f.activeRev,
		Width:          f.width,
		Height:         f.height,
		OutputType:     f.outputType,
		AudioMode:      f.router.Mode().String(),
		BufferedFrames: f.buffer.BufferedFrames(),
		ConnectAt:      f.connectAt,
	}
	if f.lastErr != nil {
		st.LastError = f.lastErr.Error()
	}
	return st
}

func (f *Filter) setState(to State, reason string) {
	from := f.state
	if from == to {
		return
	}
	f.state = to
	metrics.SetOutputState(f.name, string(from), string(to), stateLabels())
	f.logger.Debug("Output state changed", "from", from, "to", to, "reason", reason)
	if f.opts.OnStateChange != nil {
		f.opts.OnStateChange(f.name, from, to, reason)
	}
}
