// Package hostsim is an in-process media engine implementing the host
// contracts. It backs the daemon and the integration tests: sources and
// scenes are plain structs, outputs "connect" after a configurable delay and
// private audio outputs are pumped on a quantum clock.
package hostsim

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/branchout/internal/host"
	"github.com/smazurov/branchout/internal/settings"
)

// Object kinds accepted by FailCreate.
const (
	KindService     = "service"
	KindOutput      = "output"
	KindVideo       = "video"
	KindAudioOutput = "audio_output"
	KindVideoEnc    = "video_encoder"
	KindAudioEnc    = "audio_encoder"
)

// Options configures an Engine.
type Options struct {
	Video  host.VideoInfo
	Audio  host.AudioInfo
	Logger *slog.Logger
	// Now is the engine clock. Defaults to time.Now.
	Now func() time.Time
	// ConnectDelay is how long a started output takes to report active.
	ConnectDelay time.Duration
	// PreferredOutputType is reported by every created service.
	PreferredOutputType string
	// RingBytes sizes the byte ring between a private audio output and its
	// encoder. Defaults to one second of audio.
	RingBytes int
}

// Engine is a simulated host engine.
type Engine struct {
	logger *slog.Logger
	now    func() time.Time
	opts   Options

	initialized atomic.Bool
	networkUp   atomic.Bool
	nextID      atomic.Uint64

	mu           sync.Mutex
	videoOK      bool
	audioOK      bool
	sources      map[string]*Source
	scenes       []*Source
	raw          map[int]map[host.CallbackID]host.RawAudioCallback
	failures     map[string]bool
	outputs      []*Output
	audioOutputs []*AudioOutput
	audioEncs    []*Encoder
	tickFuncs    []func()
	filterAudio  []func(*host.AudioData) *host.AudioData
}

// NewEngine creates an initialized engine with the network up.
func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Audio.Channels == 0 {
		opts.Audio.Channels = 2
	}
	if opts.Audio.SampleRate == 0 {
		opts.Audio.SampleRate = 48000
	}
	if opts.RingBytes <= 0 {
		opts.RingBytes = int(opts.Audio.SampleRate) * opts.Audio.Channels * 4
	}

	e := &Engine{
		logger:   opts.Logger,
		now:      opts.Now,
		opts:     opts,
		videoOK:  true,
		audioOK:  true,
		sources:  make(map[string]*Source),
		raw:      make(map[int]map[host.CallbackID]host.RawAudioCallback),
		failures: make(map[string]bool),
	}
	e.initialized.Store(true)
	e.networkUp.Store(true)
	return e
}

// SetInitialized toggles engine readiness.
func (e *Engine) SetInitialized(ok bool) { e.initialized.Store(ok) }

// SetNetwork toggles whether started outputs can become active.
func (e *Engine) SetNetwork(up bool) { e.networkUp.Store(up) }

// SetVideoAvailable toggles whether VideoInfo succeeds.
func (e *Engine) SetVideoAvailable(ok bool) {
	e.mu.Lock()
	e.videoOK = ok
	e.mu.Unlock()
}

// SetAudioAvailable toggles whether AudioInfo succeeds.
func (e *Engine) SetAudioAvailable(ok bool) {
	e.mu.Lock()
	e.audioOK = ok
	e.mu.Unlock()
}

// FailCreate makes the factory for kind fail until reset.
func (e *Engine) FailCreate(kind string, fail bool) {
	e.mu.Lock()
	e.failures[kind] = fail
	e.mu.Unlock()
}

func (e *Engine) failing(kind string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failures[kind]
}

func (e *Engine) id() host.CallbackID {
	return host.CallbackID(e.nextID.Add(1))
}

// Initialized reports whether the host finished starting up.
func (e *Engine) Initialized() bool {
	return e.initialized.Load()
}

// VideoInfo returns the canvas video format.
func (e *Engine) VideoInfo() (host.VideoInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.Video, e.videoOK
}

// AudioInfo returns the mixer audio format.
func (e *Engine) AudioInfo() (host.AudioInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.Audio, e.audioOK
}

// AddRawAudioCallback registers cb for the raw output of mix mixIdx.
func (e *Engine) AddRawAudioCallback(mixIdx int, _ host.AudioConvertInfo, cb host.RawAudioCallback) host.CallbackID {
	id := e.id()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.raw[mixIdx] == nil {
		e.raw[mixIdx] = make(map[host.CallbackID]host.RawAudioCallback)
	}
	e.raw[mixIdx][id] = cb
	return id
}

// RemoveRawAudioCallback unregisters a raw audio callback.
func (e *Engine) RemoveRawAudioCallback(mixIdx int, id host.CallbackID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.raw[mixIdx], id)
}

// RawCallbacks returns the number of raw audio callbacks on a mix.
func (e *Engine) RawCallbacks(mixIdx int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.raw[mixIdx])
}

// EmitMaster delivers data to every raw audio callback on a mix.
func (e *Engine) EmitMaster(mixIdx int, data *host.AudioData) {
	e.mu.Lock()
	cbs := make([]host.RawAudioCallback, 0, len(e.raw[mixIdx]))
	for _, cb := range e.raw[mixIdx] {
		cbs = append(cbs, cb)
	}
	e.mu.Unlock()

	for _, cb := range cbs {
		cb(mixIdx, data)
	}
}

// CreateService creates a streaming service from its settings.
func (e *Engine) CreateService(kind, name string, s settings.Data) (host.Service, error) {
	if e.failing(KindService) {
		return nil, fmt.Errorf("%w: service %s", host.ErrCreateFailed, name)
	}
	e.logger.Debug("Create service", "kind", kind, "name", name)
	return &Service{
		kind:      kind,
		name:      name,
		server:    s.String(settings.KeyServer),
		preferred: e.opts.PreferredOutputType,
	}, nil
}

// CreateOutput creates a stream output that connects after the configured delay.
func (e *Engine) CreateOutput(kind, name string, _ settings.Data) (host.Output, error) {
	if e.failing(KindOutput) {
		return nil, fmt.Errorf("%w: output %s", host.ErrCreateFailed, name)
	}
	o := &Output{engine: e, kind: kind, name: name}
	e.mu.Lock()
	e.outputs = append(e.outputs, o)
	e.mu.Unlock()
	e.logger.Debug("Create output", "kind", kind, "name", name)
	return o, nil
}

// CreateView creates an empty view.
func (e *Engine) CreateView() host.View {
	return &View{engine: e}
}

// OpenAudioOutput opens a private audio device pulled by the mixer.
func (e *Engine) OpenAudioOutput(info host.AudioOutputInfo) (host.AudioOutput, error) {
	if e.failing(KindAudioOutput) {
		return nil, fmt.Errorf("%w: audio output %s", host.ErrCreateFailed, info.Name)
	}
	if info.Input == nil {
		return nil, fmt.Errorf("%w: audio output %s has no input", host.ErrCreateFailed, info.Name)
	}
	ao := newAudioOutput(info, e.opts.RingBytes)
	e.mu.Lock()
	e.audioOutputs = append(e.audioOutputs, ao)
	e.mu.Unlock()
	return ao, nil
}

// CreateVideoEncoder creates a video encoder of type id.
func (e *Engine) CreateVideoEncoder(id, name string, _ settings.Data) (host.Encoder, error) {
	if e.failing(KindVideoEnc) {
		return nil, fmt.Errorf("%w: video encoder %s", host.ErrCreateFailed, name)
	}
	if id == "" {
		return nil, fmt.Errorf("%w: video encoder type for %s", host.ErrNotFound, name)
	}
	return &Encoder{id: id, name: name}, nil
}

// CreateAudioEncoder creates an audio encoder of type id on mix mixIdx.
func (e *Engine) CreateAudioEncoder(id, name string, s settings.Data, mixIdx int) (host.Encoder, error) {
	if e.failing(KindAudioEnc) {
		return nil, fmt.Errorf("%w: audio encoder %s", host.ErrCreateFailed, name)
	}
	if id == "" {
		return nil, fmt.Errorf("%w: audio encoder type for %s", host.ErrNotFound, name)
	}
	enc := &Encoder{id: id, name: name, audio: true, mixIdx: mixIdx, settings: s.Clone()}
	e.mu.Lock()
	e.audioEncs = append(e.audioEncs, enc)
	e.mu.Unlock()
	return enc, nil
}

// EncoderDefaults returns the default settings for encoder type id.
func (e *Engine) EncoderDefaults(id string) settings.Data {
	d := settings.New()
	d.Set("rate_control", "CBR")
	if _, ok := audioEncoderIDs[id]; ok {
		d.Set(settings.KeyBitrate, 160)
	} else {
		d.Set(settings.KeyBitrate, 2500)
		d.Set("keyint_sec", 2)
	}
	return d
}

// Outputs returns every output created so far.
func (e *Engine) Outputs() []*Output {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Output(nil), e.outputs...)
}

// AudioOutputs returns every private audio output opened so far.
func (e *Engine) AudioOutputs() []*AudioOutput {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*AudioOutput(nil), e.audioOutputs...)
}

// LastOutput returns the most recently created output.
func (e *Engine) LastOutput() *Output {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.outputs) == 0 {
		return nil
	}
	return e.outputs[len(e.outputs)-1]
}

// Default encoder identifiers.
const (
	VideoEncoderID = "obs_x264"
	AudioEncoderID = "ffmpeg_aac"
)

var audioEncoderIDs = map[string]struct{}{
	AudioEncoderID: {},
	"ffmpeg_opus":  {},
	"libfdk_aac":   {},
}
