package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/smazurov/branchout/internal/host"
	"github.com/smazurov/branchout/internal/metrics"
	"github.com/smazurov/branchout/internal/settings"
)

// Audio source selectors stored under settings.KeyAudioSource.
const (
	NoAudioSource     = "no_audio"
	MasterTrackPrefix = "master_track_"
)

// ErrWeakReference is returned when a capture source cannot be held weakly.
var ErrWeakReference = errors.New("audio source retrieval failed")

// Mode is the active producer.
type Mode int32

// Producer modes.
const (
	ModeSilence Mode = iota
	ModeFilter
	ModeCapture
	ModeMaster
)

func (m Mode) String() string {
	switch m {
	case ModeSilence:
		return "silence"
	case ModeFilter:
		return "filter"
	case ModeCapture:
		return "capture"
	case ModeMaster:
		return "master"
	default:
		return "unknown"
	}
}

// binding is one producer registration. unbind reverses exactly what the
// binding registered.
type binding interface {
	mode() Mode
	unbind()
}

type silenceBinding struct{}

func (silenceBinding) mode() Mode { return ModeSilence }
func (silenceBinding) unbind()    {}

type filterBinding struct{}

func (filterBinding) mode() Mode { return ModeFilter }
func (filterBinding) unbind()    {}

type captureBinding struct {
	weak host.WeakSource
	id   host.CallbackID
}

func (captureBinding) mode() Mode { return ModeCapture }

func (b captureBinding) unbind() {
	if src, ok := b.weak.Get(); ok {
		src.RemoveAudioCaptureCallback(b.id)
		src.Release()
	}
	b.weak.Release()
}

type masterBinding struct {
	engine host.Engine
	mixIdx int
	id     host.CallbackID
}

func (masterBinding) mode() Mode { return ModeMaster }

func (b masterBinding) unbind() {
	b.engine.RemoveRawAudioCallback(b.mixIdx, b.id)
}

// OverflowFunc is called after a push discarded the buffer. buffered is the
// frame count that was dropped.
type OverflowFunc func(filter string, buffered uint64)

// Router selects the audio producer feeding a ChunkBuffer.
//
// Bind and Unbind run on the lifecycle thread. The producer callbacks run on
// host threads and read only the atomic fields.
type Router struct {
	name       string
	buffer     *ChunkBuffer
	logger     *slog.Logger
	onOverflow OverflowFunc

	active   atomic.Bool
	mode     atomic.Int32
	channels atomic.Int32

	binding binding
}

// NewRouter creates a router in Silence mode.
func NewRouter(name string, buffer *ChunkBuffer, logger *slog.Logger, onOverflow OverflowFunc) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		name:       name,
		buffer:     buffer,
		logger:     logger,
		onOverflow: onOverflow,
		binding:    silenceBinding{},
	}
}

// Mode returns the active producer mode.
func (r *Router) Mode() Mode {
	return Mode(r.mode.Load())
}

// Channels returns the channel count in effect for the session.
func (r *Router) Channels() int {
	return int(r.channels.Load())
}

// SetActive marks whether an output session is live. Producers push only
// while it is.
func (r *Router) SetActive(active bool) {
	r.active.Store(active)
}

// Active reports whether an output session is live.
func (r *Router) Active() bool {
	return r.active.Load()
}

// Bind selects and registers the producer described by s. Any previous
// binding must have been released with Unbind.
func (r *Router) Bind(engine host.Engine, s settings.Data, info host.AudioInfo) error {
	r.setBinding(silenceBinding{})
	r.channels.Store(int32(min(info.Channels, host.MaxAudioChannels)))
	r.buffer.Reset()

	if !s.Bool(settings.KeyCustomAudioSource) {
		r.logger.Info("Use filter audio as an audio source")
		r.setBinding(filterBinding{})
		return nil
	}

	selector := s.String(settings.KeyAudioSource)
	switch {
	case selector == "" || selector == NoAudioSource:
		// silence
	case strings.HasPrefix(selector, MasterTrackPrefix):
		r.bindMaster(engine, selector, info)
	default:
		if err := r.bindCapture(engine, selector); err != nil {
			return err
		}
	}

	if r.Mode() == ModeSilence {
		r.logger.Info("Audio is disabled")
	}
	return nil
}

func (r *Router) bindMaster(engine host.Engine, selector string, info host.AudioInfo) {
	track, err := strconv.Atoi(strings.TrimPrefix(selector, MasterTrackPrefix))
	if err != nil || track < 1 || track > host.MaxAudioMixes {
		r.logger.Warn("Invalid master track", "audio_source", selector)
		return
	}
	r.logger.Info("Use master track", "track", track)

	conv := host.AudioConvertInfo{
		Format:        host.AudioFormatFloatPlanar,
		SampleRate:    info.SampleRate,
		Channels:      info.Channels,
		AllowClipping: true,
	}
	mixIdx := track - 1
	id := engine.AddRawAudioCallback(mixIdx, conv, r.masterCallback)
	r.setBinding(masterBinding{engine: engine, mixIdx: mixIdx, id: id})
}

func (r *Router) bindCapture(engine host.Engine, selector string) error {
	if _, err := uuid.Parse(selector); err != nil {
		r.logger.Warn("Audio source is not a valid identifier", "audio_source", selector, "error", err)
		return nil
	}

	src, ok := engine.SourceByUUID(selector)
	if !ok {
		r.logger.Warn("Audio source not found", "audio_source", selector)
		return nil
	}
	defer src.Release()

	r.logger.Info("Use source as an audio source", "source", src.Name())

	weak := src.Weak()
	if weak == nil {
		return fmt.Errorf("%w: %s", ErrWeakReference, src.Name())
	}

	b := captureBinding{weak: weak}
	b.id = src.AddAudioCaptureCallback(r.captureCallback)
	r.setBinding(b)
	return nil
}

// Unbind removes the active registration and returns to Silence.
func (r *Router) Unbind() {
	r.binding.unbind()
	r.setBinding(silenceBinding{})
}

func (r *Router) setBinding(b binding) {
	r.binding = b
	r.mode.Store(int32(b.mode()))
}

// FilterAudio is the filter's audio hook. Audio is always passed through
// unchanged and is only buffered in Filter mode.
func (r *Router) FilterAudio(data *host.AudioData) *host.AudioData {
	if r.Mode() != ModeFilter {
		return data
	}
	r.push(data)
	return data
}

func (r *Router) captureCallback(_ host.Source, data *host.AudioData, muted bool) {
	if muted || r.Mode() != ModeCapture {
		return
	}
	r.push(data)
}

func (r *Router) masterCallback(_ int, data *host.AudioData) {
	r.push(data)
}

func (r *Router) push(data *host.AudioData) {
	if data == nil || !r.Active() || r.Mode() == ModeSilence || data.Frames == 0 {
		return
	}

	dropped, overflowed := r.buffer.Push(data, r.Channels())
	metrics.AddPushedFrames(r.name, data.Frames)
	if !overflowed {
		return
	}
	metrics.IncBufferOverflow(r.name)
	if r.onOverflow != nil {
		r.onOverflow(r.name, dropped)
	}
}
