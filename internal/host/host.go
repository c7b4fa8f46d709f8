// Package host defines the contracts between the branch output core and the
// media engine hosting it.
//
// The core never creates encoders, services or outputs itself; it asks the
// Engine for opaque handles and releases them again on teardown. Every
// callback registration returns a CallbackID so that teardown can remove
// exactly the registration it made.
package host

import (
	"errors"
	"time"

	"github.com/smazurov/branchout/internal/settings"
)

// Engine limits and timing constants.
const (
	// AudioOutputFrames is the number of frames requested per output quantum.
	AudioOutputFrames = 1024
	// MaxAudioMixes is the number of parallel mix buses (tracks).
	MaxAudioMixes = 6
	// MaxAudioChannels is the maximum number of planar channels.
	MaxAudioChannels = 8
	// MaxAudioBufferFrames bounds the audio chunk buffer.
	MaxAudioBufferFrames = 131071

	// ConnectAttemptingTimeout is the interval after which a connection
	// attempt is re-evaluated.
	ConnectAttemptingTimeout = 15 * time.Second
	// AvailabilityCheckInterval rate-limits scene availability lookups.
	AvailabilityCheckInterval = 1 * time.Second

	// OutputMaxRetries and OutputRetryDelay configure the output's own
	// low-level reconnect.
	OutputMaxRetries = 7
	OutputRetryDelay = 1 * time.Second
)

// Errors returned by engine factories.
var (
	ErrCreateFailed = errors.New("host object creation failed")
	ErrNotFound     = errors.New("host object not found")
)

// CallbackID identifies a registered callback.
type CallbackID uint64

// AudioFormat is a sample layout.
type AudioFormat int

// Supported audio formats.
const (
	AudioFormatUnknown AudioFormat = iota
	AudioFormatFloatPlanar
)

// AudioData is one block of planar float32 audio. A nil channel slice means
// the channel is absent.
type AudioData struct {
	Data      [MaxAudioChannels][]float32
	Frames    uint32
	Timestamp uint64
}

// MixBuffer is one output mix bus for a single quantum.
type MixBuffer struct {
	Data [MaxAudioChannels][]float32
}

// VideoInfo describes the host video pipeline.
type VideoInfo struct {
	FPSNum       uint32
	FPSDen       uint32
	BaseWidth    uint32
	BaseHeight   uint32
	OutputWidth  uint32
	OutputHeight uint32
}

// AudioInfo describes the host audio pipeline.
type AudioInfo struct {
	SampleRate uint32
	Channels   int
}

// AudioConvertInfo requests conversion for raw mix callbacks.
type AudioConvertInfo struct {
	Format        AudioFormat
	SampleRate    uint32
	Channels      int
	AllowClipping bool
}

// AudioOutputInfo configures a private audio output device.
type AudioOutputInfo struct {
	Name       string
	SampleRate uint32
	Channels   int
	Format     AudioFormat
	Input      AudioInputCallback
}

// AudioCaptureCallback receives audio captured from a source.
type AudioCaptureCallback func(src Source, data *AudioData, muted bool)

// RawAudioCallback receives audio from a master mix bus.
type RawAudioCallback func(mixIdx int, data *AudioData)

// AudioInputCallback fills the mix buses of a private audio output for one
// quantum starting at startTS and reports the quantum's timestamp.
type AudioInputCallback func(startTS uint64, mixers uint32, mixes []MixBuffer) (outTS uint64, ok bool)

// Engine is the hosting media engine.
type Engine interface {
	Initialized() bool
	VideoInfo() (VideoInfo, bool)
	AudioInfo() (AudioInfo, bool)

	// SourceByUUID returns a strong reference that must be released.
	SourceByUUID(id string) (Source, bool)
	// SourceInScenes reports whether src is a scene or is reachable from any
	// top-level scene.
	SourceInScenes(src Source) bool

	AddRawAudioCallback(mixIdx int, conv AudioConvertInfo, cb RawAudioCallback) CallbackID
	RemoveRawAudioCallback(mixIdx int, id CallbackID)

	CreateService(kind, name string, s settings.Data) (Service, error)
	CreateOutput(kind, name string, s settings.Data) (Output, error)
	CreateView() View
	OpenAudioOutput(info AudioOutputInfo) (AudioOutput, error)
	CreateVideoEncoder(id, name string, s settings.Data) (Encoder, error)
	CreateAudioEncoder(id, name string, s settings.Data, mixIdx int) (Encoder, error)
	EncoderDefaults(id string) settings.Data
}

// FilterContext is the host-side filter instance the core is attached to.
type FilterContext interface {
	Name() string
	Enabled() bool
	// Parent returns the filtered source without taking a reference.
	Parent() (Source, bool)
	// Settings returns the filter's current settings.
	Settings() settings.Data
}

// Source is a host source.
type Source interface {
	Name() string
	UUID() string
	Width() uint32
	Height() uint32
	Weak() WeakSource
	Release()
	AddAudioCaptureCallback(cb AudioCaptureCallback) CallbackID
	RemoveAudioCaptureCallback(id CallbackID)
	IncShowing()
	DecShowing()
}

// WeakSource refers to a source without keeping it alive.
type WeakSource interface {
	// Get returns a strong reference if the source still exists.
	Get() (Source, bool)
	Release()
}

// Service describes the streaming destination.
type Service interface {
	ApplyEncoderSettings(video, audio settings.Data)
	PreferredOutputType() string
	ServerURL() string
	Release()
}

// Output is the network stream output.
type Output interface {
	SetReconnectSettings(maxRetries int, delay time.Duration)
	SetService(svc Service)
	SetVideoEncoder(enc Encoder)
	SetAudioEncoder(enc Encoder, idx int)
	Start() bool
	Stop()
	Active() bool
	Release()
}

// View renders a source at a fixed resolution.
type View interface {
	SetSource(channel int, src Source)
	Add(vi VideoInfo) (VideoOutput, bool)
	Remove()
	Destroy()
}

// VideoOutput is the video association produced by a view.
type VideoOutput interface {
	Info() VideoInfo
}

// Encoder is a video or audio encoder.
type Encoder interface {
	SetScaledSize(width, height uint32)
	SetVideo(video VideoOutput)
	SetAudio(audio AudioOutput)
	Release()
}

// AudioOutput is a private audio output device. After Close returns the
// input callback is no longer invoked.
type AudioOutput interface {
	Close()
}
