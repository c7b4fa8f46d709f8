package hostsim

import (
	"sync"
	"time"

	"github.com/smazurov/branchout/internal/host"
	"github.com/smazurov/branchout/internal/settings"
)

// Service is a simulated streaming destination.
type Service struct {
	kind      string
	name      string
	server    string
	preferred string

	mu       sync.Mutex
	video    settings.Data
	audio    settings.Data
	released bool
}

// ApplyEncoderSettings records the settings passed for both encoders.
func (s *Service) ApplyEncoderSettings(video, audio settings.Data) {
	s.mu.Lock()
	s.video, s.audio = video, audio
	s.mu.Unlock()
}

// PreferredOutputType returns the output type the service asks for, if any.
func (s *Service) PreferredOutputType() string { return s.preferred }

// ServerURL returns the configured server.
func (s *Service) ServerURL() string { return s.server }

// Release frees the service.
func (s *Service) Release() {
	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
}

// Output is a simulated network output. After Start it reports active once
// the engine's connect delay has elapsed and the network is up.
type Output struct {
	engine *Engine
	kind   string
	name   string

	mu         sync.Mutex
	maxRetries int
	retryDelay time.Duration
	service    host.Service
	videoEnc   host.Encoder
	audioEnc   host.Encoder
	started    bool
	startedAt  time.Time
	released   bool
	failStart  bool
}

// Kind returns the output type the output was created with.
func (o *Output) Kind() string { return o.kind }

// FailStart makes the next Start calls fail.
func (o *Output) FailStart(fail bool) {
	o.mu.Lock()
	o.failStart = fail
	o.mu.Unlock()
}

// SetReconnectSettings stores the retry policy.
func (o *Output) SetReconnectSettings(maxRetries int, delay time.Duration) {
	o.mu.Lock()
	o.maxRetries, o.retryDelay = maxRetries, delay
	o.mu.Unlock()
}

// ReconnectSettings returns the configured low-level reconnect policy.
func (o *Output) ReconnectSettings() (int, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.maxRetries, o.retryDelay
}

// SetService binds the streaming service.
func (o *Output) SetService(svc host.Service) {
	o.mu.Lock()
	o.service = svc
	o.mu.Unlock()
}

// SetVideoEncoder binds the video encoder.
func (o *Output) SetVideoEncoder(enc host.Encoder) {
	o.mu.Lock()
	o.videoEnc = enc
	o.mu.Unlock()
}

// SetAudioEncoder binds the audio encoder for track 0.
func (o *Output) SetAudioEncoder(enc host.Encoder, _ int) {
	o.mu.Lock()
	o.audioEnc = enc
	o.mu.Unlock()
}

// Start begins connecting. It fails when FailStart is set or a binding is missing.
func (o *Output) Start() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failStart || o.service == nil || o.videoEnc == nil || o.audioEnc == nil {
		return false
	}
	o.started = true
	o.startedAt = o.engine.now()
	return true
}

// Stop ends the stream.
func (o *Output) Stop() {
	o.mu.Lock()
	o.started = false
	o.mu.Unlock()
}

// Active reports whether the output is connected and the network is up.
func (o *Output) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.started || !o.engine.networkUp.Load() {
		return false
	}
	return !o.engine.now().Before(o.startedAt.Add(o.engine.opts.ConnectDelay))
}

// Release frees the output.
func (o *Output) Release() {
	o.mu.Lock()
	o.released = true
	o.started = false
	o.mu.Unlock()
}

// Released reports whether the output handle was released.
func (o *Output) Released() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.released
}

// View is a simulated rendering view.
type View struct {
	engine *Engine

	mu        sync.Mutex
	source    host.Source
	video     *VideoOutput
	destroyed bool
}

// SetSource puts src on the view channel.
func (v *View) SetSource(_ int, src host.Source) {
	v.mu.Lock()
	v.source = src
	v.mu.Unlock()
}

// Add attaches a video output with the given format.
func (v *View) Add(vi host.VideoInfo) (host.VideoOutput, bool) {
	if v.engine.failing(KindVideo) {
		return nil, false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.video = &VideoOutput{info: vi}
	return v.video, true
}

// Remove detaches the video output.
func (v *View) Remove() {
	v.mu.Lock()
	v.video = nil
	v.mu.Unlock()
}

// Destroy frees the view.
func (v *View) Destroy() {
	v.mu.Lock()
	v.destroyed = true
	v.source = nil
	v.mu.Unlock()
}

// VideoOutput is the association returned by View.Add.
type VideoOutput struct {
	info host.VideoInfo
}

// Info returns the video format.
func (vo *VideoOutput) Info() host.VideoInfo { return vo.info }

// Encoder is a simulated encoder. Audio encoders drain the byte ring of the
// private audio output they are bound to.
type Encoder struct {
	id       string
	name     string
	audio    bool
	mixIdx   int
	settings settings.Data

	mu            sync.Mutex
	width, height uint32
	videoOut      host.VideoOutput
	audioOut      *AudioOutput
	encodedBytes  int64
	released      bool
}

// ID returns the encoder type identifier.
func (enc *Encoder) ID() string { return enc.id }

// Settings returns the settings the encoder was created with.
func (enc *Encoder) Settings() settings.Data { return enc.settings }

// SetScaledSize sets the output size. Zero keeps the source size.
func (enc *Encoder) SetScaledSize(width, height uint32) {
	enc.mu.Lock()
	enc.width, enc.height = width, height
	enc.mu.Unlock()
}

// SetVideo binds the encoder to a video output.
func (enc *Encoder) SetVideo(video host.VideoOutput) {
	enc.mu.Lock()
	enc.videoOut = video
	enc.mu.Unlock()
}

// SetAudio binds the encoder to an audio output.
func (enc *Encoder) SetAudio(audio host.AudioOutput) {
	ao, _ := audio.(*AudioOutput)
	enc.mu.Lock()
	enc.audioOut = ao
	enc.mu.Unlock()
}

// Release frees the encoder.
func (enc *Encoder) Release() {
	enc.mu.Lock()
	enc.released = true
	enc.audioOut = nil
	enc.mu.Unlock()
}

// Released reports whether the encoder handle was released.
func (enc *Encoder) Released() bool {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	return enc.released
}

// Drain consumes everything the bound audio output has produced and returns
// the number of bytes read.
func (enc *Encoder) Drain() int {
	enc.mu.Lock()
	ao := enc.audioOut
	enc.mu.Unlock()
	if ao == nil {
		return 0
	}

	n := ao.drain()
	enc.mu.Lock()
	enc.encodedBytes += int64(n)
	enc.mu.Unlock()
	return n
}

// EncodedBytes returns the total bytes drained.
func (enc *Encoder) EncodedBytes() int64 {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	return enc.encodedBytes
}
