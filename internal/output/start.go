package output

import (
	"time"

	"github.com/smazurov/branchout/internal/host"
	"github.com/smazurov/branchout/internal/metrics"
	"github.com/smazurov/branchout/internal/settings"
)

// start tears down any previous session and builds a new one from s.
// A failure leaves the handles created so far in place; they are released
// by the next teardown.
func (f *Filter) start(s settings.Data) error {
	f.teardown()

	if !f.engine.Initialized() || !f.ctx.Enabled() {
		return NewOutputError(ErrCodeNotReady, "host not ready", ErrNotReady)
	}

	parent, ok := f.ctx.Parent()
	if !ok {
		return NewOutputError(ErrCodeNoParent, "Filter source not found", host.ErrNotFound)
	}

	vi, ok := f.engine.VideoInfo()
	if !ok {
		return NewOutputError(ErrCodeNoVideo, "video is not configured", ErrNoVideo)
	}

	f.width = evenCeil(parent.Width())
	f.height = evenCeil(parent.Height())
	vi.BaseWidth, vi.BaseHeight = f.width, f.height
	vi.OutputWidth, vi.OutputHeight = f.width, f.height

	if f.width == 0 || f.height == 0 || vi.FPSNum == 0 || vi.FPSDen == 0 {
		return NewOutputError(ErrCodeInvalidVideo, "invalid video parameters", ErrInvalidVideo)
	}

	f.activeRev = f.storedRev

	service, err := f.engine.CreateService(ServiceType, f.name, s)
	if err != nil {
		return NewOutputError(ErrCodeService, "Service creation failed", err)
	}
	f.sess.service = service
	service.ApplyEncoderSettings(s, nil)

	f.outputType = ResolveOutputType(service.PreferredOutputType(), service.ServerURL())

	out, err := f.engine.CreateOutput(f.outputType, f.name, s)
	if err != nil {
		return NewOutputError(ErrCodeOutput, "Stream output creation failed", err)
	}
	f.sess.output = out
	out.SetReconnectSettings(host.OutputMaxRetries, host.OutputRetryDelay)
	out.SetService(service)
	f.connectAt = f.now()

	view := f.engine.CreateView()
	f.sess.view = view
	view.SetSource(0, parent)
	video, ok := view.Add(vi)
	if !ok {
		return NewOutputError(ErrCodeVideoOutput, "Video output association failed", host.ErrCreateFailed)
	}
	f.sess.video = video

	ai, ok := f.engine.AudioInfo()
	if !ok {
		return NewOutputError(ErrCodeAudioOutput, "Audio is not configured", host.ErrNotFound)
	}
	if err := f.router.Bind(f.engine, s, ai); err != nil {
		return NewOutputError(ErrCodeAudioSource, "Audio source retrieval failed", err)
	}

	audioOut, err := f.engine.OpenAudioOutput(host.AudioOutputInfo{
		Name:       f.name,
		SampleRate: ai.SampleRate,
		Channels:   ai.Channels,
		Format:     host.AudioFormatFloatPlanar,
		Input:      f.sink.Input,
	})
	if err != nil {
		return NewOutputError(ErrCodeAudioOutput, "Opening audio output failed", err)
	}
	f.sess.audioOut = audioOut

	videoEnc, err := f.engine.CreateVideoEncoder(s.String(settings.KeyVideoEncoder), f.name, s)
	if err != nil {
		return NewOutputError(ErrCodeVideoEncoder, "Video encoder creation failed", err)
	}
	f.sess.videoEnc = videoEnc
	videoEnc.SetScaledSize(0, 0)
	videoEnc.SetVideo(video)
	out.SetVideoEncoder(videoEnc)

	audioEncoderID := s.String(settings.KeyAudioEncoder)
	audioSettings := f.engine.EncoderDefaults(audioEncoderID)
	if audioSettings == nil {
		audioSettings = settings.New()
	}
	audioSettings.Set(settings.KeyBitrate, s.Int(settings.KeyAudioBitrate))

	// Track 0 only.
	audioEnc, err := f.engine.CreateAudioEncoder(audioEncoderID, f.name, audioSettings, 0)
	if err != nil {
		return NewOutputError(ErrCodeAudioEncoder, "Audio encoder creation failed", err)
	}
	f.sess.audioEnc = audioEnc
	audioEnc.SetAudio(audioOut)
	out.SetAudioEncoder(audioEnc, 0)

	if !out.Start() {
		metrics.IncOutputStart(f.name, false)
		return NewOutputError(ErrCodeStartFailed, "Starting stream output failed", nil)
	}
	metrics.IncOutputStart(f.name, true)

	f.router.SetActive(true)
	f.sess.parent = parent
	parent.IncShowing()
	f.logger.Info("Starting stream output succeeded",
		"output_type", f.outputType,
		"width", f.width,
		"height", f.height,
		"audio", f.router.Mode().String())
	return nil
}

// teardown releases every session handle in reverse dependency order. It is
// idempotent.
func (f *Filter) teardown() {
	f.connectAt = time.Time{}
	wasActive := f.router.Active()

	if f.sess.output != nil {
		if wasActive {
			if f.sess.parent != nil {
				f.sess.parent.DecShowing()
			}
			f.sess.output.Stop()
		}
		f.sess.output.Release()
		f.sess.output = nil
	}
	f.sess.parent = nil

	if f.sess.service != nil {
		f.sess.service.Release()
		f.sess.service = nil
	}
	if f.sess.audioEnc != nil {
		f.sess.audioEnc.Release()
		f.sess.audioEnc = nil
	}
	if f.sess.videoEnc != nil {
		f.sess.videoEnc.Release()
		f.sess.videoEnc = nil
	}

	f.router.Unbind()

	if f.sess.audioOut != nil {
		f.sess.audioOut.Close()
		f.sess.audioOut = nil
	}

	if f.sess.view != nil {
		f.sess.view.SetSource(0, nil)
		f.sess.view.Remove()
		f.sess.view.Destroy()
		f.sess.view = nil
	}
	f.sess.video = nil

	f.sink.Reset()

	if wasActive {
		f.router.SetActive(false)
		f.logger.Info("Stopping stream output succeeded")
	}
}
