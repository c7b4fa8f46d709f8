package audio

import (
	"log/slog"

	"github.com/smazurov/branchout/internal/host"
	"github.com/smazurov/branchout/internal/metrics"
)

// AudioInfoProvider reports the host audio configuration.
type AudioInfoProvider interface {
	AudioInfo() (host.AudioInfo, bool)
}

// Sink drains a ChunkBuffer into the mix buses of a private audio output.
type Sink struct {
	name   string
	buffer *ChunkBuffer
	router *Router
	info   AudioInfoProvider
	logger *slog.Logger

	// skip counts consecutive starved quanta. Guarded by the buffer lock.
	skip uint64
}

// NewSink creates a sink reading from buffer.
func NewSink(name string, buffer *ChunkBuffer, router *Router, info AudioInfoProvider, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		name:   name,
		buffer: buffer,
		router: router,
		info:   info,
		logger: logger,
	}
}

// Input fills one quantum of host.AudioOutputFrames frames. It never blocks
// waiting for data: when fewer frames are buffered the mixes are left
// untouched (silence) and the buffer is not consumed.
//
// Input has the host.AudioInputCallback signature.
func (s *Sink) Input(startTS uint64, mixers uint32, mixes []host.MixBuffer) (uint64, bool) {
	if !s.router.Active() || s.router.Mode() == ModeSilence {
		return startTS, true
	}
	if _, ok := s.info.AudioInfo(); !ok {
		return startTS, true
	}

	buffered, starved := s.mix(mixers, mixes)
	if starved {
		metrics.IncSilentQuanta(s.name)
		return startTS, true
	}
	metrics.SetBufferedFrames(s.name, buffered)
	return startTS, true
}

// mix consumes one quantum into the enabled mixes under the buffer lock and
// returns the frames left. starved is set when too few frames were buffered.
func (s *Sink) mix(mixers uint32, mixes []host.MixBuffer) (buffered uint64, starved bool) {
	s.buffer.Lock()
	defer s.buffer.Unlock()

	if s.buffer.Buffered() < host.AudioOutputFrames {
		if s.skip == 0 {
			s.logger.Debug("Wait for frames", "buffered_frames", s.buffer.Buffered())
		}
		s.skip++
		return s.buffer.Buffered(), true
	}
	s.skip = 0

	channels := s.router.Channels()
	remaining := uint32(host.AudioOutputFrames)
	for remaining > 0 && s.buffer.Buffered() > 0 {
		view, ok := s.buffer.PeekFrontFull()
		if !ok {
			break
		}
		frames := min(view.Remaining(), remaining)
		outOffset := host.AudioOutputFrames - remaining

		for mixIdx := 0; mixIdx < host.MaxAudioMixes && mixIdx < len(mixes); mixIdx++ {
			if mixers&(1<<mixIdx) == 0 {
				continue
			}
			for ch := 0; ch < channels; ch++ {
				in := view.Data[ch]
				out := mixes[mixIdx].Data[ch]
				if in == nil || out == nil {
					continue
				}
				mixClamped(out[outOffset:outOffset+frames], in[view.Offset:view.Offset+frames])
			}
		}

		s.buffer.CommitConsumed(frames)
		remaining -= frames
	}

	return s.buffer.Buffered(), false
}

// Reset discards buffered audio and clears the starvation counter.
func (s *Sink) Reset() {
	s.buffer.Lock()
	defer s.buffer.Unlock()
	s.buffer.resetLocked()
	s.skip = 0
}

// mixClamped adds in to out sample by sample, clamping each result to
// [-1, 1].
func mixClamped(out, in []float32) {
	for i, v := range in {
		x := out[i] + v
		if x > 1 {
			x = 1
		} else if x < -1 {
			x = -1
		}
		out[i] = x
	}
}
