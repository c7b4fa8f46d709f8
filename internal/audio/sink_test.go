package audio

import (
	"testing"
	"time"

	"github.com/smazurov/branchout/internal/host"
	"github.com/smazurov/branchout/internal/hostsim"
	"github.com/smazurov/branchout/internal/metrics"
	"github.com/smazurov/branchout/internal/settings"
)

func newMixes(channels int) []host.MixBuffer {
	mixes := make([]host.MixBuffer, host.MaxAudioMixes)
	for i := range mixes {
		for ch := 0; ch < channels; ch++ {
			mixes[i].Data[ch] = make([]float32, host.AudioOutputFrames)
		}
	}
	return mixes
}

type sinkFixture struct {
	engine *hostsim.Engine
	buffer *ChunkBuffer
	router *Router
	sink   *Sink
}

// newSinkFixture returns an active router in Filter mode feeding a sink.
func newSinkFixture(t *testing.T, name string) *sinkFixture {
	t.Helper()
	metrics.DeleteAudioMetrics(name)
	t.Cleanup(func() { metrics.DeleteAudioMetrics(name) })

	engine := hostsim.NewEngine(hostsim.Options{
		Audio:  host.AudioInfo{SampleRate: 48000, Channels: 2},
		Logger: discardLogger(),
		Now:    time.Now,
	})
	info, _ := engine.AudioInfo()

	buffer := NewChunkBuffer(host.MaxAudioBufferFrames, discardLogger())
	router := NewRouter(name, buffer, discardLogger(), nil)
	if err := router.Bind(engine, settings.New(), info); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	router.SetActive(true)

	return &sinkFixture{
		engine: engine,
		buffer: buffer,
		router: router,
		sink:   NewSink(name, buffer, router, engine, discardLogger()),
	}
}

func TestSinkStarvationEmitsSilence(t *testing.T) {
	f := newSinkFixture(t, "sink-starve")
	f.router.FilterAudio(ramp(1000, 0.1, 0))

	mixes := newMixes(2)
	ts, ok := f.sink.Input(777, 1, mixes)
	if !ok || ts != 777 {
		t.Errorf("Input() = (%d, %v), want (777, true)", ts, ok)
	}

	for ch := 0; ch < 2; ch++ {
		for i, v := range mixes[0].Data[ch] {
			if v != 0 {
				t.Fatalf("ch %d frame %d = %v, want silence", ch, i, v)
			}
		}
	}
	if got := f.buffer.BufferedFrames(); got != 1000 {
		t.Errorf("BufferedFrames() = %d, want 1000 (unchanged)", got)
	}

	f.sink.Input(778, 1, newMixes(2))
	m := metrics.GetAudioMetrics("sink-starve")
	if m == nil || m.SilentQuanta != 2 {
		t.Errorf("silent quanta = %+v, want 2", m)
	}
}

func TestSinkSplitEqualsWhole(t *testing.T) {
	source := ramp(host.AudioOutputFrames+200, 0, 0)
	part := func(from, to uint32) *host.AudioData {
		d := &host.AudioData{Frames: to - from}
		for ch := 0; ch < 2; ch++ {
			d.Data[ch] = source.Data[ch][from:to]
		}
		return d
	}

	whole := newSinkFixture(t, "sink-whole")
	whole.router.FilterAudio(part(0, host.AudioOutputFrames+200))
	wholeMix := newMixes(2)
	whole.sink.Input(0, 1, wholeMix)

	split := newSinkFixture(t, "sink-split")
	split.router.FilterAudio(part(0, 300))
	split.router.FilterAudio(part(300, 700))
	split.router.FilterAudio(part(700, host.AudioOutputFrames+200))
	splitMix := newMixes(2)
	split.sink.Input(0, 1, splitMix)

	for ch := 0; ch < 2; ch++ {
		for i := range wholeMix[0].Data[ch] {
			if wholeMix[0].Data[ch][i] != splitMix[0].Data[ch][i] {
				t.Fatalf("ch %d frame %d: whole=%v split=%v", ch, i, wholeMix[0].Data[ch][i], splitMix[0].Data[ch][i])
			}
			if want := source.Data[ch][i]; wholeMix[0].Data[ch][i] != want {
				t.Fatalf("ch %d frame %d = %v, want %v", ch, i, wholeMix[0].Data[ch][i], want)
			}
		}
	}

	if whole.buffer.BufferedFrames() != 200 || split.buffer.BufferedFrames() != 200 {
		t.Errorf("leftover frames whole=%d split=%d, want 200",
			whole.buffer.BufferedFrames(), split.buffer.BufferedFrames())
	}

	// The leftover 200 frames sit in a partially consumed chunk.
	split.buffer.Lock()
	h, _ := split.buffer.PeekFrontHeader()
	split.buffer.Unlock()
	if h.Offset != host.AudioOutputFrames-700 {
		t.Errorf("front offset = %d, want %d", h.Offset, host.AudioOutputFrames-700)
	}
}

func TestSinkPublishesBufferedFrames(t *testing.T) {
	f := newSinkFixture(t, "sink-metrics")
	f.router.FilterAudio(ramp(host.AudioOutputFrames+300, 0, 0))

	f.sink.Input(0, 1, newMixes(2))

	if !f.buffer.mu.TryLock() {
		t.Fatal("buffer lock still held after Input")
	}
	f.buffer.mu.Unlock()

	m := metrics.GetAudioMetrics("sink-metrics")
	if m == nil || m.BufferedFrames != 300 {
		t.Errorf("buffered frames metric = %+v, want 300", m)
	}
}

func TestSinkClampsAndHonorsMixerMask(t *testing.T) {
	f := newSinkFixture(t, "sink-clamp")

	in := &host.AudioData{Frames: host.AudioOutputFrames}
	pos := make([]float32, host.AudioOutputFrames)
	neg := make([]float32, host.AudioOutputFrames)
	for i := range pos {
		pos[i] = 0.8
		neg[i] = -0.8
	}
	in.Data[0], in.Data[1] = pos, neg
	f.router.FilterAudio(in)

	mixes := newMixes(2)
	for i := 0; i < host.AudioOutputFrames; i++ {
		mixes[0].Data[0][i] = 0.5
		mixes[0].Data[1][i] = -0.5
		mixes[2].Data[0][i] = 0.1
	}

	// mix 0 and mix 2 enabled, mix 1 disabled
	f.sink.Input(0, 0b101, mixes)

	if got := mixes[0].Data[0][0]; got != 1.0 {
		t.Errorf("positive clamp = %v, want 1.0", got)
	}
	if got := mixes[0].Data[1][0]; got != -1.0 {
		t.Errorf("negative clamp = %v, want -1.0", got)
	}
	if got := mixes[1].Data[0][0]; got != 0 {
		t.Errorf("disabled mix = %v, want 0", got)
	}
	if got := mixes[2].Data[0][5]; got != float32(0.1)+float32(0.8) {
		t.Errorf("mix 2 = %v, want %v", got, float32(0.1)+float32(0.8))
	}
}

func TestSinkIdleWhenInactiveOrSilent(t *testing.T) {
	f := newSinkFixture(t, "sink-idle")
	f.router.FilterAudio(ramp(host.AudioOutputFrames, 0.2, 0))

	f.router.SetActive(false)
	mixes := newMixes(2)
	f.sink.Input(0, 1, mixes)
	if mixes[0].Data[0][0] != 0 {
		t.Error("inactive session should not mix")
	}
	if f.buffer.BufferedFrames() != host.AudioOutputFrames {
		t.Error("inactive session should not consume")
	}

	f.router.SetActive(true)
	f.engine.SetAudioAvailable(false)
	f.sink.Input(0, 1, mixes)
	if f.buffer.BufferedFrames() != host.AudioOutputFrames {
		t.Error("missing audio info should not consume")
	}

	f.engine.SetAudioAvailable(true)
	f.router.Unbind()
	f.sink.Input(0, 1, mixes)
	if f.buffer.BufferedFrames() != host.AudioOutputFrames {
		t.Error("silence mode should not consume")
	}
}
