package hostsim

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/branchout/internal/host"
)

const toneHz = 440.0

// OnTick registers fn to run on every video tick.
func (e *Engine) OnTick(fn func()) {
	e.mu.Lock()
	e.tickFuncs = append(e.tickFuncs, fn)
	e.mu.Unlock()
}

// OnFilterAudio registers fn to receive the generated audio block of every
// quantum, as a filter's audio hook would.
func (e *Engine) OnFilterAudio(fn func(*host.AudioData) *host.AudioData) {
	e.mu.Lock()
	e.filterAudio = append(e.filterAudio, fn)
	e.mu.Unlock()
}

// QuantumDuration is the wall time of one audio quantum.
func (e *Engine) QuantumDuration() time.Duration {
	info, _ := e.AudioInfo()
	return time.Duration(host.AudioOutputFrames) * time.Second / time.Duration(info.SampleRate)
}

// Tick runs every registered tick function once.
func (e *Engine) Tick() {
	e.mu.Lock()
	fns := append([]func(){}, e.tickFuncs...)
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Quantum generates one block of audio, delivers it to every producer hook,
// pumps the open private audio outputs and lets their encoders drain.
func (e *Engine) Quantum(seq uint64) {
	info, _ := e.AudioInfo()
	data := e.tone(seq, info)

	e.mu.Lock()
	hooks := append([]func(*host.AudioData) *host.AudioData{}, e.filterAudio...)
	e.mu.Unlock()
	for _, fn := range hooks {
		fn(data)
	}

	for _, s := range e.Sources() {
		s.EmitAudio(data, false)
	}
	for mix := 0; mix < host.MaxAudioMixes; mix++ {
		e.EmitMaster(mix, data)
	}

	ts := data.Timestamp
	closed := 0
	for _, ao := range e.AudioOutputs() {
		if !ao.Pump(ts) {
			closed++
		}
	}
	if closed > 0 {
		e.pruneClosed()
	}

	e.mu.Lock()
	encs := append([]*Encoder(nil), e.audioEncs...)
	e.mu.Unlock()
	for _, enc := range encs {
		enc.Drain()
	}
}

// pruneClosed forgets closed audio outputs and released audio encoders.
// AudioOutput locks are never taken while holding the engine lock.
func (e *Engine) pruneClosed() {
	closed := make(map[*AudioOutput]bool)
	for _, ao := range e.AudioOutputs() {
		if ao.Closed() {
			closed[ao] = true
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.audioOutputs[:0]
	for _, ao := range e.audioOutputs {
		if !closed[ao] {
			kept = append(kept, ao)
		}
	}
	clear(e.audioOutputs[len(kept):])
	e.audioOutputs = kept

	encs := e.audioEncs[:0]
	for _, enc := range e.audioEncs {
		if !enc.Released() {
			encs = append(encs, enc)
		}
	}
	clear(e.audioEncs[len(encs):])
	e.audioEncs = encs
}

func (e *Engine) tone(seq uint64, info host.AudioInfo) *host.AudioData {
	frames := uint64(host.AudioOutputFrames)
	start := seq * frames
	data := &host.AudioData{
		Frames:    host.AudioOutputFrames,
		Timestamp: start * uint64(time.Second) / uint64(info.SampleRate),
	}
	plane := make([]float32, host.AudioOutputFrames)
	for i := range plane {
		t := float64(start+uint64(i)) / float64(info.SampleRate)
		plane[i] = float32(0.25 * math.Sin(2*math.Pi*toneHz*t))
	}
	for ch := 0; ch < min(info.Channels, host.MaxAudioChannels); ch++ {
		data.Data[ch] = plane
	}
	return data
}

// Run drives the video tick and the audio quantum clocks until ctx is done.
func (e *Engine) Run(ctx context.Context, tickInterval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				e.Tick()
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(e.QuantumDuration())
		defer ticker.Stop()
		var seq uint64
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				e.Quantum(seq)
				seq++
			}
		}
	})

	e.logger.Info("Simulated host running", "tick_interval", tickInterval, "quantum", e.QuantumDuration())
	err := g.Wait()
	e.logger.Info("Simulated host stopped")
	return err
}
