package hostsim

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/smallnest/ringbuffer"
	"github.com/smazurov/branchout/internal/host"
)

// AudioOutput is a simulated private audio output. Each Pump asks the input
// callback for one quantum, then writes mix 0 as interleaved little-endian
// float32 into a byte ring read by the bound audio encoder.
type AudioOutput struct {
	info host.AudioOutputInfo

	mu      sync.Mutex
	closed  bool
	mixes   []host.MixBuffer
	ring    *ringbuffer.RingBuffer
	scratch []byte
	dropped int64
	quanta  int64
	lastMix [host.MaxAudioChannels][]float32
}

func newAudioOutput(info host.AudioOutputInfo, ringBytes int) *AudioOutput {
	channels := min(info.Channels, host.MaxAudioChannels)
	mixes := make([]host.MixBuffer, host.MaxAudioMixes)
	for i := range mixes {
		for ch := 0; ch < channels; ch++ {
			mixes[i].Data[ch] = make([]float32, host.AudioOutputFrames)
		}
	}
	return &AudioOutput{
		info:    info,
		mixes:   mixes,
		ring:    ringbuffer.New(ringBytes),
		scratch: make([]byte, host.AudioOutputFrames*channels*4),
	}
}

// Pump runs one quantum through the input callback. It reports false once
// the output is closed.
func (ao *AudioOutput) Pump(startTS uint64) bool {
	ao.mu.Lock()
	defer ao.mu.Unlock()
	if ao.closed {
		return false
	}

	for i := range ao.mixes {
		for ch := range ao.mixes[i].Data {
			clear(ao.mixes[i].Data[ch])
		}
	}

	if _, ok := ao.info.Input(startTS, 1, ao.mixes); !ok {
		return true
	}
	ao.quanta++

	channels := min(ao.info.Channels, host.MaxAudioChannels)
	for ch := 0; ch < channels; ch++ {
		ao.lastMix[ch] = append(ao.lastMix[ch][:0], ao.mixes[0].Data[ch]...)
	}

	pos := 0
	for i := 0; i < host.AudioOutputFrames; i++ {
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint32(ao.scratch[pos:], math.Float32bits(ao.mixes[0].Data[ch][i]))
			pos += 4
		}
	}

	if ao.ring.Free() < pos {
		ao.dropped += int64(pos)
		return true
	}
	if _, err := ao.ring.Write(ao.scratch[:pos]); err != nil {
		ao.dropped += int64(pos)
	}
	return true
}

// LastQuantum returns a copy of mix 0 from the most recent quantum.
func (ao *AudioOutput) LastQuantum() [host.MaxAudioChannels][]float32 {
	ao.mu.Lock()
	defer ao.mu.Unlock()
	var out [host.MaxAudioChannels][]float32
	for ch, plane := range ao.lastMix {
		if plane != nil {
			out[ch] = append([]float32(nil), plane...)
		}
	}
	return out
}

// Quanta returns the number of quanta pumped.
func (ao *AudioOutput) Quanta() int64 {
	ao.mu.Lock()
	defer ao.mu.Unlock()
	return ao.quanta
}

// Dropped returns the bytes lost because the encoder fell behind.
func (ao *AudioOutput) Dropped() int64 {
	ao.mu.Lock()
	defer ao.mu.Unlock()
	return ao.dropped
}

// Closed reports whether Close was called.
func (ao *AudioOutput) Closed() bool {
	ao.mu.Lock()
	defer ao.mu.Unlock()
	return ao.closed
}

// Close detaches the device from the mixer. Further quanta are ignored.
func (ao *AudioOutput) Close() {
	ao.mu.Lock()
	ao.closed = true
	ao.ring.Reset()
	ao.mu.Unlock()
}

func (ao *AudioOutput) drain() int {
	ao.mu.Lock()
	defer ao.mu.Unlock()
	n := ao.ring.Length()
	if n == 0 {
		return 0
	}
	buf := make([]byte, n)
	read, err := ao.ring.Read(buf)
	if err != nil {
		return 0
	}
	return read
}
