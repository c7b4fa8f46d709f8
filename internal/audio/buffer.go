// Package audio decouples a jitter-prone audio producer from the fixed
// quantum consumer of a private audio output.
//
// ChunkBuffer stores pushed blocks as self-describing chunks that can be
// drained partially. Router binds exactly one producer (filter audio, a
// captured source, a master mix bus or nothing) for the lifetime of an output
// session. Sink is the consumer: once per quantum it drains the buffer into
// the enabled mix buses, mixing additively with hard clipping, and never
// waits for data.
package audio

import (
	"log/slog"
	"sync"

	"github.com/smazurov/branchout/internal/host"
)

const bytesPerSample = 4

// ChunkHeader describes one buffered chunk.
type ChunkHeader struct {
	Frames    uint32
	Timestamp uint64
	// Offset counts leading frames already consumed.
	Offset uint32
	// Present has bit ch set when channel ch carries data.
	Present uint16
}

// Remaining returns the number of unconsumed frames.
func (h ChunkHeader) Remaining() uint32 {
	return h.Frames - h.Offset
}

// HasChannel reports whether channel ch carries data.
func (h ChunkHeader) HasChannel(ch int) bool {
	return h.Present&(1<<ch) != 0
}

// Channels returns the number of channels carrying data.
func (h ChunkHeader) Channels() int {
	n := 0
	for ch := 0; ch < host.MaxAudioChannels; ch++ {
		if h.HasChannel(ch) {
			n++
		}
	}
	return n
}

// DataSize returns the payload size of the chunk in bytes.
func (h ChunkHeader) DataSize() int {
	return h.Channels() * int(h.Frames) * bytesPerSample
}

// ChunkView is a chunk read for consumption. Data slices alias the buffer's
// scratch space and stay valid until the next peek.
type ChunkView struct {
	ChunkHeader
	Data [host.MaxAudioChannels][]float32
}

type chunk struct {
	header ChunkHeader
	data   [host.MaxAudioChannels][]float32
}

// ChunkBuffer is a FIFO of audio chunks bounded by a frame budget.
//
// Push and Reset take the lock themselves. PeekFrontHeader, PeekFrontFull,
// CommitConsumed and Buffered must be called with the lock held so that a
// consumer can run its peek and commit loop as one critical section.
type ChunkBuffer struct {
	mu        sync.Mutex
	chunks    []*chunk
	buffered  uint64
	maxFrames uint64
	scratch   []float32
	logger    *slog.Logger
}

// NewChunkBuffer creates a buffer bounded to maxFrames.
func NewChunkBuffer(maxFrames uint64, logger *slog.Logger) *ChunkBuffer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChunkBuffer{
		maxFrames: maxFrames,
		logger:    logger,
	}
}

// Lock acquires the buffer lock.
func (b *ChunkBuffer) Lock() { b.mu.Lock() }

// Unlock releases the buffer lock.
func (b *ChunkBuffer) Unlock() { b.mu.Unlock() }

// Push appends data as a new chunk, copying the first channels planes.
// When the chunk would exceed the frame budget the whole buffer is discarded
// first and Push reports the number of frames dropped.
func (b *ChunkBuffer) Push(data *host.AudioData, channels int) (dropped uint64, overflowed bool) {
	if data == nil || data.Frames == 0 {
		return 0, false
	}
	channels = min(channels, host.MaxAudioChannels)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buffered+uint64(data.Frames) > b.maxFrames {
		b.logger.Warn("The audio buffer is full", "buffered_frames", b.buffered, "frames", data.Frames)
		dropped = b.buffered
		b.resetLocked()
		overflowed = true
	}

	c := &chunk{header: ChunkHeader{Frames: data.Frames, Timestamp: data.Timestamp}}
	for ch := 0; ch < channels; ch++ {
		src := data.Data[ch]
		if src == nil {
			continue
		}
		plane := make([]float32, data.Frames)
		copy(plane, src)
		c.data[ch] = plane
		c.header.Present |= 1 << ch
	}
	b.chunks = append(b.chunks, c)

	need := c.header.Channels() * int(c.header.Frames)
	if need > len(b.scratch) {
		b.logger.Info("Expand audio conversion buffer",
			"from_bytes", len(b.scratch)*bytesPerSample,
			"to_bytes", need*bytesPerSample)
		b.scratch = make([]float32, need)
	}

	b.buffered += uint64(data.Frames)
	return dropped, overflowed
}

// PeekFrontHeader returns the header of the oldest chunk. Lock must be held.
func (b *ChunkBuffer) PeekFrontHeader() (ChunkHeader, bool) {
	if len(b.chunks) == 0 {
		return ChunkHeader{}, false
	}
	return b.chunks[0].header, true
}

// PeekFrontFull reads the oldest chunk's header and payload into scratch
// space. Lock must be held.
func (b *ChunkBuffer) PeekFrontFull() (ChunkView, bool) {
	if len(b.chunks) == 0 {
		return ChunkView{}, false
	}
	c := b.chunks[0]
	view := ChunkView{ChunkHeader: c.header}

	pos := 0
	frames := int(c.header.Frames)
	for ch := 0; ch < host.MaxAudioChannels; ch++ {
		if c.data[ch] == nil {
			continue
		}
		dst := b.scratch[pos : pos+frames]
		copy(dst, c.data[ch])
		view.Data[ch] = dst
		pos += frames
	}
	return view, true
}

// CommitConsumed marks frames of the oldest chunk as consumed. A fully
// drained chunk is removed; otherwise only its offset advances. Lock must be
// held.
func (b *ChunkBuffer) CommitConsumed(frames uint32) {
	if len(b.chunks) == 0 || frames == 0 {
		return
	}
	c := b.chunks[0]
	frames = min(frames, c.header.Remaining())

	if frames == c.header.Remaining() {
		b.chunks[0] = nil
		b.chunks = b.chunks[1:]
	} else {
		c.header.Offset += frames
	}
	b.buffered -= uint64(frames)
}

// Buffered returns the number of consumable frames. Lock must be held.
func (b *ChunkBuffer) Buffered() uint64 {
	return b.buffered
}

// Len returns the number of queued chunks. Lock must be held.
func (b *ChunkBuffer) Len() int {
	return len(b.chunks)
}

// ScratchSize returns the scratch capacity in bytes.
func (b *ChunkBuffer) ScratchSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.scratch) * bytesPerSample
}

// BufferedFrames is Buffered for callers not holding the lock.
func (b *ChunkBuffer) BufferedFrames() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffered
}

// Reset discards every chunk and zeroes the frame counter.
func (b *ChunkBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

func (b *ChunkBuffer) resetLocked() {
	clear(b.chunks)
	b.chunks = nil
	b.buffered = 0
}
