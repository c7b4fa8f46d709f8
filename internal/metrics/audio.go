// Package metrics provides Prometheus metrics for the audio buffer and the
// output lifecycle.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	audioBufferedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "branchout",
		Subsystem: "audio",
		Name:      "buffered_frames",
		Help:      "Audio frames waiting in the chunk buffer",
	}, []string{"filter"})

	audioPushedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "branchout",
		Subsystem: "audio",
		Name:      "pushed_frames_total",
		Help:      "Audio frames accepted from the active producer",
	}, []string{"filter"})

	audioOverflows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "branchout",
		Subsystem: "audio",
		Name:      "buffer_overflows_total",
		Help:      "Times the chunk buffer was discarded because it exceeded its frame budget",
	}, []string{"filter"})

	audioSilentQuanta = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "branchout",
		Subsystem: "audio",
		Name:      "silent_quanta_total",
		Help:      "Output quanta emitted as silence because too few frames were buffered",
	}, []string{"filter"})

	// Local cache for status reporting.
	audioCache   = make(map[string]*AudioMetrics)
	audioCacheMu sync.RWMutex
)

// AudioMetrics holds current audio metric values for a filter.
type AudioMetrics struct {
	BufferedFrames float64
	PushedFrames   float64
	Overflows      float64
	SilentQuanta   float64
}

// SetBufferedFrames sets the number of buffered frames for a filter.
func SetBufferedFrames(filter string, frames uint64) {
	audioBufferedFrames.WithLabelValues(filter).Set(float64(frames))
	updateAudioCache(filter, func(m *AudioMetrics) { m.BufferedFrames = float64(frames) })
}

// AddPushedFrames counts frames accepted into the buffer.
func AddPushedFrames(filter string, frames uint32) {
	audioPushedFrames.WithLabelValues(filter).Add(float64(frames))
	updateAudioCache(filter, func(m *AudioMetrics) { m.PushedFrames += float64(frames) })
}

// IncBufferOverflow counts a drop-all overflow.
func IncBufferOverflow(filter string) {
	audioOverflows.WithLabelValues(filter).Inc()
	updateAudioCache(filter, func(m *AudioMetrics) { m.Overflows++ })
}

// IncSilentQuanta counts a starved output quantum.
func IncSilentQuanta(filter string) {
	audioSilentQuanta.WithLabelValues(filter).Inc()
	updateAudioCache(filter, func(m *AudioMetrics) { m.SilentQuanta++ })
}

// GetAudioMetrics returns a copy of the current values for a filter.
func GetAudioMetrics(filter string) *AudioMetrics {
	audioCacheMu.RLock()
	defer audioCacheMu.RUnlock()
	if m, ok := audioCache[filter]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllAudioMetrics returns a copy of the current values for every filter.
func GetAllAudioMetrics() map[string]*AudioMetrics {
	audioCacheMu.RLock()
	defer audioCacheMu.RUnlock()
	out := make(map[string]*AudioMetrics, len(audioCache))
	for filter, m := range audioCache {
		dup := *m
		out[filter] = &dup
	}
	return out
}

// DeleteAudioMetrics removes all audio metrics for a filter.
func DeleteAudioMetrics(filter string) {
	audioBufferedFrames.DeleteLabelValues(filter)
	audioPushedFrames.DeleteLabelValues(filter)
	audioOverflows.DeleteLabelValues(filter)
	audioSilentQuanta.DeleteLabelValues(filter)

	audioCacheMu.Lock()
	delete(audioCache, filter)
	audioCacheMu.Unlock()
}

func updateAudioCache(filter string, update func(*AudioMetrics)) {
	audioCacheMu.Lock()
	defer audioCacheMu.Unlock()
	m, ok := audioCache[filter]
	if !ok {
		m = &AudioMetrics{}
		audioCache[filter] = m
	}
	update(m)
}
