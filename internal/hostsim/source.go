package hostsim

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/smazurov/branchout/internal/host"
)

// Source is a simulated host source. A source with children acts as a scene.
type Source struct {
	engine *Engine
	name   string
	uuid   string

	refs     atomic.Int64
	showing  atomic.Int64
	removed  atomic.Bool
	failWeak atomic.Bool

	mu       sync.Mutex
	width    uint32
	height   uint32
	children []*Source
	capture  map[host.CallbackID]host.AudioCaptureCallback
}

// AddSource registers a source with a fresh UUID.
func (e *Engine) AddSource(name string, width, height uint32) *Source {
	s := &Source{
		engine:  e,
		name:    name,
		uuid:    uuid.NewString(),
		width:   width,
		height:  height,
		capture: make(map[host.CallbackID]host.AudioCaptureCallback),
	}
	e.mu.Lock()
	e.sources[s.uuid] = s
	e.mu.Unlock()
	return s
}

// AddScene registers a top-level scene.
func (e *Engine) AddScene(name string) *Source {
	s := e.AddSource(name, 0, 0)
	e.mu.Lock()
	e.scenes = append(e.scenes, s)
	e.mu.Unlock()
	return s
}

// RemoveSource drops a source from the engine. Weak references to it no
// longer resolve.
func (e *Engine) RemoveSource(s *Source) {
	s.removed.Store(true)
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sources, s.uuid)
	for i, scene := range e.scenes {
		if scene == s {
			e.scenes = append(e.scenes[:i], e.scenes[i+1:]...)
			break
		}
	}
}

// SourceByUUID returns a strong reference to the source with the given UUID.
func (e *Engine) SourceByUUID(id string) (host.Source, bool) {
	e.mu.Lock()
	s, ok := e.sources[id]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	s.refs.Add(1)
	return s, true
}

// SourceInScenes reports whether src is a scene or is nested in one.
func (e *Engine) SourceInScenes(src host.Source) bool {
	if src == nil {
		return false
	}
	id := src.UUID()

	e.mu.Lock()
	scenes := append([]*Source(nil), e.scenes...)
	e.mu.Unlock()

	for _, scene := range scenes {
		if scene.uuid == id || scene.contains(id) {
			return true
		}
	}
	return false
}

// Sources lists every registered source, scenes included.
func (e *Engine) Sources() []*Source {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Source, 0, len(e.sources))
	for _, s := range e.sources {
		out = append(out, s)
	}
	return out
}

// AddChild places child in this scene.
func (s *Source) AddChild(child *Source) {
	s.mu.Lock()
	s.children = append(s.children, child)
	s.mu.Unlock()
}

// RemoveChild removes child from this scene.
func (s *Source) RemoveChild(child *Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

func (s *Source) contains(id string) bool {
	s.mu.Lock()
	children := append([]*Source(nil), s.children...)
	s.mu.Unlock()

	for _, c := range children {
		if c.uuid == id || c.contains(id) {
			return true
		}
	}
	return false
}

// Name returns the source name.
func (s *Source) Name() string { return s.name }

// UUID returns the source identifier.
func (s *Source) UUID() string { return s.uuid }

// Width returns the current width in pixels.
func (s *Source) Width() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width
}

// Height returns the current height in pixels.
func (s *Source) Height() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

// Resize changes the source dimensions.
func (s *Source) Resize(width, height uint32) {
	s.mu.Lock()
	s.width, s.height = width, height
	s.mu.Unlock()
}

// FailWeak makes Weak return nil.
func (s *Source) FailWeak(fail bool) { s.failWeak.Store(fail) }

// Weak returns a weak reference, or nil once removed or when FailWeak is set.
func (s *Source) Weak() host.WeakSource {
	if s.removed.Load() || s.failWeak.Load() {
		return nil
	}
	return &weakSource{src: s}
}

// Release drops one strong reference.
func (s *Source) Release() {
	s.refs.Add(-1)
}

// Refs returns the number of unreleased strong references handed out.
func (s *Source) Refs() int64 { return s.refs.Load() }

// AddAudioCaptureCallback registers cb for audio emitted by the source.
func (s *Source) AddAudioCaptureCallback(cb host.AudioCaptureCallback) host.CallbackID {
	id := s.engine.id()
	s.mu.Lock()
	s.capture[id] = cb
	s.mu.Unlock()
	return id
}

// RemoveAudioCaptureCallback unregisters the callback with the given id.
func (s *Source) RemoveAudioCaptureCallback(id host.CallbackID) {
	s.mu.Lock()
	delete(s.capture, id)
	s.mu.Unlock()
}

// CaptureCallbacks returns the number of registered capture callbacks.
func (s *Source) CaptureCallbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.capture)
}

// EmitAudio delivers data to every capture callback.
func (s *Source) EmitAudio(data *host.AudioData, muted bool) {
	s.mu.Lock()
	cbs := make([]host.AudioCaptureCallback, 0, len(s.capture))
	for _, cb := range s.capture {
		cbs = append(cbs, cb)
	}
	s.mu.Unlock()

	for _, cb := range cbs {
		cb(s, data, muted)
	}
}

// IncShowing marks the source as shown by one more consumer.
func (s *Source) IncShowing() { s.showing.Add(1) }

// DecShowing releases one showing reference.
func (s *Source) DecShowing() { s.showing.Add(-1) }

// Showing returns the showing reference count.
func (s *Source) Showing() int64 { return s.showing.Load() }

type weakSource struct {
	src      *Source
	released atomic.Bool
}

// Get upgrades to a strong reference while the source still exists.
func (w *weakSource) Get() (host.Source, bool) {
	if w.released.Load() || w.src.removed.Load() {
		return nil, false
	}
	w.src.refs.Add(1)
	return w.src, true
}

// Release drops the weak reference.
func (w *weakSource) Release() {
	w.released.Store(true)
}
