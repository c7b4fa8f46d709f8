package hostsim

import (
	"sync"
	"sync/atomic"

	"github.com/smazurov/branchout/internal/host"
	"github.com/smazurov/branchout/internal/settings"
)

// FilterContext is a simulated filter instance attached to a parent source.
type FilterContext struct {
	name    string
	enabled atomic.Bool

	mu       sync.Mutex
	parent   *Source
	settings settings.Data
}

// NewFilterContext creates an enabled filter on parent with settings s.
func NewFilterContext(name string, parent *Source, s settings.Data) *FilterContext {
	if s == nil {
		s = settings.New()
	}
	fc := &FilterContext{name: name, parent: parent, settings: s}
	fc.enabled.Store(true)
	return fc
}

// Name returns the filter name.
func (fc *FilterContext) Name() string { return fc.name }

// Enabled reports whether the filter is shown.
func (fc *FilterContext) Enabled() bool { return fc.enabled.Load() }

// SetEnabled toggles the filter.
func (fc *FilterContext) SetEnabled(enabled bool) { fc.enabled.Store(enabled) }

// Parent returns a strong reference to the filtered source.
func (fc *FilterContext) Parent() (host.Source, bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.parent == nil {
		return nil, false
	}
	return fc.parent, true
}

// SetParent reattaches the filter. nil detaches it.
func (fc *FilterContext) SetParent(parent *Source) {
	fc.mu.Lock()
	fc.parent = parent
	fc.mu.Unlock()
}

// Settings returns the live settings object.
func (fc *FilterContext) Settings() settings.Data {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.settings
}

// SetSettings replaces the filter settings.
func (fc *FilterContext) SetSettings(s settings.Data) {
	fc.mu.Lock()
	fc.settings = s
	fc.mu.Unlock()
}
