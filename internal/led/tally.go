package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/branchout/internal/events"
	"github.com/smazurov/branchout/internal/output"
)

// Tally lights the LED solid while any output is active and blinks it while
// one is connecting or restarting. It is off otherwise.
type Tally struct {
	controller  Controller
	eventBus    *events.Bus
	unsubscribe func()
	logger      *slog.Logger

	mu      sync.Mutex
	states  map[string]output.State // filter -> state
	pattern string
}

// NewTally creates a tally driven by output state events on eventBus.
func NewTally(controller Controller, eventBus *events.Bus, logger *slog.Logger) *Tally {
	return &Tally{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
		states:     make(map[string]output.State),
	}
}

// Start switches the LED off and begins following state changes.
func (t *Tally) Start() {
	t.apply(PatternOff)
	t.unsubscribe = t.eventBus.Subscribe(t.handleEvent)
	t.logger.Info("Tally started", "led", t.controller.Name())
}

// Stop unsubscribes and switches the LED off.
func (t *Tally) Stop() {
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
	t.apply(PatternOff)
	t.logger.Info("Tally stopped")
}

func (t *Tally) handleEvent(e events.OutputStateChangedEvent) {
	t.mu.Lock()
	t.states[e.Filter] = output.State(e.To)
	pattern := t.patternLocked()
	t.mu.Unlock()

	t.apply(pattern)
}

func (t *Tally) patternLocked() string {
	pattern := PatternOff
	for _, s := range t.states {
		switch s {
		case output.StateActive:
			return PatternSolid
		case output.StateConnecting, output.StateRetryPending, output.StateRestartPending:
			pattern = PatternBlink
		}
	}
	return pattern
}

func (t *Tally) apply(pattern string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pattern == t.pattern {
		return
	}
	if err := t.controller.Set(pattern); err != nil {
		t.logger.Warn("Failed to set tally LED", "pattern", pattern, "error", err)
		return
	}
	t.logger.Debug("Tally LED changed", "from", t.pattern, "to", pattern)
	t.pattern = pattern
}
