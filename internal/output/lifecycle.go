package output

import (
	"github.com/smazurov/branchout/internal/host"
	"github.com/smazurov/branchout/internal/settings"
)

// Tick advances the state machine. It is called once per video frame and
// returns quickly when nothing changes.
func (f *Filter) Tick() {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Block output initiation until the filter is active.
	if f.destroyed || !f.filterActive {
		return
	}

	enabled := f.ctx.Enabled()

	if !f.router.Active() {
		if enabled {
			f.restartLocked()
		}
		return
	}

	if !enabled {
		f.logger.Info("Source hidden, stopping stream output")
		f.stopLocked("source disabled")
		return
	}

	streamActive := f.sess.output.Active()

	if !f.connectTimedOut() {
		if streamActive {
			f.setState(StateActive, "output connected")
		} else if f.state == StateActive {
			f.setState(StateConnecting, "output reconnecting")
		}
		return
	}

	if !streamActive {
		f.logger.Info("Attempting reactivate the stream output")
		f.setState(StateRetryPending, "connect attempt timed out")
		f.startLocked()
		return
	}

	if f.activeRev < f.storedRev {
		f.logger.Info("Settings change detected, Attempting restart")
		f.setState(StateRestartPending, "settings changed")
		f.restartLocked()
		return
	}

	f.setState(StateActive, "output connected")

	parent, ok := f.ctx.Parent()
	if !ok {
		f.stopLocked("source removed")
		return
	}
	width, height := evenCeil(parent.Width()), evenCeil(parent.Height())

	if width == 0 || height == 0 || !f.availability.Available(parent) {
		f.logger.Info("Source unavailable, stopping stream output", "width", width, "height", height)
		f.stopLocked("source unavailable")
		return
	}

	if width != f.width || height != f.height {
		f.logger.Info("Attempting restart the stream output", "width", width, "height", height)
		f.setState(StateRestartPending, "resolution changed")
		f.startLocked()
	}
}

// restartLocked stops an active session and starts a new one when a server
// is configured.
func (f *Filter) restartLocked() {
	if f.router.Active() {
		f.stopLocked("restart")
	}
	if s := f.ctx.Settings(); s.String(settings.KeyServer) != "" {
		f.startLocked()
		return
	}
	f.setState(StateIdle, "no server configured")
}

// startLocked runs the start sequence and records the outcome.
func (f *Filter) startLocked() {
	err := f.start(f.ctx.Settings())
	f.lastErr = err
	if err == nil {
		f.setState(StateConnecting, "output started")
		return
	}

	if IsConfigError(err) {
		f.logger.Debug("Stream output not started", "error", err)
	} else {
		f.logger.Error("Stream output start failed", "error", err)
	}
	f.setState(StateIdle, "start failed")
}

// stopLocked tears down the session and returns to Idle.
func (f *Filter) stopLocked(reason string) {
	f.teardown()
	f.setState(StateIdle, reason)
}

func (f *Filter) connectTimedOut() bool {
	return !f.connectAt.IsZero() && f.now().Sub(f.connectAt) > host.ConnectAttemptingTimeout
}

// evenCeil rounds v up to a multiple of two.
func evenCeil(v uint32) uint32 {
	return v + v&1
}
