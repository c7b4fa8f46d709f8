package led

import "log/slog"

// noop stands in on hosts without a usable LED.
type noop struct {
	logger *slog.Logger
}

func newNoop(logger *slog.Logger) *noop {
	return &noop{logger: logger}
}

// Set logs the pattern at debug level.
func (n *noop) Set(pattern string) error {
	n.logger.Debug("Tally LED not available", "pattern", pattern)
	return nil
}

func (n *noop) Name() string {
	return ""
}
