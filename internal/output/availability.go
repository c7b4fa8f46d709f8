package output

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/smazurov/branchout/internal/host"
)

// availability rate-limits scene lookups per source. Inside the interval
// after a lookup the source is assumed available. Entries hold the lifecycle
// time of the last lookup, so the interval follows the filter clock.
type availability struct {
	engine   host.Engine
	checked  *cache.Cache
	interval time.Duration
	now      func() time.Time
}

func newAvailability(engine host.Engine, interval time.Duration, now func() time.Time) *availability {
	return &availability{
		engine:   engine,
		checked:  cache.New(cache.NoExpiration, 0),
		interval: interval,
		now:      now,
	}
}

// Available reports whether src is a scene or is placed in one.
func (a *availability) Available(src host.Source) bool {
	now := a.now()
	if v, ok := a.checked.Get(src.UUID()); ok {
		if last, isTime := v.(time.Time); isTime && now.Sub(last) < a.interval {
			return true
		}
	}
	a.checked.Set(src.UUID(), now, cache.NoExpiration)
	return a.engine.SourceInScenes(src)
}
