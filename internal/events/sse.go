package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards events of type T into ch for select-loop
// consumers such as SSE handlers. Publishing never waits on a slow
// consumer: when ch is full the event is discarded and counted in
// Bus.Dropped. The returned func unsubscribes.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	forward := func(e T) {
		select {
		case ch <- e:
		default:
			bus.dropped.Add(1)
		}
	}
	return event.Subscribe(bus.dispatcher, forward)
}
