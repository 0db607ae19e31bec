package rollgate

import "sync"

// Event is a notification emitted by the client. The set of variants is
// closed: ReadyEvent, FlagsUpdatedEvent, FlagChangedEvent, ErrorEvent and
// CircuitStateChangedEvent. Observers type-switch on the variant.
type Event interface {
	event()
}

// ReadyEvent fires once when the client finishes initialization.
type ReadyEvent struct{}

// FlagsUpdatedEvent fires after every successful sync that produced data,
// carrying the full flag snapshot.
type FlagsUpdatedEvent struct {
	Flags map[string]bool
}

// FlagChangedEvent fires for each individual flag whose value actually
// changed between two snapshots.
type FlagChangedEvent struct {
	Key      string
	OldValue bool
	NewValue bool
}

// ErrorEvent fires when a background sync fails.
type ErrorEvent struct {
	Err error
}

// CircuitStateChangedEvent fires on every circuit breaker transition.
type CircuitStateChangedEvent struct {
	From CircuitState
	To   CircuitState
}

func (ReadyEvent) event()               {}
func (FlagsUpdatedEvent) event()        {}
func (FlagChangedEvent) event()         {}
func (ErrorEvent) event()               {}
func (CircuitStateChangedEvent) event() {}

// Observer receives client events. Observers must not block; slow handling
// delays delivery to later observers.
type Observer func(Event)

type dispatcher struct {
	mu        sync.RWMutex
	observers []Observer
	queue     chan Event
	done      chan struct{}
	stopped   bool
}

func (d *dispatcher) subscribe(fn Observer) {
	d.mu.Lock()
	if d.queue == nil && !d.stopped {
		d.queue = make(chan Event, 64)
		d.done = make(chan struct{})
		go d.run()
	}
	d.observers = append(d.observers, fn)
	d.mu.Unlock()
}

// emit queues ev for delivery off the caller's goroutine. A single
// dispatch goroutine drains the queue, so observers see events in the
// order they were emitted.
func (d *dispatcher) emit(ev Event) {
	d.mu.RLock()
	queue, done := d.queue, d.done
	active := len(d.observers) > 0 && !d.stopped
	d.mu.RUnlock()
	if !active {
		return
	}
	select {
	case queue <- ev:
	case <-done:
	}
}

func (d *dispatcher) run() {
	for {
		select {
		case ev := <-d.queue:
			d.mu.RLock()
			observers := make([]Observer, len(d.observers))
			copy(observers, d.observers)
			d.mu.RUnlock()
			for _, fn := range observers {
				fn(ev)
			}
		case <-d.done:
			return
		}
	}
}

// stop shuts the dispatch goroutine down. Later emits are dropped.
func (d *dispatcher) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.done != nil {
		close(d.done)
	}
}
