package rollgate

import (
	"testing"
	"time"
)

func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestDispatcherDeliversInEmissionOrder(t *testing.T) {
	var d dispatcher
	got := make(chan Event, 256)
	d.subscribe(func(ev Event) { got <- ev })
	defer d.stop()

	// Each sync emits a snapshot event followed by its per-flag changes;
	// observers must never see them inverted.
	for i := 0; i < 50; i++ {
		on := i%2 == 0
		d.emit(FlagsUpdatedEvent{Flags: map[string]bool{"a": on}})
		d.emit(FlagChangedEvent{Key: "a", OldValue: !on, NewValue: on})
	}

	for i := 0; i < 50; i++ {
		if ev := nextEvent(t, got); ev != nil {
			if _, ok := ev.(FlagsUpdatedEvent); !ok {
				t.Fatalf("event %d = %T, want FlagsUpdatedEvent", 2*i, ev)
			}
		}
		if ev := nextEvent(t, got); ev != nil {
			if _, ok := ev.(FlagChangedEvent); !ok {
				t.Fatalf("event %d = %T, want FlagChangedEvent", 2*i+1, ev)
			}
		}
	}
}

func TestDispatcherDropsAfterStop(t *testing.T) {
	var d dispatcher
	got := make(chan Event, 8)
	d.subscribe(func(ev Event) { got <- ev })

	d.emit(ReadyEvent{})
	nextEvent(t, got)

	d.stop()
	d.emit(ErrorEvent{})
	select {
	case ev := <-got:
		t.Fatalf("event after stop: %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatcherNoObserversIsNoop(t *testing.T) {
	var d dispatcher
	d.emit(ReadyEvent{}) // must not block or panic
	d.stop()
}
