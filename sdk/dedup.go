package rollgate

import (
	"golang.org/x/sync/singleflight"
)

// RequestDeduplicator collapses concurrent identical requests into one
// in-flight call whose result is shared by every waiter.
type RequestDeduplicator struct {
	group singleflight.Group
}

// NewRequestDeduplicator creates an empty deduplicator.
func NewRequestDeduplicator() *RequestDeduplicator {
	return &RequestDeduplicator{}
}

// Dedupe runs fn for the given key unless an identical call is already in
// flight, in which case it waits for and returns that call's result. The
// second return value reports whether the result was shared.
func (d *RequestDeduplicator) Dedupe(key string, fn func() (any, error)) (any, bool, error) {
	v, err, shared := d.group.Do(key, fn)
	return v, shared, err
}

// Forget drops the in-flight entry for key so the next Dedupe call runs
// fn again instead of joining a stale call.
func (d *RequestDeduplicator) Forget(key string) {
	d.group.Forget(key)
}
