package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Callbacks counts QuickPay callback outcomes.
type Callbacks struct {
	Received  Counter
	Duplicate Counter
	InFlight  Counter
	Rejected  Counter
	Processed Counter
	Failed    Counter

	// cumulative dispatch time in microseconds
	dispatchMicros Counter
}

func (c *Callbacks) ObserveDispatch(t *Timer) {
	c.dispatchMicros.Add(uint64(t.Duration().Microseconds()))
}

func (c *Callbacks) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"callbacks_received":        c.Received.Load(),
		"callbacks_duplicate":       c.Duplicate.Load(),
		"callbacks_in_flight":       c.InFlight.Load(),
		"callbacks_rejected":        c.Rejected.Load(),
		"callbacks_processed":       c.Processed.Load(),
		"callbacks_failed":          c.Failed.Load(),
		"callbacks_dispatch_micros": c.dispatchMicros.Load(),
	}
}

type Snapshotter interface {
	Snapshot() map[string]uint64
}

// Handler serves the merged snapshots as a JSON object.
func Handler(sources ...Snapshotter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := map[string]uint64{}
		for _, s := range sources {
			for k, v := range s.Snapshot() {
				out[k] = v
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}
