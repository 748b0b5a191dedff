// Package cpu attributes processing time to the feature and event kind that
// spent it, so that a misbehaving feature can be identified from diagnostics
// rather than from guesswork.
package cpu

import (
	"sort"
	"sync"
	"time"

	"github.com/brentp/intintmap"
	"github.com/segmentio/fasthash/fnv1a"
)

// Tracker accumulates nanoseconds per (feature, event) pair. Add sits on the
// hot path of every dispatched event and packet, so totals are kept in a
// primitive int64 map keyed by a hash of the pair rather than a string-keyed
// map.
type Tracker struct {
	mu     sync.Mutex
	nanos  *intintmap.Map
	labels map[int64]label
}

type label struct {
	feature, event string
}

// Usage is one (feature, event) entry of a Tracker snapshot.
type Usage struct {
	Feature string
	Event   string
	Total   time.Duration
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		nanos:  intintmap.New(256, 0.6),
		labels: make(map[int64]label),
	}
}

// Add attributes d to the pair passed. A nil tracker discards the sample.
func (t *Tracker) Add(feature, event string, d time.Duration) {
	if t == nil || d < 0 {
		return
	}
	h := hashPair(feature, event)
	t.mu.Lock()
	if _, ok := t.labels[h]; !ok {
		t.labels[h] = label{feature: feature, event: event}
	}
	prev, _ := t.nanos.Get(h)
	t.nanos.Put(h, prev+int64(d))
	t.mu.Unlock()
}

// Measure runs fn and attributes its wall time to the pair passed.
func (t *Tracker) Measure(feature, event string, fn func()) {
	start := time.Now()
	fn()
	t.Add(feature, event, time.Since(start))
}

// Total returns the accumulated time for a single pair.
func (t *Tracker) Total(feature, event string) time.Duration {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n, _ := t.nanos.Get(hashPair(feature, event))
	return time.Duration(n)
}

// Snapshot returns all recorded pairs, largest total first. Pairs with equal
// totals are ordered by feature, then event name.
func (t *Tracker) Snapshot() []Usage {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	out := make([]Usage, 0, len(t.labels))
	for h, l := range t.labels {
		n, _ := t.nanos.Get(h)
		out = append(out, Usage{Feature: l.feature, Event: l.event, Total: time.Duration(n)})
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		if out[i].Feature != out[j].Feature {
			return out[i].Feature < out[j].Feature
		}
		return out[i].Event < out[j].Event
	})
	return out
}

// Reset discards all recorded totals.
func (t *Tracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.nanos = intintmap.New(256, 0.6)
	t.labels = make(map[int64]label)
	t.mu.Unlock()
}

func hashPair(feature, event string) int64 {
	h := fnv1a.AddString64(fnv1a.Init64, feature)
	h = fnv1a.AddString64(h, ".")
	h = fnv1a.AddString64(h, event)
	return int64(h)
}
