package obs

import (
	"sync/atomic"
	"time"
)

// TraceGenerator stamps journal frames with process-unique trace IDs. The
// counter is seeded off the start time and never persisted, so frames
// written across restarts stay distinguishable.
type TraceGenerator struct {
	next atomic.Uint64
}

// NewTraceGenerator returns a generator. A zero seed falls back to the
// current time.
func NewTraceGenerator(seed uint64) *TraceGenerator {
	if seed == 0 {
		seed = uint64(time.Now().UTC().UnixNano())
	}
	g := &TraceGenerator{}
	g.next.Store(seed)
	return g
}

// Next returns the next trace ID.
func (g *TraceGenerator) Next() uint64 {
	if g == nil {
		return 0
	}
	return g.next.Add(1)
}
