package trace

import (
	"sort"
	"time"

	"github.com/sarchlab/eepromblk/blockdev"
	"github.com/sarchlab/eepromblk/tracing"
)

// OpStats summarizes the accesses of one operation.
type OpStats struct {
	Op             string        `json:"op"`
	Count          uint64        `json:"count"`
	Bytes          uint64        `json:"bytes"`
	Chunks         uint64        `json:"chunks"`
	Failures       uint64        `json:"failures"`
	Vetoes         uint64        `json:"vetoes"`
	AverageLatency time.Duration `json:"average_latency_ns"`
}

// StatsTracer counts the accesses of a device per operation. If accesses
// overlap, their latencies are averaged independently.
type StatsTracer struct {
	tracker

	stats map[string]*OpStats
}

// NewStatsTracer creates a new StatsTracer. A nil timeTeller uses the wall
// clock.
func NewStatsTracer(timeTeller tracing.TimeTeller) *StatsTracer {
	return &StatsTracer{
		tracker: newTracker(timeTeller),
		stats:   make(map[string]*OpStats),
	}
}

// StartTask records the start time of the access.
func (t *StatsTracer) StartTask(task tracing.Task) {
	t.start(task)
}

// StepTask counts the chunk transferred.
func (t *StatsTracer) StepTask(task tracing.Task) {
	t.step(task)
}

// EndTask adds the access to the statistics.
func (t *StatsTracer) EndTask(task tracing.Task) {
	a, ok := t.end(task)
	if !ok {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	s, ok := t.stats[a.Op]
	if !ok {
		s = &OpStats{Op: a.Op}
		t.stats[a.Op] = s
	}

	s.AverageLatency = time.Duration(
		(float64(s.AverageLatency)*float64(s.Count) + float64(a.Duration())) /
			float64(s.Count+1))
	s.Count++
	s.Chunks += uint64(len(a.Chunks))

	switch {
	case a.Failed():
		s.Failures++
	case a.Outcome == blockdev.OutcomeVetoed:
		s.Vetoes++
	case a.Outcome == blockdev.OutcomeOK:
		s.Bytes += a.Detail.Length
	}
}

// Snapshot returns a copy of the statistics, sorted by operation name.
func (t *StatsTracer) Snapshot() []OpStats {
	t.lock.Lock()
	defer t.lock.Unlock()

	snapshot := make([]OpStats, 0, len(t.stats))
	for _, s := range t.stats {
		snapshot = append(snapshot, *s)
	}

	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Op < snapshot[j].Op
	})

	return snapshot
}

// Stats returns the statistics of one operation.
func (t *StatsTracer) Stats(op blockdev.Op) OpStats {
	t.lock.Lock()
	defer t.lock.Unlock()

	s, ok := t.stats[op.String()]
	if !ok {
		return OpStats{Op: op.String()}
	}

	return *s
}
