// Package trace provides tracers that record the accesses of block devices.
package trace

import (
	"sync"
	"time"

	"github.com/sarchlab/eepromblk/blockdev"
	"github.com/sarchlab/eepromblk/paging"
	"github.com/sarchlab/eepromblk/tracing"
)

// An Access is one finished block device operation.
type Access struct {
	ID        string
	Device    string
	Op        string
	Detail    blockdev.AccessDetail
	Chunks    []paging.Chunk
	StartTime time.Time
	EndTime   time.Time
	Outcome   string
	Err       error
}

// Duration returns how long the access took.
func (a *Access) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

// Failed tells if the access ended with an error.
func (a *Access) Failed() bool {
	return a.Outcome == blockdev.OutcomeRangeError ||
		a.Outcome == blockdev.OutcomeTransportError
}

// tracker pairs the start, steps, and end of block device tasks. Tasks of
// other kinds are ignored.
type tracker struct {
	timeTeller tracing.TimeTeller

	lock     sync.Mutex
	inflight map[string]*Access
}

func newTracker(timeTeller tracing.TimeTeller) tracker {
	if timeTeller == nil {
		timeTeller = tracing.WallClock{}
	}

	return tracker{
		timeTeller: timeTeller,
		inflight:   make(map[string]*Access),
	}
}

func (t *tracker) start(task tracing.Task) {
	if task.Kind != blockdev.TaskKind {
		return
	}

	detail, _ := task.Detail.(blockdev.AccessDetail)
	a := &Access{
		ID:        task.ID,
		Device:    task.Where,
		Op:        task.What,
		Detail:    detail,
		StartTime: t.timeTeller.CurrentTime(),
	}

	t.lock.Lock()
	t.inflight[task.ID] = a
	t.lock.Unlock()
}

func (t *tracker) step(task tracing.Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	a, ok := t.inflight[task.ID]
	if !ok {
		return
	}

	for _, s := range task.Steps {
		chunk, ok := s.Detail.(paging.Chunk)
		if ok {
			a.Chunks = append(a.Chunks, chunk)
		}
	}
}

func (t *tracker) end(task tracing.Task) (*Access, bool) {
	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	a, ok := t.inflight[task.ID]
	delete(t.inflight, task.ID)
	t.lock.Unlock()

	if !ok {
		return nil, false
	}

	a.EndTime = now
	a.Outcome = task.Outcome
	a.Err = task.Err

	return a, true
}

// InFlight returns the number of accesses that started but have not ended.
func (t *tracker) InFlight() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.inflight)
}
