package tracing

import (
	"container/list"
	"sort"
	"sync"
	"time"
)

type taskInterval struct {
	start, end time.Time
	completed  bool
}

// BusyTimeTracer measures how long a domain has been serving tasks. Time
// during which several tasks overlap is counted once.
type BusyTimeTracer struct {
	timeTeller TimeTeller
	filter     TaskFilter

	lock      sync.Mutex
	inflight  map[string]*list.Element
	intervals *list.List
	busyTime  time.Duration
}

// NewBusyTimeTracer creates a new BusyTimeTracer. A nil filter accepts all
// tasks.
func NewBusyTimeTracer(
	timeTeller TimeTeller,
	filter TaskFilter,
) *BusyTimeTracer {
	return &BusyTimeTracer{
		timeTeller: timeTeller,
		filter:     filter,
		inflight:   make(map[string]*list.Element),
		intervals:  list.New(),
	}
}

// BusyTime returns the time spent on tasks that have been settled. Time of
// tasks that overlap with an unfinished task is added once that task ends.
func (t *BusyTimeTracer) BusyTime() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.busyTime
}

// TerminateAllTasks ends all unfinished tasks at now.
func (t *BusyTimeTracer) TerminateAllTasks(now time.Time) {
	t.lock.Lock()
	defer t.lock.Unlock()

	for e := t.intervals.Front(); e != nil; e = e.Next() {
		interval := e.Value.(*taskInterval)
		if !interval.completed {
			interval.completed = true
			interval.end = now
		}
	}

	t.inflight = make(map[string]*list.Element)
	t.collapse(now)
}

// StartTask records the task start time
func (t *BusyTimeTracer) StartTask(task Task) {
	now := t.timeTeller.CurrentTime()

	if t.filter != nil && !t.filter(task) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	elem := t.intervals.PushBack(&taskInterval{start: now})
	t.inflight[task.ID] = elem
}

// StepTask does nothing
func (t *BusyTimeTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask records the end of the task
func (t *BusyTimeTracer) EndTask(task Task) {
	now := t.timeTeller.CurrentTime()

	t.lock.Lock()
	defer t.lock.Unlock()

	elem, ok := t.inflight[task.ID]
	if !ok {
		return
	}

	interval := elem.Value.(*taskInterval)
	interval.end = now
	interval.completed = true
	delete(t.inflight, task.ID)

	t.collapse(now)
}

// collapse settles the completed intervals once no unfinished task started
// before now.
func (t *BusyTimeTracer) collapse(now time.Time) {
	for e := t.intervals.Front(); e != nil; e = e.Next() {
		interval := e.Value.(*taskInterval)
		if !interval.completed && interval.start.Before(now) {
			return
		}
	}

	var settled []*taskInterval

	var next *list.Element
	for e := t.intervals.Front(); e != nil; e = next {
		next = e.Next()

		interval := e.Value.(*taskInterval)
		if !interval.completed {
			break
		}

		if !interval.end.After(now) {
			settled = append(settled, interval)
			t.intervals.Remove(e)
		}
	}

	t.busyTime += mergedDuration(settled)
}

// mergedDuration returns the length of the union of the intervals.
func mergedDuration(intervals []*taskInterval) time.Duration {
	if len(intervals) == 0 {
		return 0
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].start.Before(intervals[j].start)
	})

	var total time.Duration

	start, end := intervals[0].start, intervals[0].end
	for _, interval := range intervals[1:] {
		if interval.start.After(end) {
			total += end.Sub(start)
			start, end = interval.start, interval.end

			continue
		}

		if interval.end.After(end) {
			end = interval.end
		}
	}

	return total + end.Sub(start)
}
