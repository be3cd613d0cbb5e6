// Package tracing turns the accesses of a device into tasks and delivers
// them to tracers through hooks.
package tracing

import (
	"github.com/sarchlab/eepromblk/hooking"
)

// Positions at which task events are emitted.
var (
	PosTaskStart = &hooking.Pos{Name: "TaskStart"}
	PosTaskStep  = &hooking.Pos{Name: "TaskStep"}
	PosTaskEnd   = &hooking.Pos{Name: "TaskEnd"}
)

// A Span follows one task of a source from start to end. The zero Span is
// inert: Step and End do nothing.
type Span struct {
	source hooking.Source
	id     string
}

// Begin emits the start of a task and returns the span that ends it. When
// nothing observes the source, no task is built and the returned span is
// inert.
func Begin(source hooking.Source, kind, what string, detail any) Span {
	if !source.HasHooks() {
		return Span{}
	}

	if kind == "" || what == "" {
		panic("a task needs a kind and a what")
	}

	s := Span{source: source, id: NewTaskID()}
	source.Emit(PosTaskStart, Task{
		ID:     s.id,
		Kind:   kind,
		What:   what,
		Where:  source.Name(),
		Detail: detail,
	})

	return s
}

// ID returns the task ID, or an empty string for an inert span.
func (s Span) ID() string {
	return s.id
}

// Step emits a milestone of the task.
func (s Span) Step(what string, detail any) {
	if s.source == nil {
		return
	}

	s.source.Emit(PosTaskStep, Task{
		ID:    s.id,
		Steps: []TaskStep{{What: what, Detail: detail}},
	})
}

// End emits how the task ended. err is nil unless the outcome is a failure.
func (s Span) End(outcome string, err error) {
	if s.source == nil {
		return
	}

	s.source.Emit(PosTaskEnd, Task{
		ID:      s.id,
		Outcome: outcome,
		Err:     err,
	})
}
