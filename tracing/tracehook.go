package tracing

import (
	"github.com/sarchlab/eepromblk/hooking"
)

// CollectTrace makes tracer receive the tasks of source. Attaching the same
// tracer twice panics.
func CollectTrace(source hooking.Source, tracer Tracer) {
	source.AddHook(tracerHook{tracer: tracer})
}

// tracerHook forwards task events to a tracer. It is comparable, so a tracer
// attached twice is caught by the source.
type tracerHook struct {
	tracer Tracer
}

func (h tracerHook) OnEvent(e hooking.Event) {
	task, ok := e.Item.(Task)
	if !ok {
		return
	}

	switch e.Pos {
	case PosTaskStart:
		h.tracer.StartTask(task)
	case PosTaskStep:
		h.tracer.StepTask(task)
	case PosTaskEnd:
		h.tracer.EndTask(task)
	}
}
