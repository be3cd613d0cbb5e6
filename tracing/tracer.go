package tracing

import (
	"time"

	"github.com/rs/xid"
)

// A Tracer can collect task traces
type Tracer interface {
	StartTask(task Task)
	StepTask(task Task)
	EndTask(task Task)
}

// A TimeTeller tells the current time.
type TimeTeller interface {
	CurrentTime() time.Time
}

// WallClock tells the time of the host.
type WallClock struct{}

// CurrentTime returns time.Now.
func (WallClock) CurrentTime() time.Time {
	return time.Now()
}

// NewTaskID generates a globally unique task ID.
func NewTaskID() string {
	return xid.New().String()
}
