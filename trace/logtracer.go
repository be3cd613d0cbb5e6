package trace

import (
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/eepromblk/tracing"
)

// LogTracer writes one log entry for every finished access. Failed accesses
// are logged at warning level, others at debug level.
type LogTracer struct {
	tracker

	logger logrus.FieldLogger
}

// NewLogTracer creates a LogTracer that writes to logger.
func NewLogTracer(
	logger logrus.FieldLogger,
	timeTeller tracing.TimeTeller,
) *LogTracer {
	return &LogTracer{
		tracker: newTracker(timeTeller),
		logger:  logger,
	}
}

// StartTask records the start time of the access.
func (t *LogTracer) StartTask(task tracing.Task) {
	t.start(task)
}

// StepTask counts the chunk transferred.
func (t *LogTracer) StepTask(task tracing.Task) {
	t.step(task)
}

// EndTask logs the access.
func (t *LogTracer) EndTask(task tracing.Task) {
	a, ok := t.end(task)
	if !ok {
		return
	}

	entry := t.logger.WithFields(logrus.Fields{
		"device":   a.Device,
		"op":       a.Op,
		"block":    a.Detail.Block,
		"offset":   a.Detail.Offset,
		"address":  a.Detail.Address,
		"length":   a.Detail.Length,
		"chunks":   len(a.Chunks),
		"outcome":  a.Outcome,
		"duration": a.Duration(),
	})

	if a.Err != nil {
		entry.WithError(a.Err).Warn("eeprom access failed")
		return
	}

	entry.Debug("eeprom access")
}
