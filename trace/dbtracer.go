package trace

import (
	"time"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/eepromblk/datarecording"
	"github.com/sarchlab/eepromblk/tracing"
)

// Tables written by a DBTracer.
const (
	AccessTable = "eeprom_accesses"
	ChunkTable  = "eeprom_chunks"
)

// AccessEntry is a row of the access table.
type AccessEntry struct {
	ID        string
	Device    string
	Op        string
	Block     uint64
	Offset    uint64
	Address   uint64
	Length    uint64
	Chunks    int
	Outcome   string
	Error     string
	StartTime float64
	EndTime   float64
}

// ChunkEntry is a row of the chunk table. Each row is one page-bounded
// transfer of an access.
type ChunkEntry struct {
	ID      string
	TaskID  string
	Index   int
	Address uint64
	Length  uint64
	Page    uint64
}

// DBTracer stores the accesses of a device into a data recorder.
type DBTracer struct {
	tracker

	recorder datarecording.DataRecorder
	err      error
}

// NewDBTracer creates a DBTracer and the tables it writes to, keeping the rows
// already in them. The recorder is flushed when the program exits.
func NewDBTracer(
	timeTeller tracing.TimeTeller,
	recorder datarecording.DataRecorder,
) (*DBTracer, error) {
	err := recorder.CreateTable(AccessTable, AccessEntry{})
	if err != nil {
		return nil, err
	}

	err = recorder.CreateTable(ChunkTable, ChunkEntry{})
	if err != nil {
		return nil, err
	}

	t := &DBTracer{
		tracker:  newTracker(timeTeller),
		recorder: recorder,
	}

	atexit.Register(func() {
		_ = t.Terminate()
	})

	return t, nil
}

// StartTask records the start time of the access.
func (t *DBTracer) StartTask(task tracing.Task) {
	t.start(task)
}

// StepTask records the chunk transferred.
func (t *DBTracer) StepTask(task tracing.Task) {
	t.step(task)
}

// EndTask writes the access and its chunks.
func (t *DBTracer) EndTask(task tracing.Task) {
	a, ok := t.end(task)
	if !ok {
		return
	}

	entry := AccessEntry{
		ID:        a.ID,
		Device:    a.Device,
		Op:        a.Op,
		Block:     a.Detail.Block,
		Offset:    a.Detail.Offset,
		Address:   a.Detail.Address,
		Length:    a.Detail.Length,
		Chunks:    len(a.Chunks),
		Outcome:   a.Outcome,
		StartTime: unixSeconds(a.StartTime),
		EndTime:   unixSeconds(a.EndTime),
	}
	if a.Err != nil {
		entry.Error = a.Err.Error()
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.keep(t.recorder.InsertData(AccessTable, entry))

	for i, c := range a.Chunks {
		t.keep(t.recorder.InsertData(ChunkTable, ChunkEntry{
			ID:      xid.New().String(),
			TaskID:  a.ID,
			Index:   i,
			Address: c.Address,
			Length:  c.Length,
			Page:    c.Page,
		}))
	}
}

// keep remembers the first error, as tracers cannot report them.
func (t *DBTracer) keep(err error) {
	if t.err == nil {
		t.err = err
	}
}

// Terminate writes all the buffered rows. It returns the first error met
// while recording.
func (t *DBTracer) Terminate() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.keep(t.recorder.Flush())

	return t.err
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
