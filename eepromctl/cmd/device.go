package cmd

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/eepromblk/blockdev"
	"github.com/sarchlab/eepromblk/datarecording"
	"github.com/sarchlab/eepromblk/eeprom"
	"github.com/sarchlab/eepromblk/trace"
	"github.com/sarchlab/eepromblk/tracing"
	"github.com/sarchlab/eepromblk/transport/i2ceeprom"
	"github.com/sarchlab/eepromblk/transport/imagefile"
)

// session is an open block device together with its tracers.
type session struct {
	chip     eeprom.Chip
	geometry eeprom.Geometry
	device   *blockdev.Device
	stats    *trace.StatsTracer
	busy     *tracing.BusyTimeTracer

	closers []func() error
}

// openDevice builds a block device over the configured image file or bus.
func (a *app) openDevice() (*session, error) {
	chip, geometry, err := a.cfg.Resolve()
	if err != nil {
		return nil, err
	}

	s := &session{chip: chip, geometry: geometry}

	transport, err := s.openTransport(a)
	if err != nil {
		s.close()
		return nil, err
	}

	s.device = blockdev.MakeBuilder().
		WithGeometry(geometry).
		WithTransport(transport).
		Build(chip.Model)

	s.stats = trace.NewStatsTracer(nil)
	tracing.CollectTrace(s.device, s.stats)

	s.busy = tracing.NewBusyTimeTracer(tracing.WallClock{},
		func(t tracing.Task) bool { return t.Kind == blockdev.TaskKind })
	tracing.CollectTrace(s.device, s.busy)
	tracing.CollectTrace(s.device, trace.NewLogTracer(a.logger, nil))

	if a.cfg.TraceDB != "" {
		err = s.recordInto(a.cfg.TraceDB)
		if err != nil {
			s.close()
			return nil, err
		}
	}

	a.logger.WithFields(logrus.Fields{
		"chip":        chip.Model,
		"page_size":   geometry.PageSize,
		"block_size":  geometry.BlockSize,
		"block_count": geometry.BlockCount,
	}).Debug("device opened")

	return s, nil
}

// recordInto appends the accesses of the session to the trace database at
// path.
func (s *session) recordInto(path string) error {
	recorder, err := datarecording.Open(path)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, recorder.Close)

	tracer, err := trace.NewDBTracer(nil, recorder)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, tracer.Terminate)

	tracing.CollectTrace(s.device, tracer)

	return nil
}

func (s *session) openTransport(a *app) (blockdev.Transport, error) {
	switch {
	case a.cfg.Image != "" && a.cfg.Bus != "":
		return nil, errors.New("only one of image and bus can be set")
	case a.cfg.Image != "":
		image, err := imagefile.OpenOrCreate(a.cfg.Image, s.chip.Capacity())
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, image.Close)

		if image.Capacity() < s.geometry.Capacity() {
			return nil, errors.Errorf(
				"image %s holds %d bytes, the device needs %d",
				a.cfg.Image, image.Capacity(), s.geometry.Capacity())
		}

		return image, nil
	case a.cfg.Bus != "":
		bus, err := i2ceeprom.OpenBus(a.cfg.Bus)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, bus.Close)

		return i2ceeprom.New(bus, s.chip), nil
	default:
		return nil, errors.New("either an image or a bus must be set")
	}
}

// close releases everything the session opened, the last opened first.
func (s *session) close() error {
	var firstErr error

	for i := len(s.closers) - 1; i >= 0; i-- {
		err := s.closers[i]()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.closers = nil

	return firstErr
}
