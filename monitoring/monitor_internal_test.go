package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/eepromblk/blockdev"
	"github.com/sarchlab/eepromblk/eeprom"
	"github.com/sarchlab/eepromblk/trace"
	"github.com/sarchlab/eepromblk/tracing"
	"github.com/sarchlab/eepromblk/transport/memtransport"
)

func newDevice(name string) *blockdev.Device {
	geometry := eeprom.Geometry{PageSize: 32, BlockSize: 128, BlockCount: 8}

	return blockdev.MakeBuilder().
		WithGeometry(geometry).
		WithTransport(memtransport.NewStorage(geometry.Capacity())).
		Build(name)
}

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		device *blockdev.Device
		stats  *trace.StatsTracer
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		m.Router().ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		logger, _ := test.NewNullLogger()
		m = NewMonitor().WithLogger(logger)

		device = newDevice("EEPROM")
		stats = trace.NewStatsTracer(nil)
		tracing.CollectTrace(device, stats)

		m.RegisterDevice(device)
		m.RegisterStats(device.Name(), stats)
	})

	It("should refuse privileged ports", func() {
		m.WithPortNumber(80)
		Expect(m.portNumber).To(Equal(0))

		m.WithPortNumber(8080)
		Expect(m.portNumber).To(Equal(8080))
	})

	It("should list devices", func() {
		m.RegisterDevice(newDevice("Other"))

		rec := get("/api/list_devices")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`["EEPROM","Other"]`))
	})

	It("should describe a device", func() {
		rec := get("/api/device/EEPROM")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("State"))
	})

	It("should report 404 for unknown devices", func() {
		Expect(get("/api/device/Missing").Code).To(Equal(http.StatusNotFound))
		Expect(get("/api/stats/Missing").Code).To(Equal(http.StatusNotFound))
	})

	It("should reject malformed field requests", func() {
		rec := get("/api/field/not-json")

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should report stats", func() {
		ctx := context.Background()
		Expect(device.Write(ctx, 0, 20, make([]byte, 50))).To(Succeed())

		rec := get("/api/stats/EEPROM")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp []trace.OpStats
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Op).To(Equal("prog"))
		Expect(rsp[0].Bytes).To(Equal(uint64(50)))
		Expect(rsp[0].Chunks).To(Equal(uint64(3)))
	})

	It("should list and complete progress bars", func() {
		bar := m.CreateProgressBar("dump", 1024)
		bar.IncrementInProgress(256)
		bar.MoveInProgressToFinished(128)

		var rsp []progressRsp
		Expect(json.Unmarshal(get("/api/progress").Body.Bytes(), &rsp)).
			To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Name).To(Equal("dump"))
		Expect(rsp[0].Finished).To(Equal(uint64(128)))
		Expect(rsp[0].InProgress).To(Equal(uint64(128)))

		m.CompleteProgressBar(bar)

		Expect(get("/api/progress").Body.String()).To(MatchJSON(`[]`))
	})

	It("should report resources", func() {
		rec := get("/api/resource")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp resourceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve on a random port", func() {
		port, err := m.StartServer()
		Expect(err).NotTo(HaveOccurred())
		Expect(port).To(BeNumerically(">", 0))

		Expect(m.StopServer(context.Background())).To(Succeed())
	})
})
