package tracing

import (
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gmeasure"
	"go.uber.org/mock/gomock"
)

var _ = Describe("BusyTimeTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *MockTimeTeller
		t          *BusyTimeTracer
		epoch      time.Time
	)

	at := func(ms float64) time.Time {
		return epoch.Add(time.Duration(ms * float64(time.Millisecond)))
	}

	expectTime := func(ms float64) {
		timeTeller.EXPECT().CurrentTime().Return(at(ms))
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = NewMockTimeTeller(mockCtrl)
		epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		t = NewBusyTimeTracer(timeTeller, nil)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should track busy time, one task", func() {
		expectTime(1)
		t.StartTask(Task{ID: "1"})
		expectTime(2)
		t.EndTask(Task{ID: "1"})

		Expect(t.BusyTime()).To(Equal(time.Millisecond))
	})

	It("should track busy time, two tasks adjacent", func() {
		expectTime(1)
		t.StartTask(Task{ID: "1"})
		expectTime(2)
		t.EndTask(Task{ID: "1"})
		expectTime(2)
		t.StartTask(Task{ID: "2"})
		expectTime(3)
		t.EndTask(Task{ID: "2"})

		Expect(t.BusyTime()).To(Equal(2 * time.Millisecond))
	})

	It("should count overlapping time once", func() {
		expectTime(1)
		t.StartTask(Task{ID: "1"})
		expectTime(1.5)
		t.StartTask(Task{ID: "2"})
		expectTime(2)
		t.EndTask(Task{ID: "1"})

		Expect(t.BusyTime()).To(BeZero())

		expectTime(2.5)
		t.EndTask(Task{ID: "2"})

		Expect(t.BusyTime()).To(Equal(1500 * time.Microsecond))
	})

	It("should track busy time, four tasks", func() {
		expectTime(1)
		t.StartTask(Task{ID: "1"})
		expectTime(1.1)
		t.StartTask(Task{ID: "2"})
		expectTime(1.2)
		t.EndTask(Task{ID: "2"})
		expectTime(1.9)
		t.StartTask(Task{ID: "3"})
		expectTime(2)
		t.EndTask(Task{ID: "1"})
		expectTime(2.1)
		t.EndTask(Task{ID: "3"})
		expectTime(3.1)
		t.StartTask(Task{ID: "4"})
		expectTime(3.2)
		t.EndTask(Task{ID: "4"})

		Expect(t.BusyTime()).To(
			BeNumerically("~", 1200*time.Microsecond, time.Microsecond))
	})

	It("should skip filtered tasks", func() {
		t = NewBusyTimeTracer(timeTeller, func(task Task) bool {
			return task.Kind == "eeprom"
		})

		expectTime(1)
		t.StartTask(Task{ID: "1", Kind: "other"})
		expectTime(2)
		t.EndTask(Task{ID: "1"})

		Expect(t.BusyTime()).To(BeZero())
	})

	It("should be able to terminate all the tasks", func() {
		expectTime(1)
		t.StartTask(Task{ID: "1"})
		expectTime(1.1)
		t.StartTask(Task{ID: "2"})
		expectTime(1.9)
		t.StartTask(Task{ID: "3"})
		expectTime(2.1)
		t.EndTask(Task{ID: "3"})

		t.TerminateAllTasks(at(3.5))

		Expect(t.BusyTime()).To(
			BeNumerically("~", 2500*time.Microsecond, time.Microsecond))
	})

	It("measure busy time tracer", func() {
		experiment := gmeasure.NewExperiment("Busy Time Tracer Performance")
		AddReportEntry(experiment.Name, experiment)

		experiment.MeasureDuration("runtime", func() {
			for i := 0; i < 10000; i++ {
				taskID := fmt.Sprintf("%d", i)

				expectTime(float64(i * 2))
				t.StartTask(Task{ID: taskID})

				expectTime(float64(i*2 + 1))
				t.EndTask(Task{ID: taskID})
			}

			Expect(t.BusyTime()).To(Equal(10000 * time.Millisecond))
		})
	})
})
