package tracing

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/eepromblk/hooking"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Span", func() {
	var (
		mockCtrl *gomock.Controller
		tracer   *MockTracer
		source   *hooking.Registry
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		tracer = NewMockTracer(mockCtrl)
		source = hooking.NewRegistry("Dev")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should be inert when nothing is hooked", func() {
		span := Begin(source, "", "", nil)

		Expect(span.ID()).To(BeEmpty())
		Expect(func() {
			span.Step("chunk", nil)
			span.End("ok", nil)
		}).NotTo(Panic())
	})

	It("should deliver a task lifecycle", func() {
		CollectTrace(source, tracer)
		failure := errors.New("boom")

		var id string
		tracer.EXPECT().StartTask(gomock.Any()).Do(func(task Task) {
			id = task.ID
			Expect(task.ID).NotTo(BeEmpty())
			Expect(task.Kind).To(Equal("eeprom"))
			Expect(task.What).To(Equal("read"))
			Expect(task.Where).To(Equal("Dev"))
			Expect(task.Detail).To(Equal(42))
		})
		tracer.EXPECT().StepTask(gomock.Any()).Do(func(task Task) {
			Expect(task.ID).To(Equal(id))
			Expect(task.Steps).To(HaveLen(1))
			Expect(task.Steps[0].What).To(Equal("chunk"))
		})
		tracer.EXPECT().EndTask(gomock.Any()).Do(func(task Task) {
			Expect(task.ID).To(Equal(id))
			Expect(task.Outcome).To(Equal("transport_error"))
			Expect(task.Err).To(BeIdenticalTo(failure))
		})

		span := Begin(source, "eeprom", "read", 42)
		span.Step("chunk", nil)
		span.End("transport_error", failure)

		Expect(span.ID()).To(Equal(id))
	})

	It("should require a kind and a what", func() {
		CollectTrace(source, tracer)

		Expect(func() { Begin(source, "eeprom", "", nil) }).To(Panic())
	})

	It("should not attach the same tracer twice", func() {
		CollectTrace(source, tracer)

		Expect(func() { CollectTrace(source, tracer) }).To(Panic())
	})

	It("should ignore items that are not tasks", func() {
		CollectTrace(source, tracer)

		source.Emit(PosTaskStart, "not a task")
	})

	It("should generate distinct ids", func() {
		Expect(NewTaskID()).NotTo(Equal(NewTaskID()))
	})
})
