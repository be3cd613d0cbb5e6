package paging

import (
	"math"
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Split", func() {
	It("should split a range that spans three pages", func() {
		chunks := Chunks(20, 50, 32)

		Expect(chunks).To(Equal([]Chunk{
			{Address: 20, Length: 12, Page: 0, Offset: 20},
			{Address: 32, Length: 32, Page: 1, Offset: 0},
			{Address: 64, Length: 6, Page: 2, Offset: 0},
		}))
	})

	It("should yield nothing for a zero length", func() {
		Expect(Chunks(100, 0, 32)).To(BeEmpty())
	})

	It("should yield a single chunk for exactly one page", func() {
		chunks := Chunks(128, 64, 64)

		Expect(chunks).To(Equal([]Chunk{
			{Address: 128, Length: 64, Page: 2, Offset: 0},
		}))
	})

	It("should start every chunk after the first at a page boundary", func() {
		chunks := Chunks(64, 256, 64)

		Expect(chunks).To(HaveLen(4))
		for _, c := range chunks {
			Expect(c.Offset).To(BeZero())
			Expect(c.Length).To(Equal(uint64(64)))
		}
	})

	It("should keep a short range inside its page", func() {
		chunks := Chunks(70, 5, 64)

		Expect(chunks).To(Equal([]Chunk{
			{Address: 70, Length: 5, Page: 1, Offset: 6},
		}))
	})

	It("should work with a page size of one", func() {
		chunks := Chunks(7, 3, 1)

		Expect(chunks).To(HaveLen(3))
		Expect(chunks[2].Address).To(Equal(uint64(9)))
	})

	It("should be restartable", func() {
		seq := Split(20, 50, 32)

		var first, second []Chunk
		for c := range seq {
			first = append(first, c)
		}
		for c := range seq {
			second = append(second, c)
		}

		Expect(second).To(Equal(first))
	})

	It("should stop when the consumer stops", func() {
		count := 0
		for range Split(0, 1024, 16) {
			count++
			if count == 2 {
				break
			}
		}

		Expect(count).To(Equal(2))
	})

	It("should panic on a zero page size", func() {
		Expect(func() { Split(0, 10, 0) }).To(Panic())
	})

	It("should panic when the range overflows", func() {
		Expect(func() { Split(math.MaxUint64-1, 10, 32) }).To(Panic())
	})

	It("should hold for random ranges", func() {
		r := rand.New(rand.NewPCG(1, 2))

		for i := 0; i < 2000; i++ {
			pageSize := uint64(r.IntN(256) + 1)
			start := uint64(r.IntN(1 << 16))
			length := uint64(r.IntN(4096))

			chunks := Chunks(start, length, pageSize)

			sum := uint64(0)
			next := start
			for _, c := range chunks {
				Expect(c.Address).To(Equal(next))
				Expect(c.Length).To(BeNumerically(">", 0))
				Expect(c.Address / pageSize).
					To(Equal((c.End() - 1) / pageSize))
				Expect(c.Page).To(Equal(c.Address / pageSize))
				Expect(c.Offset).To(Equal(c.Address % pageSize))

				sum += c.Length
				next = c.End()
			}

			Expect(sum).To(Equal(length))
			Expect(Chunks(start, length, pageSize)).To(Equal(chunks))
		}
	})
})

var _ = Describe("Page helpers", func() {
	It("should find the page of an address", func() {
		Expect(PageOf(0, 64)).To(Equal(uint64(0)))
		Expect(PageOf(63, 64)).To(Equal(uint64(0)))
		Expect(PageOf(64, 64)).To(Equal(uint64(1)))
	})

	It("should measure the bytes left in a page", func() {
		Expect(PageCrossLength(0, 32)).To(Equal(uint64(32)))
		Expect(PageCrossLength(20, 32)).To(Equal(uint64(12)))
		Expect(PageCrossLength(31, 32)).To(Equal(uint64(1)))
	})
})
