package imagefile

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Image", func() {
	var (
		ctx  context.Context
		path string
	)

	BeforeEach(func() {
		ctx = context.Background()
		path = filepath.Join(GinkgoT().TempDir(), "chip.bin")
	})

	It("should create an erased image", func() {
		img, err := Create(path, 64)
		Expect(err).NotTo(HaveOccurred())
		defer img.Close()

		Expect(img.Capacity()).To(Equal(uint64(64)))
		res, err := img.ReadBytes(ctx, 60, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal([]byte{0xff, 0xff, 0xff, 0xff}))
	})

	It("should not overwrite an existing image", func() {
		Expect(os.WriteFile(path, []byte{1}, 0o600)).To(Succeed())

		_, err := Create(path, 64)

		Expect(err).To(HaveOccurred())
	})

	It("should persist writes", func() {
		img, err := Create(path, 64)
		Expect(err).NotTo(HaveOccurred())
		Expect(img.WriteBytes(ctx, 10, []byte{1, 2, 3})).To(Succeed())
		Expect(img.Close()).To(Succeed())

		img, err = Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer img.Close()

		res, err := img.ReadBytes(ctx, 9, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal([]byte{0xff, 1, 2, 3, 0xff}))
	})

	It("should reject accesses past the end", func() {
		img, err := Create(path, 16)
		Expect(err).NotTo(HaveOccurred())
		defer img.Close()

		_, err = img.ReadBytes(ctx, 15, 2)
		Expect(err).To(MatchError(ContainSubstring("exceed image size 16")))

		err = img.WriteBytes(ctx, 17, []byte{1})
		Expect(err).To(HaveOccurred())
	})

	It("should open or create", func() {
		img, err := OpenOrCreate(path, 32)
		Expect(err).NotTo(HaveOccurred())
		Expect(img.WriteBytes(ctx, 0, []byte{5})).To(Succeed())
		Expect(img.Close()).To(Succeed())

		img, err = OpenOrCreate(path, 1024)
		Expect(err).NotTo(HaveOccurred())
		defer img.Close()

		Expect(img.Capacity()).To(Equal(uint64(32)))
		res, _ := img.ReadBytes(ctx, 0, 1)
		Expect(res).To(Equal([]byte{5}))
	})

	It("should fail to open a missing image", func() {
		_, err := Open(path)

		Expect(err).To(HaveOccurred())
	})
})
