package eeprom

import (
	"math"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Chip", func() {
	var chip Chip

	BeforeEach(func() {
		chip, _ = DefaultCatalog().Lookup("HG24C256")
	})

	It("should describe itself", func() {
		Expect(chip.Info()).To(Equal(Info{
			Brand:         "HGSEMI",
			Model:         "HG24C256",
			DeviceAddress: 0x50,
			TotalSize:     32768,
			PageSize:      64,
			PageCount:     512,
		}))
	})

	It("should compute physical addresses", func() {
		Expect(chip.PhysicalAddress(2, 5)).To(Equal(uint64(133)))
	})

	It("should validate addresses", func() {
		Expect(chip.IsValidAddress(0)).To(BeTrue())
		Expect(chip.IsValidAddress(32767)).To(BeTrue())
		Expect(chip.IsValidAddress(32768)).To(BeFalse())
	})

	It("should locate an address in its page", func() {
		Expect(chip.PageInfo(130)).To(Equal(PageInfo{
			Number:    2,
			Offset:    2,
			Remaining: 62,
		}))
	})

	It("should use two address bytes for large parts", func() {
		Expect(chip.AddressWidth()).To(Equal(2))

		small, _ := DefaultCatalog().Lookup("at24c16")
		Expect(small.AddressWidth()).To(Equal(1))
	})
})

var _ = Describe("Catalog", func() {
	It("should order chips by capacity", func() {
		chips := DefaultCatalog().Chips()

		Expect(chips[0].Model).To(Equal("AT24C02"))
		Expect(chips[len(chips)-1].Model).To(Equal("AT24C512"))
	})

	It("should parse additional chips", func() {
		c, err := ParseCatalog([]byte(`
[[chip]]
brand = "Microchip"
model = "24LC1025"
page_size = 128
page_count = 1024
device_address = 0x51
`))

		Expect(err).NotTo(HaveOccurred())
		chip, ok := c.Lookup("24lc1025")
		Expect(ok).To(BeTrue())
		Expect(chip.Capacity()).To(Equal(uint64(131072)))
		Expect(chip.DeviceAddress).To(Equal(uint16(0x51)))

		_, ok = c.Lookup("HG24C256")
		Expect(ok).To(BeTrue())
	})

	It("should default the device address", func() {
		c, err := ParseCatalog([]byte(`
[[chip]]
model = "X"
page_size = 8
page_count = 16
`))

		Expect(err).NotTo(HaveOccurred())
		chip, _ := c.Lookup("X")
		Expect(chip.DeviceAddress).To(Equal(uint16(DefaultDeviceAddress)))
	})

	It("should reject a chip without pages", func() {
		_, err := ParseCatalog([]byte(`
[[chip]]
model = "X"
page_size = 8
`))

		Expect(err).To(MatchError(ContainSubstring("positive page size")))
	})

	It("should reject malformed files", func() {
		_, err := ParseCatalog([]byte("[[chip]\n"))

		Expect(err).To(HaveOccurred())
	})

	It("should load from a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "chips.toml")
		err := os.WriteFile(path, []byte(`
[[chip]]
model = "TINY"
page_size = 4
page_count = 4
`), 0o600)
		Expect(err).NotTo(HaveOccurred())

		c, err := LoadCatalog(path)

		Expect(err).NotTo(HaveOccurred())
		_, ok := c.Lookup("tiny")
		Expect(ok).To(BeTrue())
	})

	It("should fail on a missing file", func() {
		_, err := LoadCatalog(filepath.Join(GinkgoT().TempDir(), "none.toml"))

		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Geometry", func() {
	It("should lay page-sized blocks by default", func() {
		chip, _ := DefaultCatalog().Lookup("AT24C32")

		g, err := GeometryFor(chip, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(g).To(Equal(Geometry{
			PageSize:      32,
			BlockSize:     32,
			BlockCount:    128,
			DeviceAddress: 0x50,
		}))
		Expect(g.Capacity()).To(Equal(uint64(4096)))
	})

	It("should lay larger blocks", func() {
		chip, _ := DefaultCatalog().Lookup("HG24C256")

		g, err := GeometryFor(chip, 512)

		Expect(err).NotTo(HaveOccurred())
		Expect(g.BlockCount).To(Equal(uint64(64)))
	})

	It("should reject blocks larger than the chip", func() {
		chip, _ := DefaultCatalog().Lookup("AT24C02")

		_, err := GeometryFor(chip, 4096)

		Expect(err).To(HaveOccurred())
	})

	It("should reject zero sizes", func() {
		Expect(Geometry{BlockSize: 1, BlockCount: 1}.Validate()).
			To(MatchError("page size must be positive"))
		Expect(Geometry{PageSize: 1, BlockCount: 1}.Validate()).
			To(MatchError("block size must be positive"))
		Expect(Geometry{PageSize: 1, BlockSize: 1}.Validate()).
			To(MatchError("block count must be positive"))
	})

	It("should reject overflowing capacity", func() {
		g := Geometry{PageSize: 1, BlockSize: math.MaxUint64, BlockCount: 2}

		Expect(g.Validate()).To(HaveOccurred())
	})
})
