package logging_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/eepromblk/logging"
)

var _ = Describe("New", func() {
	It("should write text at the given level", func() {
		buf := &bytes.Buffer{}

		logger, err := logging.New("warn", "text", buf)
		Expect(err).NotTo(HaveOccurred())

		logger.Info("hidden")
		logger.WithField("block", 3).Warn("shown")

		Expect(logger.GetLevel()).To(Equal(logrus.WarnLevel))
		Expect(buf.String()).NotTo(ContainSubstring("hidden"))
		Expect(buf.String()).To(ContainSubstring(`msg=shown`))
		Expect(buf.String()).To(ContainSubstring("block=3"))
	})

	It("should write json", func() {
		buf := &bytes.Buffer{}

		logger, err := logging.New("info", "JSON", buf)
		Expect(err).NotTo(HaveOccurred())

		logger.WithField("op", "read").Info("eeprom access")

		entry := map[string]any{}
		Expect(json.Unmarshal(buf.Bytes(), &entry)).To(Succeed())
		Expect(entry["op"]).To(Equal("read"))
		Expect(entry["msg"]).To(Equal("eeprom access"))
	})

	It("should reject unknown levels and formats", func() {
		_, err := logging.New("loud", "text", &bytes.Buffer{})
		Expect(err).To(HaveOccurred())

		_, err = logging.New("info", "xml", &bytes.Buffer{})
		Expect(err).To(HaveOccurred())
	})
})
