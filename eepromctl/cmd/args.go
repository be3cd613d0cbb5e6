package cmd

import (
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

func parseArg(args []string, i int, name string, def uint64) (uint64, error) {
	if i >= len(args) {
		return def, nil
	}

	n, err := strconv.ParseUint(args[i], 0, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", name, args[i])
	}

	return n, nil
}

// payload returns the bytes given as a hex string or a file.
func payload(hexData, file string) ([]byte, error) {
	switch {
	case hexData != "" && file != "":
		return nil, errors.New("only one of --hex and --file can be set")
	case hexData != "":
		return parseHex(hexData)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read %s", file)
		}

		return data, nil
	default:
		return nil, errors.New("either --hex or --file must be set")
	}
}

// parseHex decodes bytes written as hex, optionally split by spaces or
// colons. Each group may carry one leading 0x.
func parseHex(s string) ([]byte, error) {
	groups := strings.FieldsFunc(s, func(r rune) bool {
		return r == ':' || unicode.IsSpace(r)
	})

	var data []byte

	for _, g := range groups {
		if len(g) > 2 && (g[:2] == "0x" || g[:2] == "0X") {
			g = g[2:]
		}

		b, err := hex.DecodeString(g)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid hex data %q", s)
		}

		data = append(data, b...)
	}

	return data, nil
}
