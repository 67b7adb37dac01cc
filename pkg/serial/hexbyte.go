package serial

import (
	"strconv"
	"strings"

	"comterm/pkg/macro"
)

// ParseHexByte reads a control character typed as hex. Only the first two
// characters count, parsing stops at the first non-hex digit and anything
// unreadable yields 0.
func ParseHexByte(s string) byte {
	if len(s) > 2 {
		s = s[:2]
	}
	var v byte
	for i := 0; i < len(s); i++ {
		d := macro.HexValue(s[i])
		if d < 0 {
			break
		}
		v = v<<4 | byte(d)
	}
	return v
}

// FormatHexByte renders b as two lowercase hex digits.
func FormatHexByte(b byte) string {
	return string(macro.AppendHex(nil, b))
}

// AdjustPortName returns the device path for a port name. COM ports
// numbered 10 and above are only reachable through the \\.\ namespace.
func AdjustPortName(name string) string {
	if len(name) < 5 || !strings.EqualFold(name[:3], "COM") {
		return name
	}
	n, err := strconv.Atoi(name[3:])
	if err != nil || n < 10 {
		return name
	}
	return `\\.\` + name
}
