package macro

const hexDigits = "0123456789abcdef"

// HexValue returns the numeric value of a hexadecimal digit, or -1 if c is
// not one.
func HexValue(c byte) int {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0')
	case 'a' <= c && c <= 'f':
		return int(c-'a') + 10
	case 'A' <= c && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// AppendHex appends b as two lowercase, zero-padded hex digits.
func AppendHex(dst []byte, b byte) []byte {
	return append(dst, hexDigits[b>>4], hexDigits[b&0x0f])
}
