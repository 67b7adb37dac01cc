// Package macro provides the macro slots of the terminal: encoding of the
// editable macro text into the bytes sent to the port, and persistence of
// the ten slots.
package macro

// Capacity is the maximum number of payload bytes a slot can hold.
const Capacity = 1024

// MaxTextLen is the maximum length of a slot's editable text.
const MaxTextLen = Capacity - 1

// HelpText describes the macro syntax accepted by Encode.
const HelpText = `In HEX macros any character other than 0-9, a-f, A-F is ignored, so any
other character can be used as a separator, or no separator at all.

In ASCII macros the escape sequences \n \r \t \0 \\ and \xhh are recognized,
where hh are one or two hexadecimal digits.`

// Encode converts macro text into the bytes to transmit. The result never
// exceeds Capacity bytes; excess input is dropped.
//
// In hex mode every non-hex character is skipped and digits are paired high
// nibble first. A trailing unpaired digit is emitted as digit<<4.
//
// In ASCII mode a backslash starts an escape: \n, \r, \t, \0 and \\ map to
// their control bytes, \xH and \xHH to a byte value (a single digit H yields
// H<<4, no digit yields 0x00). Any other escaped character is emitted as is.
// A backslash at the very end of the text emits nothing.
func Encode(text string, hex bool) []byte {
	if hex {
		return encodeHex(text)
	}
	return encodeASCII(text)
}

func encodeHex(text string) []byte {
	out := make([]byte, 0, min(len(text)/2+1, Capacity))

	var hi byte
	high := true
	for i := 0; i < len(text); i++ {
		v := HexValue(text[i])
		if v < 0 {
			continue
		}
		if high {
			hi = byte(v) << 4
			high = false
			continue
		}
		if len(out) == Capacity {
			return out
		}
		out = append(out, hi|byte(v))
		high = true
	}

	if !high && len(out) < Capacity {
		out = append(out, hi)
	}
	return out
}

func encodeASCII(text string) []byte {
	out := make([]byte, 0, min(len(text), Capacity))

	for i := 0; i < len(text) && len(out) < Capacity; i++ {
		c := text[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}

		i++
		if i == len(text) {
			break
		}

		c = text[i]
		switch c {
		case 'n':
			c = '\n'
		case 'r':
			c = '\r'
		case 't':
			c = '\t'
		case '0':
			c = 0
		case 'x':
			c, i = escapedHex(text, i)
		}
		out = append(out, c)
	}

	return out
}

// escapedHex decodes the digits that follow the 'x' at text[i]. It returns the
// byte value and the index of the last character consumed. A non-hex
// character after the digits is left for the caller.
func escapedHex(text string, i int) (byte, int) {
	if i+1 >= len(text) {
		return 0, i
	}

	hi := HexValue(text[i+1])
	if hi < 0 {
		return 0, i
	}
	i++

	if i+1 < len(text) {
		if lo := HexValue(text[i+1]); lo >= 0 {
			return byte(hi<<4 | lo), i + 1
		}
	}
	return byte(hi << 4), i
}
