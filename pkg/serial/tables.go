package serial

import "strings"

// Entry pairs a display label with the value stored and sent to the port.
type Entry[T comparable] struct {
	Label string
	Value T
}

// Table is an ordered list of label/value pairs. Settings are edited as
// labels and stored as values, so both directions are needed.
type Table[T comparable] []Entry[T]

// Lookup returns the value for an exact label match. An unknown label yields
// the zero value rather than an error.
func (t Table[T]) Lookup(label string) T {
	for _, e := range t {
		if e.Label == label {
			return e.Value
		}
	}
	var zero T
	return zero
}

// Find is a case-insensitive Lookup that reports whether the label exists.
func (t Table[T]) Find(label string) (T, bool) {
	for _, e := range t {
		if strings.EqualFold(e.Label, label) {
			return e.Value, true
		}
	}
	var zero T
	return zero, false
}

// Describe returns the label for value, or "" if the value is not listed.
func (t Table[T]) Describe(value T) string {
	for _, e := range t {
		if e.Value == value {
			return e.Label
		}
	}
	return ""
}

// Contains reports whether value is listed.
func (t Table[T]) Contains(value T) bool {
	for _, e := range t {
		if e.Value == value {
			return true
		}
	}
	return false
}

// Labels returns the labels in table order.
func (t Table[T]) Labels() []string {
	labels := make([]string, len(t))
	for i, e := range t {
		labels[i] = e.Label
	}
	return labels
}

// BaudTable lists the selectable baud rates.
var BaudTable = Table[uint32]{
	{"110", 110},
	{"300", 300},
	{"600", 600},
	{"1200", 1200},
	{"2400", 2400},
	{"4800", 4800},
	{"9600", 9600},
	{"14400", 14400},
	{"19200", 19200},
	{"38400", 38400},
	{"56000", 56000},
	{"57600", 57600},
	{"115200", 115200},
	{"128000", 128000},
	{"256000", 256000},
}

// ParityTable lists the parity modes.
var ParityTable = Table[Parity]{
	{"None", ParityNone},
	{"Even", ParityEven},
	{"Odd", ParityOdd},
	{"Mark", ParityMark},
	{"Space", ParitySpace},
}

// StopBitsTable lists the stop bit settings.
var StopBitsTable = Table[StopBits]{
	{"1", StopBits1},
	{"1.5", StopBits1Half},
	{"2", StopBits2},
}

// DTRControlTable lists the DTR line modes.
var DTRControlTable = Table[DTRControl]{
	{"Enable", DTREnable},
	{"Disable", DTRDisable},
	{"Handshake", DTRHandshake},
}

// RTSControlTable lists the RTS line modes.
var RTSControlTable = Table[RTSControl]{
	{"Enable", RTSEnable},
	{"Disable", RTSDisable},
	{"Handshake", RTSHandshake},
	{"Toggle", RTSToggle},
}

// EventTable lists the comm events in display order.
var EventTable = Table[EventMask]{
	{"Break", EventBreak},
	{"CTS", EventCTS},
	{"DSR", EventDSR},
	{"Err", EventErr},
	{"Ring", EventRing},
	{"RLSD", EventRLSD},
	{"RxChar", EventRxChar},
	{"RxFlag", EventRxFlag},
	{"TxEmpty", EventTxEmpty},
}

// FlowPresetTable lists the flow control presets.
var FlowPresetTable = Table[FlowPreset]{
	{"none", FlowNone},
	{"rtscts", FlowRTSCTS},
	{"dtrdsr", FlowDTRDSR},
	{"xonxoff", FlowXonXoff},
}
