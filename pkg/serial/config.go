// Package serial models the serial line configuration and applies it to a
// go.bug.st/serial port.
package serial

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Parity is stored as its letter code.
type Parity byte

const (
	ParityNone  Parity = 'N'
	ParityEven  Parity = 'E'
	ParityOdd   Parity = 'O'
	ParityMark  Parity = 'M'
	ParitySpace Parity = 'S'
)

// StopBits is stored as 1, 15 (one and a half) or 2.
type StopBits byte

const (
	StopBits1     StopBits = 1
	StopBits1Half StopBits = 15
	StopBits2     StopBits = 2
)

// DTRControl selects how the DTR line is driven.
type DTRControl byte

const (
	DTRDisable DTRControl = iota
	DTREnable
	DTRHandshake
)

// RTSControl selects how the RTS line is driven.
type RTSControl byte

const (
	RTSDisable RTSControl = iota
	RTSEnable
	RTSHandshake
	RTSToggle
)

// EventMask is a set of comm events the session wants reported.
type EventMask uint32

const (
	EventRxChar  EventMask = 0x0001
	EventRxFlag  EventMask = 0x0002
	EventTxEmpty EventMask = 0x0004
	EventCTS     EventMask = 0x0008
	EventDSR     EventMask = 0x0010
	EventRLSD    EventMask = 0x0020
	EventBreak   EventMask = 0x0040
	EventErr     EventMask = 0x0080
	EventRing    EventMask = 0x0100

	allEvents = EventRxChar | EventRxFlag | EventTxEmpty | EventCTS | EventDSR |
		EventRLSD | EventBreak | EventErr | EventRing

	DefaultEventMask = EventBreak | EventCTS | EventDSR | EventErr | EventRing | EventRLSD
)

// ReadIntervalImmediate makes reads return at once with whatever is buffered.
const ReadIntervalImmediate uint32 = 0xFFFFFFFF

// NoTimeout marks a read that blocks until at least one byte arrives.
const NoTimeout time.Duration = -1

// Timeouts holds the read and write timeouts in milliseconds.
type Timeouts struct {
	ReadInterval         uint32 `json:"read_interval"`
	ReadTotalMultiplier  uint32 `json:"read_total_multiplier"`
	ReadTotalConstant    uint32 `json:"read_total_constant"`
	WriteTotalMultiplier uint32 `json:"write_total_multiplier"`
	WriteTotalConstant   uint32 `json:"write_total_constant"`
}

// DefaultTimeouts returns the timeouts used for a fresh session.
func DefaultTimeouts() Timeouts {
	return Timeouts{ReadInterval: 1}
}

// ReadTimeout returns how long a read of n bytes may block. A zero total
// timeout blocks until data arrives unless the interval asks for an
// immediate return.
func (t Timeouts) ReadTimeout(n int) time.Duration {
	if t.ReadTotalMultiplier == 0 && t.ReadTotalConstant == 0 {
		if t.ReadInterval == ReadIntervalImmediate {
			return 0
		}
		return NoTimeout
	}
	ms := uint64(t.ReadTotalMultiplier)*uint64(n) + uint64(t.ReadTotalConstant)
	return time.Duration(ms) * time.Millisecond
}

// LineConfig is the user-facing serial line configuration.
type LineConfig struct {
	BaudRate uint32   `json:"baud_rate"`
	ByteSize uint8    `json:"byte_size"`
	Parity   Parity   `json:"parity"`
	StopBits StopBits `json:"stop_bits"`

	DTRControl       DTRControl `json:"dtr_control"`
	RTSControl       RTSControl `json:"rts_control"`
	CTSOutFlow       bool       `json:"cts_out_flow"`
	DSROutFlow       bool       `json:"dsr_out_flow"`
	DSRSensitivity   bool       `json:"dsr_sensitivity"`
	XonOutFlow       bool       `json:"xon_out_flow"`
	XonInFlow        bool       `json:"xon_in_flow"`
	TxContinueOnXoff bool       `json:"tx_continue_on_xoff"`
	XonChar          byte       `json:"xon_char"`
	XoffChar         byte       `json:"xoff_char"`
	XonLimit         uint16     `json:"xon_limit"`
	XoffLimit        uint16     `json:"xoff_limit"`

	EventMask     EventMask `json:"event_mask"`
	EventFlagChar byte      `json:"event_flag_char"`

	Timeouts Timeouts `json:"timeouts"`
}

// DefaultLineConfig returns 9600 8-N-1 with DTR and RTS raised and no flow
// control.
func DefaultLineConfig() LineConfig {
	return LineConfig{
		BaudRate:      9600,
		ByteSize:      8,
		Parity:        ParityNone,
		StopBits:      StopBits1,
		DTRControl:    DTREnable,
		RTSControl:    RTSEnable,
		XonChar:       0x11,
		XoffChar:      0x13,
		XonLimit:      2048,
		XoffLimit:     512,
		EventMask:     DefaultEventMask,
		EventFlagChar: '\n',
		Timeouts:      DefaultTimeouts(),
	}
}

// Validate checks that every field holds a value the port can be set to.
func (c LineConfig) Validate() error {
	var errs []error
	if c.BaudRate == 0 {
		errs = append(errs, fmt.Errorf("baud rate cannot be zero"))
	}
	if c.ByteSize < 5 || c.ByteSize > 8 {
		errs = append(errs, fmt.Errorf("byte size must be between 5 and 8, got: %d", c.ByteSize))
	}
	if !ParityTable.Contains(c.Parity) {
		errs = append(errs, fmt.Errorf("invalid parity: %d", c.Parity))
	}
	if !StopBitsTable.Contains(c.StopBits) {
		errs = append(errs, fmt.Errorf("invalid stop bits: %d", c.StopBits))
	}
	if !DTRControlTable.Contains(c.DTRControl) {
		errs = append(errs, fmt.Errorf("invalid DTR control: %d", c.DTRControl))
	}
	if !RTSControlTable.Contains(c.RTSControl) {
		errs = append(errs, fmt.Errorf("invalid RTS control: %d", c.RTSControl))
	}
	if (c.XonOutFlow || c.XonInFlow) && c.XonChar == c.XoffChar {
		errs = append(errs, fmt.Errorf("XON and XOFF characters must differ, both are %s", FormatHexByte(c.XonChar)))
	}
	if c.EventMask&^allEvents != 0 {
		errs = append(errs, fmt.Errorf("unknown event bits: %#x", uint32(c.EventMask&^allEvents)))
	}
	return errors.Join(errs...)
}

// Equal reports whether two configurations would program the port
// identically.
func (c LineConfig) Equal(other LineConfig) bool {
	return c == other
}

// WireConfig is the configuration as handed to the port.
type WireConfig struct {
	BaudRate    uint32
	ByteSize    uint8
	Parity      Parity
	StopBits    StopBits
	ParityCheck bool
	EventChar   byte

	DTRControl       DTRControl
	RTSControl       RTSControl
	CTSOutFlow       bool
	DSROutFlow       bool
	DSRSensitivity   bool
	XonOutFlow       bool
	XonInFlow        bool
	TxContinueOnXoff bool
	XonChar          byte
	XoffChar         byte
	XonLimit         uint16
	XoffLimit        uint16
}

// ToWireConfig builds the port configuration. The event character is only
// armed when RxFlag is in the event mask, and parity checking is always on.
func (c LineConfig) ToWireConfig() WireConfig {
	w := WireConfig{
		BaudRate:         c.BaudRate,
		ByteSize:         c.ByteSize,
		Parity:           c.Parity,
		StopBits:         c.StopBits,
		ParityCheck:      true,
		DTRControl:       c.DTRControl,
		RTSControl:       c.RTSControl,
		CTSOutFlow:       c.CTSOutFlow,
		DSROutFlow:       c.DSROutFlow,
		DSRSensitivity:   c.DSRSensitivity,
		XonOutFlow:       c.XonOutFlow,
		XonInFlow:        c.XonInFlow,
		TxContinueOnXoff: c.TxContinueOnXoff,
		XonChar:          c.XonChar,
		XoffChar:         c.XoffChar,
		XonLimit:         c.XonLimit,
		XoffLimit:        c.XoffLimit,
	}
	if c.EventMask.Has(EventRxFlag) {
		w.EventChar = c.EventFlagChar
	}
	return w
}

// Port is the part of an open serial port that line settings are pushed to.
type Port interface {
	Reconfigure(wire WireConfig) error
	SetTimeouts(t Timeouts) error
	Purge() error
}

// ApplyIfConnected pushes the configuration to port. Nothing happens while
// disconnected. Both steps are attempted even if the first fails; failures
// are returned joined and nothing is rolled back.
func (c LineConfig) ApplyIfConnected(connected bool, port Port) error {
	if !connected || port == nil {
		return nil
	}

	var errs []error
	if err := port.Reconfigure(c.ToWireConfig()); err != nil {
		errs = append(errs, NewSerialError("reconfigure", portName(port), err))
	}
	if err := port.SetTimeouts(c.Timeouts); err != nil {
		errs = append(errs, NewSerialError("set timeouts", portName(port), err))
	}
	return errors.Join(errs...)
}

func portName(p Port) string {
	if n, ok := p.(interface{ Name() string }); ok {
		return n.Name()
	}
	return ""
}

// Has reports whether every bit of e is set in m.
func (m EventMask) Has(e EventMask) bool {
	return m&e == e
}

// String lists the set events in table order, or "none".
func (m EventMask) String() string {
	var labels []string
	for _, e := range EventTable {
		if m.Has(e.Value) {
			labels = append(labels, e.Label)
		}
	}
	if len(labels) == 0 {
		return "none"
	}
	return strings.Join(labels, ",")
}

// ParseEventMask parses a comma separated list of event labels.
func ParseEventMask(s string) (EventMask, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return 0, nil
	}
	var m EventMask
	for _, part := range strings.Split(s, ",") {
		v, ok := EventTable.Find(strings.TrimSpace(part))
		if !ok {
			return 0, fmt.Errorf("unknown event: %q (valid: %s)", part, strings.Join(EventTable.Labels(), ", "))
		}
		m |= v
	}
	return m, nil
}

func (m EventMask) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *EventMask) UnmarshalText(text []byte) error {
	v, err := ParseEventMask(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (p Parity) String() string {
	if s := ParityTable.Describe(p); s != "" {
		return s
	}
	return fmt.Sprintf("Parity(%d)", byte(p))
}

func (p Parity) MarshalText() ([]byte, error) {
	return marshalLabel(ParityTable, p, "parity")
}

func (p *Parity) UnmarshalText(text []byte) error {
	return unmarshalLabel(ParityTable, text, p, "parity")
}

func (s StopBits) String() string {
	if l := StopBitsTable.Describe(s); l != "" {
		return l
	}
	return fmt.Sprintf("StopBits(%d)", byte(s))
}

func (s StopBits) MarshalText() ([]byte, error) {
	return marshalLabel(StopBitsTable, s, "stop bits")
}

func (s *StopBits) UnmarshalText(text []byte) error {
	return unmarshalLabel(StopBitsTable, text, s, "stop bits")
}

func (d DTRControl) String() string {
	if l := DTRControlTable.Describe(d); l != "" {
		return l
	}
	return fmt.Sprintf("DTRControl(%d)", byte(d))
}

func (d DTRControl) MarshalText() ([]byte, error) {
	return marshalLabel(DTRControlTable, d, "DTR control")
}

func (d *DTRControl) UnmarshalText(text []byte) error {
	return unmarshalLabel(DTRControlTable, text, d, "DTR control")
}

func (r RTSControl) String() string {
	if l := RTSControlTable.Describe(r); l != "" {
		return l
	}
	return fmt.Sprintf("RTSControl(%d)", byte(r))
}

func (r RTSControl) MarshalText() ([]byte, error) {
	return marshalLabel(RTSControlTable, r, "RTS control")
}

func (r *RTSControl) UnmarshalText(text []byte) error {
	return unmarshalLabel(RTSControlTable, text, r, "RTS control")
}

func marshalLabel[T comparable](t Table[T], v T, what string) ([]byte, error) {
	label := t.Describe(v)
	if label == "" {
		return nil, fmt.Errorf("invalid %s: %v", what, v)
	}
	return []byte(label), nil
}

func unmarshalLabel[T comparable](t Table[T], text []byte, dst *T, what string) error {
	v, ok := t.Find(string(text))
	if !ok {
		return fmt.Errorf("invalid %s: %q (valid: %s)", what, text, strings.Join(t.Labels(), ", "))
	}
	*dst = v
	return nil
}
