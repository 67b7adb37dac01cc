package serial

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

// ReadBufferSize is the size of a single read from the port.
const ReadBufferSize = 512

// Device is an open serial port backed by go.bug.st/serial. Read may run on
// its own goroutine; every other method belongs to the session owner.
type Device struct {
	port     serial.Port
	name     string
	wire     WireConfig
	timeouts Timeouts
	logger   zerolog.Logger

	mu     sync.Mutex // guards isOpen and state against Read
	isOpen bool
	state  ConnectionState

	open func(name string, mode *serial.Mode) (serial.Port, error)
}

// NewDevice creates a closed device.
func NewDevice(logger zerolog.Logger) *Device {
	return &Device{
		logger: logger.With().Str("component", "serial").Logger(),
		state:  StateDisconnected,
		open:   serial.Open,
	}
}

// Open opens the named port and programs it with cfg.
func (d *Device) Open(name string, cfg LineConfig) error {
	if d.isOpen {
		return fmt.Errorf("serial port is already open")
	}
	if name == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	wire := cfg.ToWireConfig()
	port, err := d.open(name, modeFor(wire))
	if err != nil {
		d.setState(StateError)
		return NewSerialError("open", name, err)
	}

	d.port = port
	d.name = name
	d.isOpen = true
	if err := errors.Join(d.Reconfigure(wire), d.SetTimeouts(cfg.Timeouts)); err != nil {
		port.Close()
		d.port = nil
		d.isOpen = false
		d.setState(StateError)
		return NewSerialError("open", name, err)
	}

	d.setState(StateConnected)
	d.logger.Debug().Str("port", name).Uint32("baud", cfg.BaudRate).Msg("port opened")
	return nil
}

// OpenWithRetry calls Open until it succeeds, the error is not worth
// retrying, the attempts run out or ctx is done.
func (d *Device) OpenWithRetry(ctx context.Context, name string, cfg LineConfig, retry RetryConfig) error {
	if err := retry.Validate(); err != nil {
		return fmt.Errorf("invalid retry configuration: %w", err)
	}

	d.setState(StateConnecting)
	var lastErr error
	interval := retry.RetryInterval

	for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				d.setState(StateError)
				return ctx.Err()
			case <-time.After(interval):
			}
			interval = time.Duration(float64(interval) * retry.BackoffFactor)
			if interval > retry.MaxInterval {
				interval = retry.MaxInterval
			}
		}

		err := d.Open(name, cfg)
		if err == nil {
			return nil
		}
		lastErr = err
		d.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("open failed")

		if !isRecoverableError(err) {
			break
		}
	}

	d.setState(StateError)
	return fmt.Errorf("failed to open serial port after %d attempts: %w", retry.MaxRetries+1, lastErr)
}

// Close closes the port.
func (d *Device) Close() error {
	d.mu.Lock()
	if !d.isOpen {
		d.mu.Unlock()
		return fmt.Errorf("serial port is not open")
	}
	port := d.port
	d.port = nil
	d.isOpen = false
	d.state = StateDisconnected
	d.mu.Unlock()

	if err := port.Close(); err != nil {
		return NewSerialError("close", d.name, err)
	}
	return nil
}

// Read reads data from the serial port. A failed read on an open port puts
// the device in the error state.
func (d *Device) Read(buffer []byte) (int, error) {
	d.mu.Lock()
	port, open := d.port, d.isOpen
	d.mu.Unlock()
	if !open {
		return 0, fmt.Errorf("serial port is not open")
	}

	n, err := port.Read(buffer)
	if err != nil {
		d.mu.Lock()
		if d.isOpen {
			d.state = StateError
		}
		d.mu.Unlock()
		return n, fmt.Errorf("failed to read from serial port: %w", err)
	}
	return n, nil
}

// Write writes data to the serial port
func (d *Device) Write(data []byte) (int, error) {
	if !d.isOpen {
		return 0, fmt.Errorf("serial port is not open")
	}
	n, err := d.port.Write(data)
	if err != nil {
		return n, fmt.Errorf("failed to write to serial port: %w", err)
	}
	return n, nil
}

// Reconfigure programs framing and control lines. Handshake and toggle line
// modes and software flow control are left to the driver, which
// go.bug.st/serial does not expose.
func (d *Device) Reconfigure(w WireConfig) error {
	if !d.isOpen {
		return fmt.Errorf("serial port is not open")
	}
	if err := d.port.SetMode(modeFor(w)); err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}

	switch w.DTRControl {
	case DTREnable, DTRDisable:
		if err := d.port.SetDTR(w.DTRControl == DTREnable); err != nil {
			return fmt.Errorf("failed to set DTR: %w", err)
		}
	default:
		d.logger.Debug().Stringer("dtr", w.DTRControl).Msg("DTR mode left to driver")
	}

	switch w.RTSControl {
	case RTSEnable, RTSDisable:
		if err := d.port.SetRTS(w.RTSControl == RTSEnable); err != nil {
			return fmt.Errorf("failed to set RTS: %w", err)
		}
	default:
		d.logger.Debug().Stringer("rts", w.RTSControl).Msg("RTS mode left to driver")
	}

	if w.XonOutFlow || w.XonInFlow || w.CTSOutFlow || w.DSROutFlow {
		d.logger.Debug().
			Bool("cts_out", w.CTSOutFlow).
			Bool("dsr_out", w.DSROutFlow).
			Bool("xon_out", w.XonOutFlow).
			Bool("xon_in", w.XonInFlow).
			Msg("flow control left to driver")
	}

	d.wire = w
	return nil
}

// SetTimeouts maps the timeouts onto the port's read timeout.
func (d *Device) SetTimeouts(t Timeouts) error {
	if !d.isOpen {
		return fmt.Errorf("serial port is not open")
	}
	if err := d.port.SetReadTimeout(t.ReadTimeout(ReadBufferSize)); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}
	d.timeouts = t
	return nil
}

// Purge discards everything queued in both directions.
func (d *Device) Purge() error {
	if !d.isOpen {
		return fmt.Errorf("serial port is not open")
	}
	if err := d.port.ResetInputBuffer(); err != nil {
		return NewSerialError("purge", d.name, err)
	}
	if err := d.port.ResetOutputBuffer(); err != nil {
		return NewSerialError("purge", d.name, err)
	}
	return nil
}

// ModemStatus reads the modem input lines.
func (d *Device) ModemStatus() (ModemStatus, error) {
	if !d.isOpen {
		return ModemStatus{}, fmt.Errorf("serial port is not open")
	}
	bits, err := d.port.GetModemStatusBits()
	if err != nil {
		return ModemStatus{}, NewSerialError("modem status", d.name, err)
	}
	return ModemStatus{CTS: bits.CTS, DSR: bits.DSR, Ring: bits.RI, RLSD: bits.DCD}, nil
}

// Name returns the name the port was opened with.
func (d *Device) Name() string {
	return d.name
}

// State returns the current connection state.
func (d *Device) State() ConnectionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Device) setState(s ConnectionState) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Wire returns the configuration last programmed.
func (d *Device) Wire() WireConfig {
	return d.wire
}

func modeFor(w WireConfig) *serial.Mode {
	return &serial.Mode{
		BaudRate: int(w.BaudRate),
		DataBits: int(w.ByteSize),
		Parity:   convertParity(w.Parity),
		StopBits: convertStopBits(w.StopBits),
	}
}

// convertStopBits converts our stop bits format to go.bug.st/serial format
func convertStopBits(stopBits StopBits) serial.StopBits {
	switch stopBits {
	case StopBits1Half:
		return serial.OnePointFiveStopBits
	case StopBits2:
		return serial.TwoStopBits
	default:
		return serial.OneStopBit
	}
}

// convertParity converts our parity format to go.bug.st/serial format
func convertParity(parity Parity) serial.Parity {
	switch parity {
	case ParityOdd:
		return serial.OddParity
	case ParityEven:
		return serial.EvenParity
	case ParityMark:
		return serial.MarkParity
	case ParitySpace:
		return serial.SpaceParity
	default:
		return serial.NoParity
	}
}

// ModemStatus is the state of the modem input lines.
type ModemStatus struct {
	CTS  bool
	DSR  bool
	Ring bool
	RLSD bool
}

// ModemEvents returns the events between two modem status samples that are
// enabled in mask. Ring is reported when the indicator rises; the other
// lines on any change.
func ModemEvents(prev, cur ModemStatus, mask EventMask) EventMask {
	var ev EventMask
	if prev.CTS != cur.CTS {
		ev |= EventCTS
	}
	if prev.DSR != cur.DSR {
		ev |= EventDSR
	}
	if prev.RLSD != cur.RLSD {
		ev |= EventRLSD
	}
	if !prev.Ring && cur.Ring {
		ev |= EventRing
	}
	return ev & mask
}

// RetryConfig defines configuration for connection retry logic
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries"`
	RetryInterval time.Duration `json:"retry_interval"`
	BackoffFactor float64       `json:"backoff_factor"`
	MaxInterval   time.Duration `json:"max_interval"`
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		RetryInterval: time.Second,
		BackoffFactor: 2.0,
		MaxInterval:   time.Second * 10,
	}
}

// Validate checks if the retry configuration is valid
func (r RetryConfig) Validate() error {
	if r.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if r.RetryInterval < 0 {
		return fmt.Errorf("retry interval cannot be negative")
	}
	if r.BackoffFactor < 1.0 {
		return fmt.Errorf("backoff factor must be >= 1.0")
	}
	if r.MaxInterval < r.RetryInterval {
		return fmt.Errorf("max interval cannot be less than retry interval")
	}
	return nil
}

// isRecoverableError determines if an error is recoverable and retry should be attempted
func isRecoverableError(err error) bool {
	if err == nil {
		return false
	}

	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortBusy, serial.PortNotFound:
			return true
		}
	}

	errorStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"device busy",
		"resource temporarily unavailable",
		"timeout",
		"no such device",
	} {
		if strings.Contains(errorStr, pattern) {
			return true
		}
	}
	return false
}
