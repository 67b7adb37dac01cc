package serial

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

type fakeSerialPort struct {
	mode        *serial.Mode
	dtr, rts    *bool
	readTimeout time.Duration
	status      serial.ModemStatusBits
	resetIn     bool
	resetOut    bool
	closed      bool
	setModeErr  error
	readErr     error
	written     []byte
}

func (p *fakeSerialPort) SetMode(mode *serial.Mode) error {
	if p.setModeErr != nil {
		return p.setModeErr
	}
	p.mode = mode
	return nil
}

func (p *fakeSerialPort) Read(b []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	return copy(b, "ok"), nil
}

func (p *fakeSerialPort) Write(b []byte) (int, error) {
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *fakeSerialPort) Drain() error             { return nil }
func (p *fakeSerialPort) ResetInputBuffer() error  { p.resetIn = true; return nil }
func (p *fakeSerialPort) ResetOutputBuffer() error { p.resetOut = true; return nil }
func (p *fakeSerialPort) SetDTR(dtr bool) error    { p.dtr = &dtr; return nil }
func (p *fakeSerialPort) SetRTS(rts bool) error    { p.rts = &rts; return nil }

func (p *fakeSerialPort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	s := p.status
	return &s, nil
}

func (p *fakeSerialPort) SetReadTimeout(t time.Duration) error {
	p.readTimeout = t
	return nil
}

func (p *fakeSerialPort) Close() error                { p.closed = true; return nil }
func (p *fakeSerialPort) Break(d time.Duration) error { return nil }

func newTestDevice(fake *fakeSerialPort, openErr error) *Device {
	d := NewDevice(zerolog.Nop())
	d.open = func(name string, mode *serial.Mode) (serial.Port, error) {
		if openErr != nil {
			return nil, openErr
		}
		fake.mode = mode
		return fake, nil
	}
	return d
}

func TestDeviceOpen(t *testing.T) {
	fake := &fakeSerialPort{}
	d := newTestDevice(fake, nil)

	cfg := DefaultLineConfig()
	cfg.BaudRate = 115200
	cfg.Parity = ParityEven
	cfg.StopBits = StopBits2
	cfg.DTRControl = DTRDisable

	if err := d.Open("COM3", cfg); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if d.State() != StateConnected || d.Name() != "COM3" {
		t.Errorf("after Open: state=%v name=%q", d.State(), d.Name())
	}
	if fake.mode.BaudRate != 115200 || fake.mode.Parity != serial.EvenParity || fake.mode.StopBits != serial.TwoStopBits {
		t.Errorf("mode = %+v", fake.mode)
	}
	if fake.dtr == nil || *fake.dtr {
		t.Error("DTR should be lowered")
	}
	if fake.rts == nil || !*fake.rts {
		t.Error("RTS should be raised")
	}
	if fake.readTimeout != serial.NoTimeout {
		t.Errorf("read timeout = %v, want NoTimeout", fake.readTimeout)
	}

	if err := d.Open("COM3", cfg); err == nil {
		t.Error("second Open() should fail")
	}
}

func TestDeviceOpenInvalidConfig(t *testing.T) {
	d := newTestDevice(&fakeSerialPort{}, nil)
	cfg := DefaultLineConfig()
	cfg.ByteSize = 12
	if err := d.Open("COM3", cfg); err == nil {
		t.Error("Open() should reject an invalid configuration")
	}
	if err := d.Open("", DefaultLineConfig()); err == nil {
		t.Error("Open() should reject an empty port name")
	}
}

func TestDeviceOpenFailure(t *testing.T) {
	d := newTestDevice(&fakeSerialPort{}, errors.New("access denied"))

	err := d.Open("COM3", DefaultLineConfig())
	var serr *SerialError
	if !errors.As(err, &serr) || serr.Operation != "open" || serr.Port != "COM3" {
		t.Errorf("Open() = %v, want SerialError for open on COM3", err)
	}
	if d.State() != StateError {
		t.Errorf("State() = %v, want error", d.State())
	}
}

func TestDeviceOpenReconfigureFailureCloses(t *testing.T) {
	fake := &fakeSerialPort{setModeErr: errors.New("unsupported baud")}
	d := newTestDevice(fake, nil)

	if err := d.Open("COM3", DefaultLineConfig()); err == nil {
		t.Fatal("Open() should fail when the mode is rejected")
	}
	if !fake.closed || d.State() != StateError {
		t.Error("port should be closed after a failed setup")
	}
}

func TestDeviceReadFailureState(t *testing.T) {
	fake := &fakeSerialPort{}
	d := newTestDevice(fake, nil)
	if err := d.Open("COM3", DefaultLineConfig()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	buf := make([]byte, 8)
	if n, err := d.Read(buf); err != nil || string(buf[:n]) != "ok" {
		t.Fatalf("Read() = %q, %v", buf[:n], err)
	}
	if d.State() != StateConnected {
		t.Errorf("State() = %v after a good read, want connected", d.State())
	}

	fake.readErr = errors.New("device unplugged")
	if _, err := d.Read(buf); err == nil {
		t.Fatal("Read() should fail")
	}
	if d.State() != StateError {
		t.Errorf("State() = %v after a failed read, want error", d.State())
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if d.State() != StateDisconnected {
		t.Errorf("State() = %v after Close, want disconnected", d.State())
	}
}

func TestDeviceClosedOperations(t *testing.T) {
	d := NewDevice(zerolog.Nop())

	if _, err := d.Read(make([]byte, 1)); err == nil {
		t.Error("Read() on closed device should fail")
	}
	if _, err := d.Write([]byte("x")); err == nil {
		t.Error("Write() on closed device should fail")
	}
	if err := d.Reconfigure(WireConfig{}); err == nil {
		t.Error("Reconfigure() on closed device should fail")
	}
	if err := d.Purge(); err == nil {
		t.Error("Purge() on closed device should fail")
	}
	if err := d.Close(); err == nil {
		t.Error("Close() on closed device should fail")
	}
}

func TestDeviceApplyAndPurge(t *testing.T) {
	fake := &fakeSerialPort{}
	d := newTestDevice(fake, nil)
	if err := d.Open("/dev/ttyUSB0", DefaultLineConfig()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	cfg := DefaultLineConfig()
	cfg.BaudRate = 57600
	cfg.StopBits = StopBits1Half
	cfg.Timeouts = Timeouts{ReadTotalConstant: 250}
	if err := cfg.ApplyIfConnected(d.State() == StateConnected, d); err != nil {
		t.Fatalf("ApplyIfConnected() error = %v", err)
	}
	if fake.mode.BaudRate != 57600 || fake.mode.StopBits != serial.OnePointFiveStopBits {
		t.Errorf("mode = %+v", fake.mode)
	}
	if fake.readTimeout != 250*time.Millisecond {
		t.Errorf("read timeout = %v, want 250ms", fake.readTimeout)
	}
	if d.Wire().BaudRate != 57600 {
		t.Errorf("Wire().BaudRate = %d", d.Wire().BaudRate)
	}

	if err := d.Purge(); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if !fake.resetIn || !fake.resetOut {
		t.Error("Purge() should reset both buffers")
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if d.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", d.State())
	}
}

func TestDeviceModemStatus(t *testing.T) {
	fake := &fakeSerialPort{status: serial.ModemStatusBits{CTS: true, DCD: true}}
	d := newTestDevice(fake, nil)
	if err := d.Open("COM1", DefaultLineConfig()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	got, err := d.ModemStatus()
	if err != nil {
		t.Fatalf("ModemStatus() error = %v", err)
	}
	if got != (ModemStatus{CTS: true, RLSD: true}) {
		t.Errorf("ModemStatus() = %+v", got)
	}
}

func TestModemEvents(t *testing.T) {
	tests := []struct {
		name      string
		prev, cur ModemStatus
		mask      EventMask
		want      EventMask
	}{
		{"no change", ModemStatus{CTS: true}, ModemStatus{CTS: true}, DefaultEventMask, 0},
		{"cts drop", ModemStatus{CTS: true}, ModemStatus{}, DefaultEventMask, EventCTS},
		{"masked out", ModemStatus{}, ModemStatus{DSR: true}, EventCTS, 0},
		{"ring rises", ModemStatus{}, ModemStatus{Ring: true}, DefaultEventMask, EventRing},
		{"ring falls", ModemStatus{Ring: true}, ModemStatus{}, DefaultEventMask, 0},
		{"carrier and dsr", ModemStatus{}, ModemStatus{DSR: true, RLSD: true}, DefaultEventMask, EventDSR | EventRLSD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ModemEvents(tt.prev, tt.cur, tt.mask); got != tt.want {
				t.Errorf("ModemEvents() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpenWithRetry(t *testing.T) {
	fake := &fakeSerialPort{}
	attempts := 0
	d := NewDevice(zerolog.Nop())
	d.open = func(name string, mode *serial.Mode) (serial.Port, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("device busy")
		}
		return fake, nil
	}

	retry := RetryConfig{MaxRetries: 3, RetryInterval: time.Millisecond, BackoffFactor: 1, MaxInterval: time.Millisecond}
	if err := d.OpenWithRetry(context.Background(), "COM4", DefaultLineConfig(), retry); err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestOpenWithRetryGivesUp(t *testing.T) {
	attempts := 0
	d := NewDevice(zerolog.Nop())
	d.open = func(name string, mode *serial.Mode) (serial.Port, error) {
		attempts++
		return nil, errors.New("permission denied")
	}

	retry := RetryConfig{MaxRetries: 5, RetryInterval: time.Millisecond, BackoffFactor: 1, MaxInterval: time.Millisecond}
	if err := d.OpenWithRetry(context.Background(), "COM4", DefaultLineConfig(), retry); err == nil {
		t.Fatal("OpenWithRetry() should fail")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 for a non-recoverable error", attempts)
	}
	if d.State() != StateError {
		t.Errorf("State() = %v, want error", d.State())
	}
}

func TestRetryConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  RetryConfig
		wantErr bool
	}{
		{"default", DefaultRetryConfig(), false},
		{"negative retries", RetryConfig{MaxRetries: -1, BackoffFactor: 1}, true},
		{"backoff below one", RetryConfig{BackoffFactor: 0.5}, true},
		{"max below interval", RetryConfig{RetryInterval: time.Second, BackoffFactor: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
