package app

import (
	"io"
	"sync"

	"comterm/pkg/config"
	"comterm/pkg/serial"
)

// fakeDevice records everything written and configured. Reads come from
// incoming; closing it ends the stream.
type fakeDevice struct {
	mu        sync.Mutex
	written   []byte
	wire      *serial.WireConfig
	timeouts  *serial.Timeouts
	purges    int
	writeErr  error
	reconfErr error

	incoming chan []byte
	readErr  error
	modem    serial.ModemStatus
	modemErr error
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{incoming: make(chan []byte, 16)}
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	d.written = append(d.written, p...)
	return len(p), nil
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	buf, ok := <-d.incoming
	if !ok {
		if d.readErr != nil {
			return 0, d.readErr
		}
		return 0, io.EOF
	}
	return copy(p, buf), nil
}

func (d *fakeDevice) Reconfigure(w serial.WireConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wire = &w
	return d.reconfErr
}

func (d *fakeDevice) SetTimeouts(t serial.Timeouts) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeouts = &t
	return nil
}

func (d *fakeDevice) Purge() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.purges++
	return nil
}

func (d *fakeDevice) ModemStatus() (serial.ModemStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.modem, d.modemErr
}

func (d *fakeDevice) Name() string {
	return "COM9"
}

func (d *fakeDevice) Written() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.written)
}

func testProfile() config.Profile {
	p := config.DefaultProfile()
	p.Port = "COM9"
	return p
}
