package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"comterm/pkg/config"
	"comterm/pkg/serial"
)

func TestNewRunner(t *testing.T) {
	if _, err := NewRunner(RunnerOptions{Profile: config.DefaultProfile(), Retry: serial.DefaultRetryConfig()}); err == nil {
		t.Error("profile without a port should be rejected")
	}
	if _, err := NewRunner(RunnerOptions{Profile: testProfile()}); err == nil {
		t.Error("zero retry settings should be rejected")
	}

	r, err := NewRunner(RunnerOptions{Profile: testProfile(), Retry: serial.DefaultRetryConfig()})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	if r.opts.Out != os.Stdout {
		t.Error("output should default to stdout")
	}
}

func TestRunnerBannerAndSummary(t *testing.T) {
	var out bytes.Buffer
	r, err := NewRunner(RunnerOptions{Profile: testProfile(), Retry: serial.DefaultRetryConfig(), Out: &out})
	if err != nil {
		t.Fatal(err)
	}

	wire := testProfile().Line.ToWireConfig()
	wire.BaudRate = 19200
	r.printBanner(wire)
	r.printSessionSummary(SessionStats{Duration: 1500 * time.Millisecond, BytesSent: 3, BytesRecv: 42}, serial.StateError)

	for _, want := range []string{"Port: COM9", "Settings: 19200 8-N-1", "Port State: error", "Duration: 1.5s", "Bytes Sent: 3", "Bytes Received: 42"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunnerReload(t *testing.T) {
	mgr := config.NewFileConfigManager(t.TempDir())
	saved := testProfile()
	saved.Line.BaudRate = 57600
	saved.Display.LocalEcho = true
	if err := mgr.SaveConfig("bench", saved); err != nil {
		t.Fatal(err)
	}

	r, err := NewRunner(RunnerOptions{
		Profile:     testProfile(),
		ProfileName: "bench",
		Manager:     mgr,
		Retry:       serial.DefaultRetryConfig(),
		Logger:      zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}

	s := newTestSession(t, newFakeDevice())
	l := NewLoop(s, zerolog.Nop())
	if err := r.reload(context.Background(), l); err != nil {
		t.Fatalf("reload() error = %v", err)
	}

	select {
	case cfg := <-l.settings:
		if cfg.BaudRate != 57600 {
			t.Errorf("queued baud = %d, want 57600", cfg.BaudRate)
		}
	default:
		t.Fatal("no settings change queued")
	}
	select {
	case cmd := <-l.commands:
		if err := cmd(s); err != nil {
			t.Fatal(err)
		}
		if !s.Display().LocalEcho {
			t.Error("display settings not reloaded")
		}
	default:
		t.Fatal("no display change queued")
	}
}

func TestRunnerReloadWithoutProfile(t *testing.T) {
	r, err := NewRunner(RunnerOptions{Profile: testProfile(), Retry: serial.DefaultRetryConfig()})
	if err != nil {
		t.Fatal(err)
	}
	l := NewLoop(newTestSession(t, nil), zerolog.Nop())
	if err := r.reload(context.Background(), l); err == nil {
		t.Error("reload() without a saved profile should fail")
	}
}

func TestRunnerLoadMacros(t *testing.T) {
	dir := t.TempDir()
	mgr := config.NewFileConfigManager(dir)
	if err := os.WriteFile(mgr.MacroPath(), []byte("0 hello\n1 41 42\n"), 0644); err != nil {
		t.Fatal(err)
	}
	r := &Runner{opts: RunnerOptions{Manager: mgr, Logger: zerolog.Nop()}}

	bank := r.loadMacros()
	p, err := bank.Payload(1)
	if err != nil {
		t.Fatal(err)
	}
	if string(p) != "AB" {
		t.Errorf("slot 1 payload = %q, want AB", p)
	}
}

func TestRunCapture(t *testing.T) {
	dev := newFakeDevice()
	dev.incoming <- []byte("abc")
	dev.incoming <- []byte{0x00, 0xff}
	close(dev.incoming)

	path := filepath.Join(t.TempDir(), "cap.bin")
	steps := 0
	stats, err := RunCapture(context.Background(), dev, CaptureOptions{
		Profile:    testProfile(),
		Path:       path,
		OnProgress: func(n int) { steps = n },
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("RunCapture() error = %v", err)
	}
	if stats.Bytes != 5 || stats.Writes != 2 {
		t.Errorf("stats = %+v, want 5 bytes in 2 writes", stats)
	}
	if steps != 2 {
		t.Errorf("progress steps = %d, want 2", steps)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "abc\x00\xff" {
		t.Errorf("file = %q", data)
	}
}

func TestRunCaptureReadError(t *testing.T) {
	dev := newFakeDevice()
	dev.readErr = errors.New("device unplugged")
	close(dev.incoming)

	_, err := RunCapture(context.Background(), dev, CaptureOptions{
		Profile: testProfile(),
		Path:    filepath.Join(t.TempDir(), "cap.bin"),
		Logger:  zerolog.Nop(),
	})
	if err == nil || !strings.Contains(err.Error(), "device unplugged") {
		t.Errorf("RunCapture() = %v, want the read error", err)
	}
}

func TestRunCaptureCanceled(t *testing.T) {
	dev := newFakeDevice()
	defer close(dev.incoming)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	stats, err := RunCapture(ctx, dev, CaptureOptions{
		Profile: testProfile(),
		Path:    filepath.Join(t.TempDir(), "cap.bin"),
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("RunCapture() error = %v", err)
	}
	if stats.Bytes != 0 {
		t.Errorf("Bytes = %d, want 0", stats.Bytes)
	}
}

func TestRunCaptureBadPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	dev := newFakeDevice()
	close(dev.incoming)

	if _, err := RunCapture(context.Background(), dev, CaptureOptions{
		Profile: testProfile(),
		Path:    filepath.Join(file, "cap.bin"),
		Logger:  zerolog.Nop(),
	}); err == nil {
		t.Error("RunCapture() into a regular file should fail")
	}
}
