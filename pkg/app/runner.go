package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"comterm/pkg/capture"
	"comterm/pkg/config"
	"comterm/pkg/macro"
	"comterm/pkg/serial"
)

// RunnerOptions configures an interactive session.
type RunnerOptions struct {
	Profile     config.Profile
	ProfileName string
	Manager     *config.FileConfigManager
	CapturePath string
	Retry       serial.RetryConfig
	Logger      zerolog.Logger
	Out         io.Writer
}

// Runner opens the port, runs the interactive application and prints a
// summary when it ends.
type Runner struct {
	opts RunnerOptions
	app  *Application
}

// NewRunner creates a new application runner
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := opts.Profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	if err := opts.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry settings: %w", err)
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Runner{opts: opts}, nil
}

// Run starts the application and blocks until it's stopped. SIGHUP reloads
// the named profile into the running session.
func (r *Runner) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	profile := r.opts.Profile
	device := serial.NewDevice(r.opts.Logger)
	if err := device.OpenWithRetry(ctx, profile.Port, profile.Line, r.opts.Retry); err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	defer device.Close()

	macros := r.loadMacros()

	r.printBanner(device.Wire())

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}

	r.app = NewApplication(screen, device, Options{
		Profile:     profile,
		ProfileName: r.opts.ProfileName,
		Macros:      macros,
		CapturePath: r.opts.CapturePath,
		Logger:      r.opts.Logger,
	})

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go r.watchReload(ctx, hup, r.app.Loop())

	runErr := r.app.Run(ctx)
	screen.Fini()

	r.printSessionSummary(r.app.Session().Stats(), device.State())
	return runErr
}

func (r *Runner) loadMacros() *macro.Bank {
	bank := macro.NewBank()
	if r.opts.Manager == nil {
		return bank
	}
	store := macro.NewFileStore(r.opts.Manager.MacroPath(), r.opts.Logger)
	if err := store.Load(bank); err != nil {
		r.opts.Logger.Warn().Err(err).Str("path", store.Path()).Msg("using empty macros")
	}
	return bank
}

// watchReload pushes the saved profile into the loop on every SIGHUP.
func (r *Runner) watchReload(ctx context.Context, hup <-chan os.Signal, loop *Loop) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := r.reload(ctx, loop); err != nil {
				r.opts.Logger.Error().Err(err).Msg("reload failed")
			}
		}
	}
}

func (r *Runner) reload(ctx context.Context, loop *Loop) error {
	if r.opts.Manager == nil || r.opts.ProfileName == "" {
		return fmt.Errorf("session was not started from a saved profile")
	}
	profile, err := r.opts.Manager.LoadConfig(r.opts.ProfileName)
	if err != nil {
		return err
	}
	r.opts.Logger.Info().Str("profile", r.opts.ProfileName).Msg("reloading profile")
	loop.ApplySettings(profile.Line)
	return loop.Submit(ctx, SetDisplay(profile.Display))
}

// printBanner shows the settings the port was actually programmed with.
func (r *Runner) printBanner(w serial.WireConfig) {
	fmt.Fprintf(r.opts.Out, "\n=== Serial Terminal Session Started ===\n")
	fmt.Fprintf(r.opts.Out, "Port: %s\n", r.opts.Profile.Port)
	fmt.Fprintf(r.opts.Out, "Settings: %d %d-%c-%s\n", w.BaudRate, w.ByteSize, w.Parity, w.StopBits)
	fmt.Fprintf(r.opts.Out, "Press Ctrl+Q to exit, F1 for help, F2 for the menu\n")
	fmt.Fprintf(r.opts.Out, "=====================================\n\n")
}

// printSessionSummary prints a summary of the session
func (r *Runner) printSessionSummary(st SessionStats, state serial.ConnectionState) {
	fmt.Fprintf(r.opts.Out, "\n=== Session Summary ===\n")
	fmt.Fprintf(r.opts.Out, "Port State: %s\n", state)
	fmt.Fprintf(r.opts.Out, "Duration: %v\n", st.Duration.Round(time.Millisecond))
	fmt.Fprintf(r.opts.Out, "Bytes Sent: %d\n", st.BytesSent)
	fmt.Fprintf(r.opts.Out, "Bytes Received: %d\n", st.BytesRecv)
	fmt.Fprintf(r.opts.Out, "=====================\n")
}

// CaptureOptions configures RunCapture.
type CaptureOptions struct {
	Profile    config.Profile
	Path       string
	OnProgress func(steps int)
	OnError    func(error)
	Logger     zerolog.Logger
}

// RunCapture writes everything read from device to a file until ctx is
// done or the device stops returning data. No screen is used.
func RunCapture(ctx context.Context, device Device, opts CaptureOptions) (capture.Stats, error) {
	session := NewSession(opts.Profile, device, nil, opts.Logger)
	session.Progress().SetHook(opts.OnProgress)
	if err := session.StartCapture(opts.Path); err != nil {
		return capture.Stats{}, err
	}

	loop := NewLoop(session, opts.Logger)
	if opts.OnError != nil {
		loop.SetReporter(opts.OnError)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- loop.Pump(ctx, device, serial.ReadBufferSize)
		cancel()
	}()

	_ = loop.Run(ctx)
	loop.Drain()

	var readErr error
	select {
	case readErr = <-done:
	default:
	}

	stats, err := session.StopCapture()
	session.End()
	if readErr != nil {
		return stats, readErr
	}
	return stats, err
}
