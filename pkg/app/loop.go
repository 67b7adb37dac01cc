package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"comterm/pkg/config"
	"comterm/pkg/serial"
)

// Command is work run on the loop goroutine with exclusive access to the
// session.
type Command func(s *Session) error

// Loop serialises everything that touches a Session: inbound buffers, user
// commands and line setting changes are applied one at a time.
type Loop struct {
	session  *Session
	inbound  chan []byte
	commands chan Command
	settings chan serial.LineConfig

	report func(error)
	after  func()
	logger zerolog.Logger
}

// NewLoop creates a loop for s. Run must be called to start it.
func NewLoop(s *Session, logger zerolog.Logger) *Loop {
	return &Loop{
		session:  s,
		inbound:  make(chan []byte, 16),
		commands: make(chan Command, 16),
		settings: make(chan serial.LineConfig, 1),
		logger:   logger.With().Str("component", "loop").Logger(),
	}
}

// SetReporter receives every error a buffer, command or settings change
// produces.
func (l *Loop) SetReporter(fn func(error)) { l.report = fn }

// SetAfter registers fn to run on the loop goroutine after each event.
func (l *Loop) SetAfter(fn func()) { l.after = fn }

// Run processes events until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug().Str("session", l.session.ID).Msg("loop started")
	defer l.logger.Debug().Str("session", l.session.ID).Msg("loop stopped")

	for {
		var err error
		select {
		case <-ctx.Done():
			return ctx.Err()
		case buf := <-l.inbound:
			err = l.session.Receive(buf)
		case cmd := <-l.commands:
			err = cmd(l.session)
		case cfg := <-l.settings:
			var changed bool
			changed, err = l.session.ApplyLine(cfg)
			l.logger.Debug().Bool("changed", changed).Msg("line settings")
		}
		l.finish(err)
	}
}

// Drain applies buffers that were delivered but not processed before Run
// returned.
func (l *Loop) Drain() {
	for {
		select {
		case buf := <-l.inbound:
			l.finish(l.session.Receive(buf))
		default:
			return
		}
	}
}

func (l *Loop) finish(err error) {
	if err != nil {
		l.logger.Error().Err(err).Stringer("kind", Classify(err)).Msg("session error")
		if l.report != nil {
			l.report(err)
		}
	}
	if l.after != nil {
		l.after()
	}
}

// Submit queues cmd, blocking until there is room or ctx is done.
func (l *Loop) Submit(ctx context.Context, cmd Command) error {
	select {
	case l.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver queues a received buffer.
func (l *Loop) Deliver(ctx context.Context, buf []byte) error {
	select {
	case l.inbound <- buf:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ApplySettings queues new line settings. A pending change that has not
// been applied yet is replaced.
func (l *Loop) ApplySettings(cfg serial.LineConfig) {
	for {
		select {
		case l.settings <- cfg:
			return
		default:
		}
		select {
		case <-l.settings:
		default:
		}
	}
}

// Pump reads from r and delivers each buffer until ctx is done or the read
// fails. Zero length reads are not delivered.
func (l *Loop) Pump(ctx context.Context, r io.Reader, size int) error {
	buf := make([]byte, size)
	for {
		n, err := r.Read(buf)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("port read failed: %w", err)
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		if err := l.Deliver(ctx, data); err != nil {
			return nil
		}
	}
}

// SendText returns a command that writes text to the port.
func SendText(text []byte) Command {
	return func(s *Session) error { return s.SendText(text) }
}

// SendMacro returns a command that sends a macro slot.
func SendMacro(slot int) Command {
	return func(s *Session) error { return s.SendMacro(slot) }
}

// Clear returns a command that blanks the terminal.
func Clear() Command {
	return func(s *Session) error {
		s.Clear()
		return nil
	}
}

// StartCapture returns a command that starts capturing to path.
func StartCapture(path string) Command {
	return func(s *Session) error { return s.StartCapture(path) }
}

// StopCapture returns a command that stops the capture.
func StopCapture() Command {
	return func(s *Session) error {
		_, err := s.StopCapture()
		return err
	}
}

// SetDisplay returns a command that changes the display flags.
func SetDisplay(d config.DisplaySettings) Command {
	return func(s *Session) error {
		s.SetDisplay(d)
		return nil
	}
}

// Purge returns a command that flushes the port buffers.
func Purge() Command {
	return func(s *Session) error { return s.Purge() }
}

// Disconnect returns a command that marks the port as lost.
func Disconnect(cause error) Command {
	return func(s *Session) error {
		s.Disconnect()
		if cause != nil {
			return NewAppError(ErrorIO, "disconnected", cause)
		}
		return nil
	}
}
