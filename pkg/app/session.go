// Package app runs a terminal session: it owns the session state, the event
// loop that mutates it and the tcell front end.
package app

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"comterm/pkg/capture"
	"comterm/pkg/config"
	"comterm/pkg/macro"
	"comterm/pkg/receive"
	"comterm/pkg/serial"
	"comterm/pkg/terminal"
)

// Port is an open serial port as the session uses it.
type Port interface {
	serial.Port
	io.Writer
}

// Session is the state of one connection. Only the Loop goroutine may call
// its methods once the loop is running.
type Session struct {
	ID        string
	PortName  string
	StartTime time.Time
	EndTime   *time.Time

	line      serial.LineConfig
	lineStale bool
	display   config.DisplaySettings
	connected bool
	port      Port

	grid     *terminal.Grid
	pipeline *receive.Pipeline
	macros   *macro.Bank

	capturing bool
	sink      *capture.FileSink
	progress  *capture.Progress

	modem     serial.ModemStatus
	bytesSent int64
	bytesRecv int64

	logger zerolog.Logger
}

// SessionStats summarises a session.
type SessionStats struct {
	Duration  time.Duration
	BytesSent int64
	BytesRecv int64
	Capture   *capture.Stats
}

// NewSession builds a session for profile. A nil port makes a disconnected
// session.
func NewSession(profile config.Profile, port Port, macros *macro.Bank, logger zerolog.Logger) *Session {
	if macros == nil {
		macros = macro.NewBank()
	}
	grid := terminal.NewGrid(profile.Display.Columns, profile.Display.Rows)
	s := &Session{
		ID:        generateSessionID(),
		PortName:  profile.Port,
		StartTime: time.Now(),
		line:      profile.Line,
		connected: port != nil,
		port:      port,
		grid:      grid,
		pipeline:  receive.New(grid, logger),
		macros:    macros,
		progress:  capture.NewProgress(nil),
		logger:    logger.With().Str("component", "session").Logger(),
	}
	s.SetDisplay(profile.Display)
	return s
}

// Receive handles one buffer read from the port.
func (s *Session) Receive(buf []byte) error {
	s.bytesRecv += int64(len(buf))
	mode := receive.ToTerminal
	if s.capturing {
		mode = receive.ToCapture
	}
	return s.pipeline.Dispatch(buf, mode)
}

// SendText writes data to the port, echoing it locally when enabled.
func (s *Session) SendText(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !s.connected {
		return NewAppError(ErrorAnomaly, "not connected", nil)
	}
	return s.send(data)
}

// SendMacro sends the payload of a macro slot. Nothing is sent while
// disconnected or when the slot is empty.
func (s *Session) SendMacro(slot int) error {
	payload, err := s.macros.Payload(slot)
	if err != nil {
		return NewAppError(ErrorAnomaly, "no such macro", err)
	}
	if !s.connected || len(payload) == 0 {
		s.logger.Debug().Int("slot", slot).Bool("connected", s.connected).Int("len", len(payload)).Msg("macro not sent")
		return nil
	}
	return s.send(payload)
}

func (s *Session) send(data []byte) error {
	n, err := s.port.Write(data)
	s.bytesSent += int64(n)
	if err != nil {
		return NewAppError(ErrorIO, "write to port failed", err)
	}
	if s.display.LocalEcho {
		return s.pipeline.Dispatch(data, receive.ToTerminal)
	}
	return nil
}

// Clear blanks the terminal.
func (s *Session) Clear() {
	s.grid.Clear()
}

// StartCapture sends received bytes to path instead of the terminal.
func (s *Session) StartCapture(path string) error {
	if s.capturing {
		return NewAppError(ErrorAnomaly, "capture already running to "+s.sink.Path(), nil)
	}
	sink, err := capture.Create(path)
	if err != nil {
		return NewAppError(ErrorIO, "cannot start capture", err)
	}
	s.sink = sink
	s.progress.Reset()
	s.pipeline.SetCapture(sink, s.progress)
	s.capturing = true
	s.logger.Debug().Str("path", path).Msg("capture started")
	return nil
}

// StopCapture closes the capture file and returns its statistics.
func (s *Session) StopCapture() (capture.Stats, error) {
	if !s.capturing {
		return capture.Stats{}, NewAppError(ErrorAnomaly, "no capture running", nil)
	}
	stats := s.sink.Stats()
	err := s.sink.Close()
	s.pipeline.SetCapture(nil, nil)
	s.capturing = false
	s.sink = nil
	if err != nil {
		return stats, NewAppError(ErrorIO, "capture file did not close cleanly", err)
	}
	s.logger.Debug().Int64("bytes", stats.Bytes).Msg("capture stopped")
	return stats, nil
}

// SetDisplay applies display flags. The grid size is fixed for the life of
// the session, so Columns and Rows are kept from the first call.
func (s *Session) SetDisplay(d config.DisplaySettings) {
	cols, rows := s.grid.Size()
	d.Columns, d.Rows = cols, rows
	s.display = d
	s.grid.SetAutoWrap(d.AutoWrap)
	s.grid.SetNewlineMode(d.NewlineMode)
	s.pipeline.SetOptions(receive.Options{
		DisplayAllHex:          d.DisplayAllHex,
		DisplayNonPrintableHex: d.DisplayNonPrintableHex,
	})
}

// ApplyLine pushes cfg to the port and makes it the session's line
// settings once the port accepts it. It reports false when cfg matches the
// accepted settings, in which case the port is not touched. A rejected push
// keeps the previous settings and marks the port stale, so the next call
// always reaches the port.
func (s *Session) ApplyLine(cfg serial.LineConfig) (bool, error) {
	if cfg.Equal(s.line) && !s.lineStale {
		return false, nil
	}
	if err := cfg.Validate(); err != nil {
		return false, NewAppError(ErrorConfig, "invalid line settings", err)
	}
	var port serial.Port
	if s.port != nil {
		port = s.port
	}
	if err := cfg.ApplyIfConnected(s.connected, port); err != nil {
		// Reconfigure may have gone through before SetTimeouts failed.
		s.lineStale = true
		return true, err
	}
	s.line = cfg
	s.lineStale = false
	return true, nil
}

// Purge drops everything queued in the port.
func (s *Session) Purge() error {
	if !s.connected {
		return NewAppError(ErrorAnomaly, "not connected", nil)
	}
	if err := s.port.Purge(); err != nil {
		return NewAppError(ErrorIO, "purge failed", err)
	}
	return nil
}

// UpdateModem records a modem status sample and returns the events it
// raised that are enabled in the line's event mask.
func (s *Session) UpdateModem(status serial.ModemStatus) serial.EventMask {
	ev := serial.ModemEvents(s.modem, status, s.line.EventMask)
	s.modem = status
	return ev
}

// Disconnect marks the port as gone. Later sends are refused.
func (s *Session) Disconnect() {
	s.connected = false
}

// End stops any capture and stamps the end time.
func (s *Session) End() {
	if s.capturing {
		if _, err := s.StopCapture(); err != nil {
			s.logger.Error().Err(err).Msg("closing capture")
		}
	}
	now := time.Now()
	s.EndTime = &now
}

// Stats returns the byte counts and capture state.
func (s *Session) Stats() SessionStats {
	end := time.Now()
	if s.EndTime != nil {
		end = *s.EndTime
	}
	st := SessionStats{
		Duration:  end.Sub(s.StartTime),
		BytesSent: s.bytesSent,
		BytesRecv: s.bytesRecv,
	}
	if s.capturing {
		cs := s.sink.Stats()
		st.Capture = &cs
	}
	return st
}

func (s *Session) Line() serial.LineConfig {
	return s.line
}

func (s *Session) Display() config.DisplaySettings {
	return s.display
}

// Connected reports whether the port is usable.
func (s *Session) Connected() bool {
	return s.connected
}

// Capturing reports whether received bytes go to the capture file.
func (s *Session) Capturing() bool {
	return s.capturing
}

func (s *Session) Grid() *terminal.Grid {
	return s.grid
}

func (s *Session) Macros() *macro.Bank {
	return s.macros
}

// Progress returns the capture progress counter.
func (s *Session) Progress() *capture.Progress {
	return s.progress
}

// Modem returns the last modem status sample.
func (s *Session) Modem() serial.ModemStatus {
	return s.modem
}

// generateSessionID generates a unique session ID
func generateSessionID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
