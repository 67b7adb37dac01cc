// Package receive routes buffers read from the port to the terminal grid or
// to the capture file.
package receive

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"comterm/pkg/macro"
)

// Mode selects where a buffer goes.
type Mode int

const (
	ToTerminal Mode = iota
	ToCapture
)

func (m Mode) String() string {
	switch m {
	case ToTerminal:
		return "terminal"
	case ToCapture:
		return "capture"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Terminal receives display bytes one at a time.
type Terminal interface {
	PutChar(c byte)
}

// Progress is stepped once per completed capture write.
type Progress interface {
	Step()
}

// Options controls how bytes are shown on the terminal.
type Options struct {
	DisplayAllHex          bool
	DisplayNonPrintableHex bool
}

// CaptureError reports a capture write that failed or came up short.
type CaptureError struct {
	Written int
	Want    int
	Err     error
}

func (e *CaptureError) Error() string {
	if errors.Is(e.Err, io.ErrShortWrite) {
		return fmt.Sprintf("capture write incomplete: wrote %d of %d bytes", e.Written, e.Want)
	}
	return fmt.Sprintf("capture write failed: %v", e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Pipeline dispatches received buffers. It is not safe for concurrent use;
// the session loop owns it.
type Pipeline struct {
	term     Terminal
	opts     Options
	sink     io.Writer
	progress Progress
	logger   zerolog.Logger
	scratch  []byte
}

// New returns a pipeline drawing on term.
func New(term Terminal, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		term:   term,
		logger: logger.With().Str("component", "receive").Logger(),
	}
}

// SetOptions changes the display transform for later buffers.
func (p *Pipeline) SetOptions(opts Options) {
	p.opts = opts
}

// Options returns the current display options.
func (p *Pipeline) Options() Options {
	return p.opts
}

// SetCapture sets the capture destination. A nil sink detaches it.
func (p *Pipeline) SetCapture(sink io.Writer, progress Progress) {
	p.sink = sink
	p.progress = progress
}

// Dispatch hands buf to the terminal or the capture sink. An empty buffer
// is logged and ignored. Capture writes are all or nothing: a failed or
// short write returns a *CaptureError and does not step progress.
func (p *Pipeline) Dispatch(buf []byte, mode Mode) error {
	if len(buf) == 0 {
		p.logger.Warn().Stringer("mode", mode).Msg("empty receive buffer")
		return nil
	}

	switch mode {
	case ToTerminal:
		p.scratch = AppendTransform(p.scratch[:0], buf, p.opts)
		for _, c := range p.scratch {
			p.term.PutChar(c)
		}
	case ToCapture:
		return p.capture(buf)
	default:
		p.logger.Warn().Stringer("mode", mode).Int("bytes", len(buf)).Msg("unknown dispatch mode")
	}
	return nil
}

func (p *Pipeline) capture(buf []byte) error {
	if p.sink == nil {
		return &CaptureError{Want: len(buf), Err: fmt.Errorf("no capture file open")}
	}

	n, err := p.sink.Write(buf)
	if err == nil && n != len(buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		p.logger.Error().Err(err).Int("written", n).Int("want", len(buf)).Msg("capture write failed")
		return &CaptureError{Written: n, Want: len(buf), Err: err}
	}

	if p.progress != nil {
		p.progress.Step()
	}
	return nil
}

// AppendTransform appends the display form of buf to dst. All-hex wins
// when both options are set.
func AppendTransform(dst, buf []byte, opts Options) []byte {
	switch {
	case opts.DisplayAllHex:
		for _, b := range buf {
			dst = macro.AppendHex(dst, b)
		}
	case opts.DisplayNonPrintableHex:
		for _, b := range buf {
			if b >= 0x20 && b <= 0x7e {
				dst = append(dst, b)
				continue
			}
			dst = append(dst, '<')
			dst = macro.AppendHex(dst, b)
			dst = append(dst, '>')
		}
	default:
		dst = append(dst, buf...)
	}
	return dst
}
