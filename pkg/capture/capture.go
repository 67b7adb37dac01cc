// Package capture writes received bytes to a file.
package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Stats describes a capture in progress or just finished.
type Stats struct {
	Path      string        `json:"path"`
	Bytes     int64         `json:"bytes"`
	Writes    int           `json:"writes"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// FileSink writes captured bytes verbatim to a file. It is not safe for
// concurrent use; the session loop owns it.
type FileSink struct {
	file    *os.File
	path    string
	bytes   int64
	writes  int
	started time.Time
	closed  bool
}

// Create truncates or creates path and returns a sink writing to it.
func Create(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create capture directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}
	return &FileSink{file: file, path: path, started: time.Now()}, nil
}

// Write appends p to the file. The count reflects what reached the file even
// when the write fails part way.
func (s *FileSink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, os.ErrClosed
	}
	n, err := s.file.Write(p)
	s.bytes += int64(n)
	s.writes++
	return n, err
}

// Close flushes and closes the file.
func (s *FileSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to flush capture file: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("failed to close capture file: %w", err)
	}
	return nil
}

// Path returns the file being written.
func (s *FileSink) Path() string {
	return s.path
}

// Stats returns the byte and write counts so far.
func (s *FileSink) Stats() Stats {
	return Stats{
		Path:      s.path,
		Bytes:     s.bytes,
		Writes:    s.writes,
		StartedAt: s.started,
		Duration:  time.Since(s.started),
	}
}

// Progress counts completed capture writes. Like FileSink it belongs to the
// session loop, and the hook runs on that goroutine.
type Progress struct {
	steps int
	hook  func(steps int)
}

// NewProgress returns a counter that calls hook after every step. hook may
// be nil.
func NewProgress(hook func(steps int)) *Progress {
	return &Progress{hook: hook}
}

// SetHook replaces the hook called after every step.
func (p *Progress) SetHook(hook func(steps int)) {
	p.hook = hook
}

// Step records one completed write.
func (p *Progress) Step() {
	p.steps++
	if p.hook != nil {
		p.hook(p.steps)
	}
}

// Steps returns the number of steps so far.
func (p *Progress) Steps() int {
	return p.steps
}

// Reset zeroes the counter.
func (p *Progress) Reset() {
	p.steps = 0
}

// FormatBytes formats a byte count for status lines.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
