package macro

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Store persists a bank.
type Store interface {
	Load(b *Bank) error
	Save(b *Bank) error
}

// Read parses the macro file format into b: one record per slot, in slot
// order, each "<0|1> <text>\n". Records with an unknown mode digit or a
// missing separator leave their slot unchanged and are reported in skipped.
// Missing trailing records are not an error.
func Read(r io.Reader, b *Bank) (skipped []int, err error) {
	br := bufio.NewReader(r)

	for i := 0; i < Slots; i++ {
		line, readErr := br.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return skipped, fmt.Errorf("failed to read macro record %d: %w", i, readErr)
		}
		if len(line) == 0 && readErr == io.EOF {
			break
		}

		line = bytes.TrimSuffix(line, []byte{'\n'})
		if len(line) < 2 || line[1] != ' ' || (line[0] != '0' && line[0] != '1') {
			skipped = append(skipped, i)
		} else {
			b.slots[i].Set(string(line[2:]), line[0] == '1')
		}

		if readErr == io.EOF {
			break
		}
	}

	return skipped, nil
}

// Write serializes every slot of b in the macro file format.
func Write(w io.Writer, b *Bank) error {
	bw := bufio.NewWriter(w)
	for i := range b.slots {
		mode := "0 "
		if b.slots[i].hex {
			mode = "1 "
		}
		bw.WriteString(mode)
		bw.WriteString(b.slots[i].text)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// FileStore keeps the bank in a plain text file.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Path returns the macro file location.
func (fs *FileStore) Path() string {
	return fs.path
}

// Load reads the file into b. A missing file leaves b untouched.
func (fs *FileStore) Load(b *Bank) error {
	f, err := os.Open(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fs.logger.Debug().Str("path", fs.path).Msg("macro file not found, using defaults")
			return nil
		}
		return fmt.Errorf("failed to open macro file: %w", err)
	}
	defer f.Close()

	skipped, err := Read(f, b)
	for _, i := range skipped {
		fs.logger.Warn().Str("path", fs.path).Int("slot", i).Msg("skipping malformed macro record")
	}
	return err
}

// Save writes b to the file, replacing it atomically.
func (fs *FileStore) Save(b *Bank) error {
	if dir := filepath.Dir(fs.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create macro directory: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := Write(&buf, b); err != nil {
		return err
	}

	tempPath := fs.path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write temporary macro file: %w", err)
	}
	if err := os.Rename(tempPath, fs.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary macro file: %w", err)
	}

	return nil
}
