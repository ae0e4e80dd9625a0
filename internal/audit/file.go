package audit

import (
	"context"
	"fmt"
	"os"
)

// FileSink appends changelog lines to a text file. The file is opened,
// appended to, and closed around each write so a crashed run cannot leave a
// handle open or corrupt more than a possibly-truncated last line.
type FileSink struct {
	path string
}

// NewFileSink returns a file-backed sink writing to path.
func NewFileSink(path string) *FileSink {
	if path == "" {
		path = "changelog.txt"
	}
	return &FileSink{path: path}
}

// Path returns the configured changelog path.
func (s *FileSink) Path() string { return s.path }

// Append writes one formatted line.
func (s *FileSink) Append(_ context.Context, e Entry) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open changelog: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(FormatLine(e)); err != nil {
		return fmt.Errorf("append changelog: %w", err)
	}
	return nil
}

// Close is a no-op; the file is never held open between writes.
func (s *FileSink) Close() error { return nil }
