// Package clipboard copies text to the system clipboard.
package clipboard

import (
	"errors"

	system "github.com/atotto/clipboard"
)

// ErrUnsupported is returned when no clipboard utility is available, for
// example on a headless Linux host without xclip, xsel or wl-copy.
var ErrUnsupported = errors.New("clipboard is not supported on this system")

// Writer copies text for the user.
type Writer interface {
	WriteAll(text string) error
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(text string) error

// WriteAll calls f(text).
func (f WriterFunc) WriteAll(text string) error {
	return f(text)
}

// System writes to the platform clipboard.
type System struct {
	unsupported bool
	write       func(text string) error
}

// New returns a Writer for the current platform.
func New() *System {
	return &System{
		unsupported: system.Unsupported,
		write:       system.WriteAll,
	}
}

// WriteAll replaces the clipboard content with text.
func (s *System) WriteAll(text string) error {
	if s.unsupported {
		return ErrUnsupported
	}
	return s.write(text)
}
