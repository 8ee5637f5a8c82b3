// Package browser opens URLs in the user's default web browser.
package browser

import (
	"os/exec"
	"runtime"
)

// Opener opens a URL for the user.
type Opener interface {
	Open(url string) error
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(url string) error

// Open calls f(url).
func (f OpenerFunc) Open(url string) error {
	return f(url)
}

// System opens URLs with the platform's URL handler.
type System struct {
	goos  string
	start func(name string, args ...string) error
}

// New returns an Opener for the current platform.
func New() *System {
	return &System{
		goos: runtime.GOOS,
		start: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
	}
}

// Open starts the platform URL handler for target without waiting for it.
func (s *System) Open(target string) error {
	name, args := Command(s.goos, target)
	return s.start(name, args...)
}

// Command returns the program and arguments that open target on goos.
func Command(goos, target string) (string, []string) {
	switch goos {
	case "windows":
		return "rundll32.exe", []string{"url.dll,FileProtocolHandler", target}
	case "darwin":
		return "open", []string{target}
	default:
		return "xdg-open", []string{target}
	}
}
