package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// IsInteractive reports whether stdin and stdout are both terminals.
func IsInteractive() bool {
	return isTerminal(int(os.Stdin.Fd())) && isTerminal(int(os.Stdout.Fd()))
}

// Prompter reads answers from the user. One Prompter must be shared by
// everything reading the same input, since it buffers.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a Prompter reading from r and printing to w.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(r), out: w}
}

// Out returns the writer prompts and results are printed to.
func (p *Prompter) Out() io.Writer {
	return p.out
}

// Ask prints prompt and reads one line. The answer is trimmed. If EOF occurs
// after some input was read, the partial line is returned.
func (p *Prompter) Ask(prompt string) (string, error) {
	if _, err := fmt.Fprintf(p.out, "%s: ", prompt); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. Anything but y or yes is a no.
func (p *Prompter) Confirm(prompt string) (bool, error) {
	answer, err := p.Ask(prompt + " [y/N]")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
