// Package prompt reads interactive values from the terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Service defines the interface for interactive prompts.
type Service interface {
	Read(label string) (string, error)
	ReadMasked(label string) (string, error)
}

// Impl implements the prompt Service against stdin/stdout.
type Impl struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader

	// readPassword is swappable for testing; defaults to term.ReadPassword.
	readPassword func(fd int) ([]byte, error)
}

// New creates a prompt service bound to stdin and stdout.
func New() *Impl {
	return &Impl{
		in:           os.Stdin,
		out:          os.Stdout,
		reader:       bufio.NewReader(os.Stdin),
		readPassword: term.ReadPassword,
	}
}

// NewWithStreams creates a prompt service with custom streams (for testing).
func NewWithStreams(in io.Reader, out io.Writer) *Impl {
	return &Impl{in: in, out: out, reader: bufio.NewReader(in)}
}

// Read prompts for a value with echo. A single buffered reader is
// shared across calls so consecutive prompts see consecutive lines.
func (p *Impl) Read(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)

	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}

	value := strings.TrimSpace(line)
	if value == "" {
		return "", fmt.Errorf("%s must not be empty", label)
	}
	return value, nil
}

// ReadMasked prompts for a value without echoing it. Falls back to a
// plain read when stdin is not a terminal (piped input, tests).
func (p *Impl) ReadMasked(label string) (string, error) {
	f, ok := p.in.(*os.File)
	if !ok || p.readPassword == nil || !term.IsTerminal(int(f.Fd())) {
		return p.Read(label)
	}

	fmt.Fprintf(p.out, "%s: ", label)
	raw, err := p.readPassword(int(f.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("reading masked input: %w", err)
	}

	value := strings.TrimSpace(string(raw))
	if value == "" {
		return "", fmt.Errorf("%s must not be empty", label)
	}
	return value, nil
}
