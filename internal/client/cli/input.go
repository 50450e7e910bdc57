package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword and isTerminal are test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

type prompter struct {
	reader *bufio.Reader
	w      io.Writer
	fd     int
}

func newPrompter(in io.Reader, w io.Writer) *prompter {
	fd := -1
	if f, ok := in.(*os.File); ok {
		fd = int(f.Fd())
	}
	return &prompter{reader: bufio.NewReader(in), w: w, fd: fd}
}

// line reads one trimmed line. A partial line before EOF is returned as is.
func (p *prompter) line(prompt string) (string, error) {
	if prompt != "" {
		if _, err := fmt.Fprint(p.w, prompt); err != nil {
			return "", err
		}
	}
	line, err := p.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// password reads without echo when input is a terminal.
func (p *prompter) password(prompt string) (string, error) {
	if p.fd < 0 || !isTerminal(p.fd) {
		return p.line(prompt)
	}
	if _, err := fmt.Fprint(p.w, prompt); err != nil {
		return "", err
	}
	pw, err := readPassword(p.fd)
	fmt.Fprintln(p.w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func (p *prompter) confirm(prompt string) bool {
	answer, err := p.line(prompt + " [y/N]: ")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
