package session

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/cleanab-dev/cleanab/internal/banking"
)

// Presenter shows multi-factor challenges and selection prompts to the
// user and collects the answers. Implementations may block on human
// input; the manager holds the global lock while they do.
type Presenter interface {
	// Present renders a challenge and returns the entered TAN.
	Present(ch *banking.Challenge) (string, error)

	// Choose asks the user to pick one of options and returns its
	// index.
	Choose(label string, options []string) (int, error)
}

// Terminal is the interactive Presenter used by the CLI.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	log *log.Logger
}

// NewTerminal creates a Terminal reading answers from in.
func NewTerminal(in io.Reader, out io.Writer, logger *log.Logger) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out, log: logger}
}

// Present renders the challenge according to its kind and prompts for
// the TAN.
func (t *Terminal) Present(ch *banking.Challenge) (string, error) {
	if ch.Text != "" {
		t.log.Info("TAN needed", "challenge", ch.Text)
	}

	switch ch.Kind() {
	case banking.ChallengeFlicker:
		t.log.Info("Please use your TAN generator to read the code")
		fmt.Fprintln(t.out, renderFlicker(ch.HHDUC))
	case banking.ChallengeMatrix:
		path, err := writeMatrixImage(ch)
		if err != nil {
			t.log.Error("could not save challenge image", "err", err)
		} else {
			t.log.Info("Please scan the challenge image with your banking app", "file", path)
		}
	}

	return t.readLine("Please enter the TAN: ")
}

// Choose prints the numbered options and reads an index.
func (t *Terminal) Choose(label string, options []string) (int, error) {
	t.log.Info(label)
	for i, opt := range options {
		fmt.Fprintf(t.out, "%2d  %s\n", i, opt)
	}
	answer, err := t.readLine("Choice: ")
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(answer)
	if err != nil || i < 0 || i >= len(options) {
		return 0, fmt.Errorf("invalid choice %q", answer)
	}
	return i, nil
}

func (t *Terminal) readLine(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// renderFlicker turns an HHD 1.3 payload into a coarse bar preview so
// users without a flicker-capable terminal can at least transcribe the
// code into their generator manually.
func renderFlicker(hhduc string) string {
	var b strings.Builder
	b.WriteString("Flicker code: ")
	b.WriteString(hhduc)
	b.WriteString("\n")
	for _, r := range hhduc {
		if r%2 == 0 {
			b.WriteString("█")
		} else {
			b.WriteString("░")
		}
	}
	return b.String()
}

// writeMatrixImage stores the matrix challenge in a temp file for the
// user to open.
func writeMatrixImage(ch *banking.Challenge) (string, error) {
	ext := ".png"
	if strings.Contains(ch.MatrixMIME, "jpeg") {
		ext = ".jpg"
	}
	f, err := os.CreateTemp("", "cleanab-tan-*"+ext)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(ch.Matrix); err != nil {
		return "", err
	}
	return f.Name(), nil
}
