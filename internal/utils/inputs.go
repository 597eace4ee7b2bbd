package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrSelectionCancelled is returned when the user cancels a selection.
var ErrSelectionCancelled = errors.New("selection cancelled")

// Prompter asks line-based questions on a terminal or any reader/writer pair.
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(in), out: out}
}

func (p *Prompter) readLine() (string, bool) {
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.scanner.Text()), true
}

// Confirm asks a yes/no question until it gets a valid answer.
// End of input counts as no.
func (p *Prompter) Confirm(question string) bool {
	for {
		_, _ = fmt.Fprintf(p.out, "%s (y/n): ", question)
		answer, ok := p.readLine()
		if !ok {
			return false
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
	}
}

// Choose lists the options, numbered from 1, and returns the index the user
// picked. Entering 0 or closing the input cancels.
func (p *Prompter) Choose(question string, options []string) (int, error) {
	for i, opt := range options {
		_, _ = fmt.Fprintf(p.out, "  %d. %s\n", i+1, opt)
	}
	for {
		_, _ = fmt.Fprintf(p.out, "%s (0 to cancel): ", question)
		answer, ok := p.readLine()
		if !ok {
			return -1, ErrSelectionCancelled
		}
		n, err := strconv.Atoi(answer)
		switch {
		case err != nil:
			_, _ = fmt.Fprintln(p.out, "Please enter a number")
		case n == 0:
			return -1, ErrSelectionCancelled
		case n < 1 || n > len(options):
			_, _ = fmt.Fprintf(p.out, "Please enter a number between 1 and %d\n", len(options))
		default:
			return n - 1, nil
		}
	}
}
