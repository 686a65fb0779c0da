// Package terminal provides utilities for terminal operations such as clearing text.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"
)

// DefaultWidth is used when the terminal width cannot be determined.
const DefaultWidth = 80

// Width returns the width of the terminal on stdout.
func Width() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return DefaultWidth
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ClearPreviousLines clears text from the terminal that was previously printed.
// It calculates how many lines were used by the provided text based on the current
// terminal width, then moves up and clears each line.
//
// This is useful for cleaning up user input prompts after they've been entered,
// so a typed DSN does not stay on screen.
func ClearPreviousLines(textLength int) {
	clearLines(os.Stdout, linesToClear(textLength, Width()))
}

// linesToClear returns how many lines text of textLength occupied at width,
// plus the empty line the cursor sits on after Enter.
func linesToClear(textLength, width int) int {
	if width <= 0 {
		width = DefaultWidth
	}
	total := int(math.Ceil(float64(textLength) / float64(width)))
	if total < 1 {
		total = 1
	}
	return total + 1
}

func clearLines(w io.Writer, n int) {
	for i := 0; i < n; i++ {
		fmt.Fprint(w, "\r\x1b[2K") // start of line, clear it
		if i < n-1 {
			fmt.Fprint(w, "\x1b[1A") // up one line
		}
	}
}

// ReadSecret reads a line from a terminal without echo. Non-terminal input is
// read as a plain line.
func ReadSecret(f *os.File, prompt string) (string, error) {
	if !IsInteractive(f) {
		line, err := bufio.NewReader(f).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	fmt.Fprint(os.Stdout, prompt)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(os.Stdout)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
