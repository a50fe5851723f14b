package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// errInputClosed reports that stdin ended before the interview did.
var errInputClosed = errors.New("input closed")

// prompter reads one answer per line. Prompts are only printed when stdin is a
// terminal so piped transcripts produce clean output.
type prompter struct {
	scanner     *bufio.Scanner
	out         io.Writer
	interactive bool
}

func newPrompter() *prompter {
	p := newPrompterFrom(os.Stdin, os.Stdout)
	p.interactive = term.IsTerminal(int(os.Stdin.Fd()))
	return p
}

func newPrompterFrom(in io.Reader, out io.Writer) *prompter {
	return &prompter{scanner: bufio.NewScanner(in), out: out}
}

// ask prints prompt and returns the trimmed next line.
func (p *prompter) ask(prompt string) (string, error) {
	if p.interactive {
		fmt.Fprint(p.out, prompt)
	}
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return "", errInputClosed
	}
	line := strings.TrimSpace(p.scanner.Text())
	if !p.interactive {
		fmt.Fprintf(p.out, "%s%s\n", prompt, line)
	}
	return line, nil
}
