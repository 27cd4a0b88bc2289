package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
)

var errInputAborted = errors.New("input aborted")

// prompter asks for one value at a time.
type prompter interface {
	// Ask shows label and returns the answer. suggestion is the value kept
	// when the answer is empty.
	Ask(label, suggestion string) (string, error)
	Close() error
}

// newPrompter returns an interactive line editor when in is a terminal and
// a plain line reader otherwise.
func newPrompter(in io.Reader, errOut io.Writer) prompter {
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)

		return &linerPrompter{state: state}
	}

	return &linePrompter{scanner: bufio.NewScanner(in), errOut: errOut}
}

type linerPrompter struct {
	state *liner.State
}

func (p *linerPrompter) Ask(label, suggestion string) (string, error) {
	answer, err := p.state.PromptWithSuggestion(label+": ", suggestion, -1)
	if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
		return "", errInputAborted
	}

	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}

	p.state.AppendHistory(answer)

	return strings.TrimSpace(answer), nil
}

func (p *linerPrompter) Close() error {
	return p.state.Close()
}

// linePrompter reads answers line by line. End of input answers every
// remaining question with its suggestion.
type linePrompter struct {
	scanner *bufio.Scanner
	errOut  io.Writer
	done    bool
}

func (p *linePrompter) Ask(label, suggestion string) (string, error) {
	if suggestion != "" {
		_, _ = fmt.Fprintf(p.errOut, "%s [%s]: ", label, suggestion)
	} else {
		_, _ = fmt.Fprintf(p.errOut, "%s: ", label)
	}

	if p.done || !p.scanner.Scan() {
		p.done = true
		_, _ = fmt.Fprintln(p.errOut)

		err := p.scanner.Err()
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}

		return suggestion, nil
	}

	answer := strings.TrimSpace(p.scanner.Text())
	if answer == "" {
		return suggestion, nil
	}

	return answer, nil
}

func (p *linePrompter) Close() error {
	return nil
}
