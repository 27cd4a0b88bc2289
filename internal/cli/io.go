package cli

import (
	"fmt"
	"io"
)

// IO is what a command reads from and writes to.
//
// Commands report recoverable problems with [IO.Warn] instead of failing:
// the output they produce is still printed, and the warnings are repeated
// on stderr before the first line of output and again at the end, so they
// survive a pipe through head or tail. Any warning turns the exit code to 1.
type IO struct {
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	warnings []string
	shown    bool
}

// NewIO returns an IO over the given streams. in may be nil.
func NewIO(in io.Reader, out, errOut io.Writer) *IO {
	return &IO{in: in, out: out, errOut: errOut}
}

// Warn records issue together with the action that resolves it.
func (o *IO) Warn(issue, action string) {
	o.warnings = append(o.warnings, issue+": "+action)
}

// In returns stdin, or nil when there is none.
func (o *IO) In() io.Reader { return o.in }

// Out returns stdout.
func (o *IO) Out() io.Writer { return o.out }

// Println writes a line to stdout.
func (o *IO) Println(a ...any) {
	o.showWarningsOnce()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes to stdout.
func (o *IO) Printf(format string, a ...any) {
	o.showWarningsOnce()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes a line to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// ErrPrintf writes to stderr.
func (o *IO) ErrPrintf(format string, a ...any) {
	_, _ = fmt.Fprintf(o.errOut, format, a...)
}

// Finish repeats the warnings and returns the exit code of a command that
// did not fail.
func (o *IO) Finish() int {
	if len(o.warnings) == 0 {
		return 0
	}

	o.showWarningsOnce()
	o.printWarnings()

	return 1
}

func (o *IO) showWarningsOnce() {
	if o.shown || len(o.warnings) == 0 {
		return
	}

	o.shown = true
	o.printWarnings()
}

func (o *IO) printWarnings() {
	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}
}
