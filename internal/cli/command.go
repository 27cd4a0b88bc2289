package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one pk subcommand.
type Command struct {
	// Flags holds the command's own flags. It must not be nil.
	Flags *flag.FlagSet

	// Usage follows "pk" in help output and starts with the command name,
	// e.g. "use <id> [flags]".
	Usage string

	// Short is the summary shown in the command list.
	Short string

	// Long replaces Short in "pk <cmd> --help" when set.
	Long string

	// Exec runs with the positional arguments left after flag parsing.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// Name is the first word of Usage.
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// HelpLine is the command's entry in the global usage listing.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-30s %s", c.Usage, c.Short)
}

// PrintHelp writes the command's usage, description and flags to stdout.
func (c *Command) PrintHelp(o *IO) {
	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	o.Printf("Usage: pk %s\n\n%s\n", c.Usage, desc)

	if !c.Flags.HasFlags() {
		return
	}

	var defaults strings.Builder

	c.Flags.SetOutput(&defaults)
	c.Flags.PrintDefaults()
	o.Printf("\nFlags:\n%s", defaults.String())
}

// Run parses args and executes the command, returning the exit code.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{})

	err := c.Flags.Parse(args)

	switch {
	case errors.Is(err, flag.ErrHelp):
		c.PrintHelp(o)

		return 0
	case err != nil:
		o.ErrPrintf("error: %v\n\n", err)
		c.PrintHelp(o)

		return 1
	}

	if err := c.Exec(ctx, o, c.Flags.Args()); err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	return o.Finish()
}
