package cli

import (
	"context"
	"errors"
	"maps"
	"slices"

	flag "github.com/spf13/pflag"
)

var errClearNeedsID = errors.New("--clear requires a prompt ID")

// VarsCmd returns the vars command.
func VarsCmd(s *session) *Command {
	fs := flag.NewFlagSet("vars", flag.ContinueOnError)
	fs.Bool("clear", false, "Forget the remembered values of the prompt")
	fs.Bool("prune", false, "Forget remembered values of deleted prompts")

	return &Command{
		Flags: fs,
		Usage: "vars [<id>] [flags]",
		Short: "Show or clear remembered values",
		Long: `Show the placeholder values remembered for a prompt as name=value lines.
Without an ID, list the prompts that have remembered values.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execVars(ctx, io, s, fs, args)
		},
	}
}

func execVars(ctx context.Context, o *IO, s *session, flags *flag.FlagSet, args []string) error {
	clearVars, _ := flags.GetBool("clear")
	prune, _ := flags.GetBool("prune")

	if clearVars && len(args) == 0 {
		return errClearNeedsID
	}

	a, err := s.App(ctx)
	if err != nil {
		return err
	}

	if prune {
		pruned, err := a.PruneVars(ctx)
		if err != nil {
			return err
		}

		for _, id := range pruned {
			o.Println("Forgot", id)
		}

		return nil
	}

	if len(args) == 0 {
		ids, err := a.Vars.Cached(ctx)
		if err != nil {
			return err
		}

		for _, id := range ids {
			o.Println(id)
		}

		return nil
	}

	id := args[0]

	if clearVars {
		err = a.Vars.Forget(ctx, id)
		if err != nil {
			return err
		}

		o.Println("Cleared", id)

		return nil
	}

	values, err := a.Vars.Load(ctx, id)
	if err != nil {
		return err
	}

	for _, name := range slices.Sorted(maps.Keys(values)) {
		o.Println(name + "=" + values[name])
	}

	return nil
}
