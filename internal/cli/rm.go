package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// RmCmd returns the rm command.
func RmCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("rm", flag.ContinueOnError),
		Usage: "rm <id>...",
		Short: "Delete prompts",
		Long:  "Delete one or more prompts. Remembered placeholder values are kept; use 'pk vars <id> --clear' to drop them.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execRm(ctx, io, s, args)
		},
	}
}

func execRm(ctx context.Context, o *IO, s *session, args []string) error {
	if len(args) == 0 {
		return errIDRequired
	}

	a, err := s.App(ctx)
	if err != nil {
		return err
	}

	for _, id := range args {
		err = a.Engine.Delete(ctx, id)
		if err != nil {
			return err
		}

		o.Println("Deleted", id)
	}

	return nil
}
