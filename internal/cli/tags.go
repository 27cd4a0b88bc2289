package cli

import (
	"context"

	flag "github.com/spf13/pflag"
)

// TagsCmd returns the tags command.
func TagsCmd(s *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("tags", flag.ContinueOnError),
		Usage: "tags",
		Short: "List tags in use",
		Long:  "List every tag used by at least one prompt, sorted.",
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			a, err := s.App(ctx)
			if err != nil {
				return err
			}

			tags, err := a.Engine.Tags(ctx)
			if err != nil {
				return err
			}

			for _, tag := range tags {
				io.Println(tag)
			}

			return nil
		},
	}
}
