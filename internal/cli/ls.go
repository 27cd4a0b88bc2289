package cli

import (
	"context"
	"encoding/json"
	"fmt"

	flag "github.com/spf13/pflag"
)

// LsCmd returns the ls command.
func LsCmd(s *session) *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.StringP("query", "q", "", "Only prompts whose title, content or tags contain `text`")
	fs.StringArrayP("tag", "t", nil, "Only prompts with this tag (repeatable, all must match)")
	fs.Bool("json", false, "Print records as JSON")

	return &Command{
		Flags: fs,
		Usage: "ls [flags]",
		Short: "List prompts",
		Long:  "List prompts, most recently updated first.",
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			return execLs(ctx, io, s, fs)
		},
	}
}

func execLs(ctx context.Context, o *IO, s *session, flags *flag.FlagSet) error {
	query, _ := flags.GetString("query")
	tags, _ := flags.GetStringArray("tag")
	asJSON, _ := flags.GetBool("json")

	a, err := s.App(ctx)
	if err != nil {
		return err
	}

	records, err := a.Query(ctx, query, tags)
	if err != nil {
		return err
	}

	if asJSON {
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("encode records: %w", err)
		}

		o.Println(string(data))

		return nil
	}

	for _, rec := range records {
		o.Println(formatRecordLine(rec))
	}

	return nil
}
