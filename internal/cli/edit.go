package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/promptkit/internal/prompt"
)

// EditCmd returns the edit command.
func EditCmd(s *session) *Command {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.String("title", "", "New title")
	fs.StringP("content", "c", "", "New content")
	fs.StringP("file", "f", "", "Read new content from `file` (- for stdin)")
	fs.StringSlice("tags", nil, "Replace tags (comma separated, empty to clear)")

	return &Command{
		Flags: fs,
		Usage: "edit <id> [flags]",
		Short: "Change a prompt",
		Long:  "Change the title, content or tags of a prompt. Fields without a flag keep their value.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execEdit(ctx, io, s, fs, args)
		},
	}
}

func execEdit(ctx context.Context, o *IO, s *session, flags *flag.FlagSet, args []string) error {
	if len(args) == 0 {
		return errIDRequired
	}

	var patch prompt.Patch

	if flags.Changed("title") {
		title, _ := flags.GetString("title")
		patch.Title = &title
	}

	if flags.Changed("tags") {
		tags, _ := flags.GetStringSlice("tags")
		patch.Tags = &tags
	}

	a, err := s.App(ctx)
	if err != nil {
		return err
	}

	content, ok, err := readContent(o, a.FS, s.cfg.EffectiveCwd, flags)
	if err != nil {
		return err
	}

	if ok {
		patch.Content = &content
	}

	if patch.Empty() {
		return errNothingToUpdate
	}

	rec, err := a.Engine.Update(ctx, args[0], patch)
	if err != nil {
		return err
	}

	o.Println("Updated", rec.ID)

	return nil
}
