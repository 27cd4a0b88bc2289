package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/promptkit/internal/fs"
	"github.com/calvinalkan/promptkit/internal/prompt"
)

var (
	errTitleRequired     = errors.New("title is required")
	errContentConflict   = errors.New("--content and --file cannot be used together")
	errStdinUnavailable  = errors.New("no input available on stdin")
	errUnexpectedArgs    = errors.New("unexpected arguments")
	errIDRequired        = errors.New("prompt ID is required")
	errNothingToUpdate   = errors.New("nothing to update (use --title, --content, --file or --tags)")
	errInvalidAssignment = errors.New("expected name=value")
)

// AddCmd returns the add command.
func AddCmd(s *session) *Command {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.StringP("content", "c", "", "Prompt content")
	fs.StringP("file", "f", "", "Read content from `file` (- for stdin)")
	fs.StringArrayP("tag", "t", nil, "Tag (repeatable)")

	return &Command{
		Flags: fs,
		Usage: "add <title> [flags]",
		Short: "Add a prompt, prints ID",
		Long:  "Add a prompt to the library. Prints the new prompt's ID on success.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execAdd(ctx, io, s, fs, args)
		},
	}
}

func execAdd(ctx context.Context, o *IO, s *session, flags *flag.FlagSet, args []string) error {
	if len(args) == 0 {
		return errTitleRequired
	}

	if len(args) > 1 {
		return fmt.Errorf("%w: %v (quote the title)", errUnexpectedArgs, args[1:])
	}

	a, err := s.App(ctx)
	if err != nil {
		return err
	}

	content, _, err := readContent(o, a.FS, s.cfg.EffectiveCwd, flags)
	if err != nil {
		return err
	}

	tags, _ := flags.GetStringArray("tag")

	rec, err := a.Engine.Create(ctx, prompt.Draft{Title: args[0], Content: content, Tags: tags})
	if err != nil {
		return err
	}

	o.Println(rec.ID)

	return nil
}

// readContent returns the content given by --content or --file and whether
// either flag was set.
func readContent(o *IO, fsys fs.FS, base string, flags *flag.FlagSet) (string, bool, error) {
	content, _ := flags.GetString("content")
	path, _ := flags.GetString("file")

	switch {
	case flags.Changed("content") && flags.Changed("file"):
		return "", false, errContentConflict
	case flags.Changed("content"):
		return content, true, nil
	case !flags.Changed("file"):
		return "", false, nil
	}

	data, err := readInput(o, fsys, base, path)
	if err != nil {
		return "", false, err
	}

	return string(data), true, nil
}

// readInput reads path relative to base, or stdin when path is "-".
func readInput(o *IO, fsys fs.FS, base, path string) ([]byte, error) {
	if path != "-" {
		path = resolvePath(base, path)

		data, err := fsys.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		return data, nil
	}

	if o.In() == nil {
		return nil, errStdinUnavailable
	}

	data, err := io.ReadAll(o.In())
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}

	return data, nil
}

func resolvePath(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(base, path)
}
