package cli

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/promptkit/internal/prompt"
	"github.com/calvinalkan/promptkit/internal/transfer"
)

var errFileRequired = errors.New("file is required (use - for stdin)")

// ImportCmd returns the import command.
func ImportCmd(s *session) *Command {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.String("mode", string(prompt.ModeMerge), "merge keeps existing prompts, replace drops them first")

	return &Command{
		Flags: fs,
		Usage: "import <file|-> [flags]",
		Short: "Import prompts from a JSON export",
		Long: `Import prompts from a JSON export or backup file.

Items that fail validation are skipped and reported. In merge mode, prompts
whose title and content match an existing prompt are skipped too.`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execImport(ctx, io, s, fs, args)
		},
	}
}

func execImport(ctx context.Context, o *IO, s *session, flags *flag.FlagSet, args []string) error {
	if len(args) == 0 {
		return errFileRequired
	}

	modeName, _ := flags.GetString("mode")

	mode, err := prompt.ParseMergeMode(modeName)
	if err != nil {
		return err
	}

	a, err := s.App(ctx)
	if err != nil {
		return err
	}

	data, err := readInput(o, a.FS, s.cfg.EffectiveCwd, args[0])
	if err != nil {
		return err
	}

	res, err := a.Import(ctx, data, mode)
	if err != nil {
		return err
	}

	o.Printf("Imported %d of %d prompts (%d skipped)\n", res.Created, res.Total, res.Skipped)

	for _, e := range res.Errors {
		o.Warn(e, "fix the item in the file and import again")
	}

	return nil
}

// ExportCmd returns the export command.
func ExportCmd(s *session) *Command {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.String("format", string(transfer.FormatJSON), "Export format (json|md)")
	fs.StringP("output", "o", "", "Write to `file` instead of stdout (a directory gets a dated file name)")

	return &Command{
		Flags: fs,
		Usage: "export [flags]",
		Short: "Export all prompts",
		Long:  "Export all prompts as JSON (re-importable) or Markdown.",
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			return execExport(ctx, io, s, fs)
		},
	}
}

func execExport(ctx context.Context, o *IO, s *session, flags *flag.FlagSet) error {
	formatName, _ := flags.GetString("format")
	output, _ := flags.GetString("output")

	format, err := transfer.ParseFormat(formatName)
	if err != nil {
		return err
	}

	a, err := s.App(ctx)
	if err != nil {
		return err
	}

	data, name, err := a.Export(ctx, format)
	if err != nil {
		return err
	}

	if output == "" || output == "-" {
		o.Printf("%s", data)

		return nil
	}

	path := resolvePath(s.cfg.EffectiveCwd, output)

	if _, dirErr := a.FS.ReadDir(path); dirErr == nil {
		path = resolvePath(path, name)
	}

	err = a.FS.WriteFileAtomic(path, data, 0o600)
	if err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	o.Println(path)

	return nil
}
