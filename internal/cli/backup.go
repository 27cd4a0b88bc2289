package cli

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/promptkit/internal/prompt"
)

var (
	errBackupAction  = errors.New("backup action is required (save|list|download|restore)")
	errBackupIDFirst = errors.New("backup ID is required")
)

// BackupCmd returns the backup command.
func BackupCmd(s *session) *Command {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	fs.String("mode", string(prompt.ModeMerge), "Restore mode: merge or replace")

	return &Command{
		Flags: fs,
		Usage: "backup <action> [flags]",
		Short: "Save, list, download or restore backups",
		Long: `Manage backups.

Actions:
  save            Keep a snapshot in the local ring (the newest 3 are kept)
  list            List the snapshots in the ring, newest first
  download        Write a backup file to the backup directory
  restore <id>    Merge a snapshot back into the library (--mode replace to overwrite)`,
		Exec: func(ctx context.Context, io *IO, args []string) error {
			return execBackup(ctx, io, s, fs, args)
		},
	}
}

func execBackup(ctx context.Context, o *IO, s *session, flags *flag.FlagSet, args []string) error {
	if len(args) == 0 {
		return errBackupAction
	}

	a, err := s.App(ctx)
	if err != nil {
		return err
	}

	switch args[0] {
	case "save":
		b, err := a.Backups.SaveLocal(ctx)
		if err != nil {
			return err
		}

		o.Printf("Saved backup %s (%d prompts)\n", b.ID, b.Count())
	case "list":
		ring, err := a.Backups.List(ctx)
		if err != nil {
			return err
		}

		for _, b := range ring {
			o.Printf("%s  %s  %d prompts\n", b.ID, b.Time().Local().Format(timeLayout), b.Count())
		}
	case "download":
		path, err := a.Backups.Download(ctx)
		if err != nil {
			return err
		}

		o.Println(path)
	case "restore":
		if len(args) < 2 {
			return errBackupIDFirst
		}

		modeName, _ := flags.GetString("mode")

		mode, err := prompt.ParseMergeMode(modeName)
		if err != nil {
			return err
		}

		res, err := a.Backups.Restore(ctx, args[1], mode)
		if err != nil {
			return err
		}

		o.Printf("Restored %d prompts (%d skipped)\n", res.Created, res.Skipped)

		for _, e := range res.Errors {
			o.Warn(e, "the item was left out of the restore")
		}
	default:
		return fmt.Errorf("%w: unknown action %q", errBackupAction, args[0])
	}

	return nil
}
