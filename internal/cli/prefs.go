package cli

import (
	"context"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/promptkit/internal/prefs"
)

// PrefsCmd returns the prefs command.
func PrefsCmd(s *session) *Command {
	fs := flag.NewFlagSet("prefs", flag.ContinueOnError)
	fs.Bool("auto-backup", true, "Enable automatic backups")
	fs.Int("threshold", 0, "Number of changes between automatic backups")

	return &Command{
		Flags: fs,
		Usage: "prefs [flags]",
		Short: "Show or change auto-backup preferences",
		Long:  "Show the auto-backup preferences. With flags, change them first.",
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			return execPrefs(ctx, io, s, fs)
		},
	}
}

func execPrefs(ctx context.Context, o *IO, s *session, flags *flag.FlagSet) error {
	a, err := s.App(ctx)
	if err != nil {
		return err
	}

	var (
		enabled   *bool
		threshold *int
	)

	if flags.Changed("auto-backup") {
		v, _ := flags.GetBool("auto-backup")
		enabled = &v
	}

	if flags.Changed("threshold") {
		v, _ := flags.GetInt("threshold")
		threshold = &v
	}

	var p prefs.Preferences

	if enabled != nil || threshold != nil {
		p, err = a.Prefs.SetAutoBackup(ctx, enabled, threshold)
	} else {
		p, err = a.Prefs.Get(ctx)
	}

	if err != nil {
		return err
	}

	o.Println("auto_backup=" + strconv.FormatBool(p.AutoBackupEnabled))
	o.Println("threshold=" + strconv.Itoa(p.AutoBackupThreshold))
	o.Println("changes_since_backup=" + strconv.Itoa(p.ChangeCounter))

	return nil
}
