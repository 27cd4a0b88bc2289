package cli

import (
	"context"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/promptkit/internal/config"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg *config.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execPrintConfig(io, cfg)
		},
	}
}

func execPrintConfig(io *IO, cfg *config.Config) error {
	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("data_dir=" + cfg.DataDirAbs)
	io.Println("db_path=" + cfg.DBPath())
	io.Println("backup_dir=" + cfg.BackupDirAbs)
	io.Println("log_level=" + cfg.LogLevel)
	io.Println("log_format=" + cfg.LogFormat)
	io.Println("listen=" + cfg.Listen)

	if cfg.MetricsFile != "" {
		io.Println("metrics_file=" + cfg.MetricsFile)
	}

	if cfg.QuotaBytes > 0 {
		io.Println("quota_bytes=" + strconv.FormatInt(cfg.QuotaBytes, 10))
	}

	io.Println("")
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
