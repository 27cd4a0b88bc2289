// Package cli implements the pk command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/promptkit/internal/app"
	"github.com/calvinalkan/promptkit/internal/config"
	"github.com/calvinalkan/promptkit/internal/logger"
	"github.com/calvinalkan/promptkit/internal/metrics"
)

// Run is the main entry point. Returns exit code.
//
// A signal on sigCh cancels the context passed to the running command.
// sigCh may be nil.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globals := flag.NewFlagSet("pk", flag.ContinueOnError)
	globals.SetInterspersed(false)
	globals.SetOutput(&strings.Builder{})

	workDir := globals.StringP("cwd", "C", "", "Run as if started in `dir`")
	configPath := globals.StringP("config", "c", "", "Use specified config `file`")
	dataDir := globals.String("data-dir", "", "Override the data `dir`")
	logLevel := globals.String("log-level", "", "Override the log `level` (debug|info|warn|error|off)")

	if len(args) > 0 {
		args = args[1:]
	}

	err := globals.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(out, globals, nil)

			return 0
		}

		fprintln(errOut, "error:", err)
		printUsage(errOut, globals, nil)

		return 1
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: *workDir,
		ConfigPath:      *configPath,
		DataDirOverride: *dataDir,
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	if *logLevel != "" {
		_, err = logger.ParseLevel(*logLevel)
		if err != nil {
			fprintln(errOut, "error:", err)

			return 1
		}

		cfg.LogLevel = *logLevel
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: errOut})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	s := &session{cfg: cfg, log: log}
	commands := allCommands(s)

	rest := globals.Args()
	if len(rest) == 0 {
		printUsage(out, globals, commands)

		return 0
	}

	name := rest[0]
	if name == "help" {
		printUsage(out, globals, commands)

		return 0
	}

	var cmd *Command

	for _, c := range commands {
		if c.Name() == name {
			cmd = c

			break
		}
	}

	if cmd == nil {
		fprintln(errOut, "error: unknown command:", name)
		printUsage(errOut, globals, commands)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case sig := <-sigCh:
				log.Debug().Str("signal", sig.String()).Msg("interrupted")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	code := cmd.Run(ctx, NewIO(in, out, errOut), rest[1:])

	err = s.Close()
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	return code
}

// session opens the app on first use so that help output and
// print-config never touch the data directory.
type session struct {
	cfg config.Config
	log zerolog.Logger

	// processMetrics adds Go runtime and process collectors.
	processMetrics bool

	app *app.App
}

// App returns the opened app.
func (s *session) App(ctx context.Context) (*app.App, error) {
	if s.app != nil {
		return s.app, nil
	}

	a, err := app.Open(ctx, s.cfg, s.log, app.Options{Metrics: metrics.New(s.processMetrics)})
	if err != nil {
		return nil, fmt.Errorf("open data dir: %w", err)
	}

	s.app = a

	return a, nil
}

// Close closes the app if it was opened.
func (s *session) Close() error {
	if s.app == nil {
		return nil
	}

	err := s.app.Close()
	s.app = nil

	return err
}

func allCommands(s *session) []*Command {
	return []*Command{
		AddCmd(s),
		EditCmd(s),
		RmCmd(s),
		ShowCmd(s),
		LsCmd(s),
		TagsCmd(s),
		UseCmd(s),
		VarsCmd(s),
		ImportCmd(s),
		ExportCmd(s),
		BackupCmd(s),
		PrefsCmd(s),
		ServeCmd(s),
		PrintConfigCmd(&s.cfg),
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, globals *flag.FlagSet, commands []*Command) {
	fprintln(w, `pk - prompt library with templates and backups

Usage: pk [options] <command> [args]

Options:`)
	fprintln(w, strings.TrimRight(globals.FlagUsages(), "\n"))

	if len(commands) == 0 {
		return
	}

	fprintln(w)
	fprintln(w, "Commands:")

	for _, c := range commands {
		fprintln(w, c.HelpLine())
	}

	fprintln(w)
	fprintln(w, "Run 'pk <command> --help' for command flags.")
}
