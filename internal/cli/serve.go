package cli

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/promptkit/internal/fs"
	"github.com/calvinalkan/promptkit/internal/httpapi"
)

const serveLockName = "serve.lock"

// ServeCmd returns the serve command.
func ServeCmd(s *session) *Command {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.String("listen", "", "Listen `address` (loopback only) [default: config listen]")

	return &Command{
		Flags: fs,
		Usage: "serve [flags]",
		Short: "Serve the JSON API on localhost",
		Long:  "Serve the prompt library as a JSON API with Prometheus metrics at /metrics. Stops on interrupt.",
		Exec: func(ctx context.Context, io *IO, _ []string) error {
			return execServe(ctx, io, s, fs)
		},
	}
}

func execServe(ctx context.Context, o *IO, s *session, flags *flag.FlagSet) error {
	addr, _ := flags.GetString("listen")
	if addr == "" {
		addr = s.cfg.Listen
	}

	err := httpapi.CheckLoopback(addr)
	if err != nil {
		return err
	}

	s.processMetrics = true

	a, err := s.App(ctx)
	if err != nil {
		return err
	}

	lock, err := fs.Lock(filepath.Join(s.cfg.DataDirAbs, serveLockName), time.Second)
	if err != nil {
		return fmt.Errorf("another server may be running for this library: %w", err)
	}

	defer func() { _ = lock.Release() }()

	return httpapi.Serve(ctx, addr, httpapi.New(a, s.log), s.log, func(bound net.Addr) {
		o.Println("Listening on http://" + bound.String())
	})
}
