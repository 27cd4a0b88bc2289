package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotLoopback is returned by [Serve] for addresses other hosts could reach.
var ErrNotLoopback = errors.New("listen address must be a loopback address")

const shutdownTimeout = 5 * time.Second

// CheckLoopback validates that addr binds to localhost only.
func CheckLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}

	if host == "localhost" {
		return nil
	}

	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%w: %q", ErrNotLoopback, addr)
	}

	return nil
}

// Serve listens on addr and serves h until ctx is cancelled, then shuts down
// gracefully. ready, when non-nil, receives the bound address.
func Serve(ctx context.Context, addr string, h http.Handler, log zerolog.Logger, ready func(net.Addr)) error {
	err := CheckLoopback(addr)
	if err != nil {
		return err
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if ready != nil {
		ready(ln.Addr())
	}

	log.Info().Str("addr", ln.Addr().String()).Msg("serving")

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info().Msg("server stopped")

	return nil
}
