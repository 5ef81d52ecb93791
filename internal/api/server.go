package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/JulianoCristian/iotedge/internal/peercred"
)

const (
	unixScheme      = "unix://"
	tcpScheme       = "tcp://"
	shutdownTimeout = 10 * time.Second
)

// Listen opens the listener for a listen address: "host:port",
// "tcp://host:port" or "unix:///path/to.sock". A stale socket file is
// removed first.
func Listen(addr string) (net.Listener, error) {
	if !strings.HasPrefix(addr, unixScheme) {
		return net.Listen("tcp", strings.TrimPrefix(addr, tcpScheme))
	}

	path := strings.TrimPrefix(addr, unixScheme)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}
	return net.Listen("unix", path)
}

// Run serves on the configured listen address until ctx is canceled, then
// shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	l, err := Listen(s.config.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.ListenAddr, err)
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is canceled
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ConnContext:       peercred.ConnContext,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", l.Addr().String()).Info("workload API listening")
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down workload API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
