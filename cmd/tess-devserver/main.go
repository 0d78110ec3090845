// tess-devserver serves an in-memory tess backend on localhost so the
// client can be run end to end without the hosted services.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/naveenspark/tess/internal/devserver"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		addr        string
		apiKey      string
		callBase    string
		requireAuth bool
		verbose     bool
	)
	fs := pflag.NewFlagSet("tess-devserver", pflag.ContinueOnError)
	fs.StringVar(&addr, "addr", "127.0.0.1:8787", "address to listen on")
	fs.StringVar(&apiKey, "api-key", "", "require this value in the apikey header")
	fs.BoolVar(&requireAuth, "require-auth", false, "reject ledger requests without a token issued by this server")
	fs.StringVar(&callBase, "call-base-url", "https://tavus.daily.co", "prefix for provisioned conversation URLs")
	fs.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	srv, err := devserver.New(devserver.Options{
		Logger:      logger,
		APIKey:      apiKey,
		RequireAuth: requireAuth,
		CallBaseURL: callBase,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "staff_login", devserver.DemoStaffEmail)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
