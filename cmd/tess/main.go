package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/naveenspark/tess/internal/appstate"
	"github.com/naveenspark/tess/internal/auth"
	"github.com/naveenspark/tess/internal/content"
	"github.com/naveenspark/tess/internal/credstore"
	"github.com/naveenspark/tess/internal/flow"
	"github.com/naveenspark/tess/internal/transport"
	"github.com/naveenspark/tess/internal/tui"
	"github.com/naveenspark/tess/pkg/client"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// services is everything a run needs, wired once.
type services struct {
	cfg     config
	log     *slog.Logger
	client  *client.Client
	state   *appstate.Store
	auth    *auth.Machine
	flow    *flow.Machine
	call    *transport.Browser
	catalog *content.Catalog
	close   func()
}

func run(args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "--version", "version", "-v":
			fmt.Println("tess " + version)
			return nil
		case "help", "--help", "-h":
			printHelp()
			return nil
		}
	}

	cmd := ""
	if len(args) > 0 && (args[0] == "login" || args[0] == "logout") {
		cmd, args = args[0], args[1:]
	}

	var f flags
	fs := pflag.NewFlagSet("tess", pflag.ContinueOnError)
	f.add(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp()
			return nil
		}
		return err
	}
	if f.help {
		printHelp()
		return nil
	}
	if rest := fs.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg, err := resolveConfig(f, os.Getenv)
	if err != nil {
		return err
	}
	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	switch cmd {
	case "login":
		return runLogin(svc)
	case "logout":
		return runLogout(svc)
	}
	return runTUI(svc)
}

// openLogger writes JSON records to path, or discards them when path is
// empty. The terminal belongs to the TUI.
func openLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), func() { file.Close() }, nil //nolint:errcheck
}

func newServices(cfg config) (*services, error) {
	logger, closeLog, err := openLogger(cfg.LogOutput)
	if err != nil {
		return nil, err
	}
	catalog, err := content.Default()
	if err != nil {
		closeLog()
		return nil, err
	}

	c := client.New(cfg.APIURL, cfg.APIKey)
	state := appstate.New()
	var creds credstore.Store = credstore.NewFileStore(cfg.credentialsPath())
	if cfg.Ephemeral {
		creds = credstore.NewMemStore()
	}
	am := auth.New(state, creds, c, auth.Options{
		Logger: logger.With("component", "auth"),
		Tokens: c,
	})
	call := transport.NewBrowser(logger.With("component", "transport"))
	fm := flow.New(state, am, c, c, call, flow.Options{
		Logger: logger.With("component", "flow"),
	})

	logger.Info("starting", "version", version, "api_url", cfg.APIURL, "state_dir", cfg.StateDir)
	return &services{
		cfg:     cfg,
		log:     logger,
		client:  c,
		state:   state,
		auth:    am,
		flow:    fm,
		call:    call,
		catalog: catalog,
		close:   closeLog,
	}, nil
}

func runTUI(svc *services) error {
	app := tui.NewApp(tui.Deps{
		Auth:    svc.auth,
		Flow:    svc.flow,
		State:   svc.state,
		Catalog: svc.catalog,
		Events:  svc.call.Events(),
		Logger:  svc.log.With("component", "tui"),
		Version: version,
	})

	p := tea.NewProgram(app, tea.WithAltScreen())
	_, runErr := p.Run()

	// Quitting mid-call still ends the conversation and records the time.
	if svc.state.Snapshot().Flow.Step == appstate.StepInConversation {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := svc.flow.EndSession(ctx); err != nil {
			svc.log.Warn("end session on exit", "err", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("tui error: %w", runErr)
	}
	return nil
}

func runLogout(svc *services) error {
	st := svc.auth.Restore()
	if st.Phase != appstate.AuthAuthenticated {
		fmt.Println("Already logged out.")
		return nil
	}
	if err := svc.auth.Logout(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	fmt.Println("Logged out.")
	return nil
}
