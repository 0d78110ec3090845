package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/naveenspark/tess/internal/appstate"
	"github.com/naveenspark/tess/internal/auth"
)

const (
	loginBadge = "badge"
	loginStaff = "staff"
	loginDemo  = "demo"
)

// runLogin signs in from plain terminal prompts, then greets the user.
func runLogin(svc *services) error {
	if st := svc.auth.Restore(); st.Phase == appstate.AuthAuthenticated {
		fmt.Printf("Already signed in as %s. Run tess logout first to switch.\n", st.Session.DisplayName())
		return nil
	}

	var mode string
	err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("How would you like to sign in?").
			Options(
				huh.NewOption("Badge code", loginBadge),
				huh.NewOption("Teacher or staff account", loginStaff),
				huh.NewOption("Quick demo", loginDemo),
			).
			Value(&mode),
	)).Run()
	if err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch mode {
	case loginBadge:
		var code string
		if err := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Badge code").
				Placeholder("type or paste the code").
				Value(&code).
				Validate(required("badge code")),
		)).Run(); err != nil {
			return fmt.Errorf("prompt failed: %w", err)
		}
		err = svc.auth.LoginScanToken(ctx, code)
	case loginStaff:
		var email, password string
		if err := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&email).
				Validate(required("email")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(required("password")),
		)).Run(); err != nil {
			return fmt.Errorf("prompt failed: %w", err)
		}
		err = svc.auth.LoginStaff(ctx, strings.TrimSpace(email), password)
	case loginDemo:
		err = svc.auth.DemoSignIn()
	default:
		return fmt.Errorf("unknown sign-in mode %q", mode)
	}
	if err != nil {
		if msg := auth.UserMessage(err); msg != "" {
			return errors.New(msg)
		}
		return err
	}

	printGreeting(svc.state.Snapshot().Auth.Session.DisplayName())
	return nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
