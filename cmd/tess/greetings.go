package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/charmbracelet/lipgloss"
)

var tessGreetings = [...]string{
	"Hi there! I'm so glad you stopped by.",
	"How's your heart feeling today?",
	"Every feeling is welcome here.",
	"Taking a moment to check in is a brave thing to do.",
	"I saved you a spot. Ready when you are!",
	"Big feelings, small feelings, all feelings. Let's talk.",
	"Let's take a deep breath together.",
	"You don't have to figure it out alone.",
}

func printHelp() {
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#c4b5fd")).
		Bold(true).
		Render("T E S S")

	quote := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render(`"It's always okay to feel your feelings."`)

	attrib := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#f5c86b")).
		Render("— Tess")

	cmdStyle := lipgloss.NewStyle().Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	commands := []struct{ cmd, desc string }{
		{"tess", "Start a check-in (interactive TUI)"},
		{"tess login", "Sign in with a badge code or staff account"},
		{"tess logout", "Forget the saved sign-in"},
		{"tess version", "Show version"},
		{"tess help", "You are here"},
	}
	flagsHelp := []struct{ flag, desc string }{
		{"--api-url", "backend base URL (env TESS_API_URL)"},
		{"--api-key", "backend project key (env TESS_API_KEY)"},
		{"--state-dir", "where the sign-in is saved (env TESS_STATE_DIR)"},
		{"--config", "JSONC config file (default ~/.tess/config.jsonc)"},
		{"--log-output", "write JSON logs to a file"},
		{"--ephemeral", "keep the sign-in in memory only"},
	}

	fmt.Printf("\n  %s\n\n  %s\n  %s\n\n  Commands:\n", title, quote, attrib)
	for _, c := range commands {
		fmt.Printf("    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-16s", c.cmd)), descStyle.Render(c.desc))
	}
	fmt.Printf("\n  Flags:\n")
	for _, f := range flagsHelp {
		fmt.Printf("    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-16s", f.flag)), descStyle.Render(f.desc))
	}
	fmt.Println()
}

func printGreeting(name string) {
	msg := tessGreetings[rand.IntN(len(tessGreetings))]

	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#c4b5fd")).
		Bold(true).
		Render("TESS")

	hello := "Hello!"
	if name != "" {
		hello = "Hello, " + name + "!"
	}
	quote := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render(msg)

	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Render("Run tess to start a check-in.")

	fmt.Printf("\n%s\n\n%s\n%s\n\n%s\n\n", title, hello, quote, hint)
}
