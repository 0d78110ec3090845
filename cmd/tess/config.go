package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"
)

// defaultAPIURL points at a local tess-devserver.
const defaultAPIURL = "http://127.0.0.1:8787"

// config is the resolved runtime configuration.
type config struct {
	APIURL    string `json:"api_url"`
	APIKey    string `json:"api_key"`
	StateDir  string `json:"state_dir"`
	LogOutput string `json:"log_output"`
	// Ephemeral keeps the sign-in in memory only.
	Ephemeral bool `json:"ephemeral"`
}

// flags holds the command-line overrides. Empty means unset.
type flags struct {
	config    string
	apiURL    string
	apiKey    string
	stateDir  string
	logOutput string
	ephemeral bool
	help      bool
}

func (f *flags) add(fs *pflag.FlagSet) {
	fs.StringVar(&f.config, "config", "", "path to a JSONC config file (default: ~/.tess/config.jsonc)")
	fs.StringVar(&f.apiURL, "api-url", "", "backend base URL")
	fs.StringVar(&f.apiKey, "api-key", "", "backend project key")
	fs.StringVar(&f.stateDir, "state-dir", "", "directory for saved sign-in (default: ~/.tess)")
	fs.StringVar(&f.logOutput, "log-output", "", "write JSON log records to this file")
	fs.BoolVar(&f.ephemeral, "ephemeral", false, "do not save the sign-in to disk")
	fs.BoolVarP(&f.help, "help", "h", false, "show help")
}

func defaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".tess"), nil
}

// readConfigFile parses a JSONC config. A missing file is not an error
// unless it was named explicitly.
func readConfigFile(path string, explicit bool) (config, error) {
	var c config
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &c); err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

// resolveConfig layers flags over environment over file over defaults.
func resolveConfig(f flags, getenv func(string) string) (config, error) {
	stateDir := first(f.stateDir, getenv("TESS_STATE_DIR"))
	if stateDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return config{}, err
		}
		stateDir = dir
	}

	path, explicit := f.config, f.config != ""
	if !explicit {
		path = filepath.Join(stateDir, "config.jsonc")
	}
	file, err := readConfigFile(path, explicit)
	if err != nil {
		return config{}, err
	}

	c := config{
		APIURL:    first(f.apiURL, getenv("TESS_API_URL"), file.APIURL, defaultAPIURL),
		APIKey:    first(f.apiKey, getenv("TESS_API_KEY"), file.APIKey),
		StateDir:  first(f.stateDir, getenv("TESS_STATE_DIR"), file.StateDir, stateDir),
		LogOutput: first(f.logOutput, file.LogOutput),
		Ephemeral: f.ephemeral || file.Ephemeral,
	}
	return c, nil
}

// first returns the first non-empty value.
func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c config) credentialsPath() string {
	return filepath.Join(c.StateDir, "credentials.json")
}
