package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/mod/semver"
)

// releaseFeed is the latest-release endpoint for tess builds.
const releaseFeed = "https://api.github.com/repos/naveenspark/tess/releases/latest"

const releaseCheckTimeout = 5 * time.Second

var errBadReleaseTag = errors.New("release feed: tag is not a semantic version")

// versionCheckMsg carries the newer release tag, if any. latest is empty
// when the build is current or the feed could not be read.
type versionCheckMsg struct {
	latest string
	err    error
}

// releaseChecker compares a build version against the release feed.
type releaseChecker struct {
	feed   string
	client *http.Client
}

func newReleaseChecker(feed string) releaseChecker {
	return releaseChecker{feed: feed, client: &http.Client{Timeout: releaseCheckTimeout}}
}

// checkVersion starts a background release check. Builds without a
// semantic version, such as "dev", never check.
func checkVersion(current string) tea.Cmd {
	return newReleaseChecker(releaseFeed).cmd(current)
}

func (c releaseChecker) cmd(current string) tea.Cmd {
	cur := canonicalVersion(current)
	if cur == "" {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), releaseCheckTimeout)
		defer cancel()
		tag, err := c.latestTag(ctx)
		if err != nil {
			return versionCheckMsg{err: err}
		}
		if semver.Compare(tag, cur) <= 0 {
			return versionCheckMsg{}
		}
		return versionCheckMsg{latest: tag}
	}
}

func (c releaseChecker) latestTag(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feed, nil)
	if err != nil {
		return "", fmt.Errorf("release feed: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("release feed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release feed: status %d", resp.StatusCode)
	}
	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("release feed: decode: %w", err)
	}
	tag := canonicalVersion(release.TagName)
	if tag == "" {
		return "", fmt.Errorf("%w: %q", errBadReleaseTag, release.TagName)
	}
	return tag, nil
}

// canonicalVersion adds the "v" prefix semver expects and returns "" for
// anything that is still not a valid version.
func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}
