// Package gh wraps the GitHub CLI.
package gh

import (
	"context"
	"fmt"
	"strings"

	"github.com/kurihiro0119/pages-deploy/internal/command"
	apperrors "github.com/kurihiro0119/pages-deploy/internal/errors"
)

// CLI invokes the gh binary through a command.Runner.
type CLI struct {
	runner command.Runner
	bin    string
	dir    string
}

// New creates a CLI wrapper running bin in dir.
func New(runner command.Runner, bin, dir string) *CLI {
	return &CLI{runner: runner, bin: bin, dir: dir}
}

// Version checks that gh is installed and returns the first line of
// `gh --version`.
func (c *CLI) Version(ctx context.Context) (string, error) {
	result, err := c.run(ctx, "--version")
	if err != nil {
		return "", notInstalled(err)
	}
	if result.ExitCode != 0 {
		return "", notInstalled(fmt.Errorf("gh --version exited %d", result.ExitCode))
	}
	line, _, _ := strings.Cut(result.Stdout, "\n")
	return strings.TrimSpace(line), nil
}

func notInstalled(err error) error {
	return apperrors.NewToolMissingError("GitHub CLI", err).
		WithHint("Visit: https://cli.github.com/")
}

// AuthStatus runs `gh auth status` and returns its combined output.
func (c *CLI) AuthStatus(ctx context.Context) (string, error) {
	result, err := c.run(ctx, "auth", "status")
	if err != nil {
		return "", notLoggedIn(err)
	}
	if result.ExitCode != 0 {
		return "", notLoggedIn(fmt.Errorf("gh auth status exited %d", result.ExitCode))
	}
	return result.Combined(), nil
}

func notLoggedIn(err error) error {
	return apperrors.NewUnauthorizedError("Not logged in to GitHub. Please login with:", err).
		WithHint("Run: gh auth login")
}

// CreateRepo creates a public repository from the local checkout, adds it as
// the origin remote and pushes the current branch.
func (c *CLI) CreateRepo(ctx context.Context, name string) error {
	result, err := c.run(ctx, "repo", "create", name, "--public", "--source=.", "--push")
	if err != nil {
		return fmt.Errorf("gh repo create: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("gh repo create exited %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}

func (c *CLI) run(ctx context.Context, args ...string) (command.Result, error) {
	return c.runner.Run(ctx, c.bin, args, command.Options{Dir: c.dir})
}
