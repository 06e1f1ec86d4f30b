// Package git wraps the git CLI for the operations a Pages deployment needs.
package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kurihiro0119/pages-deploy/internal/command"
)

// Repo runs git commands in one working tree.
type Repo struct {
	runner command.Runner
	bin    string
	dir    string
}

// New creates a Repo for dir using the git binary bin.
func New(runner command.Runner, bin, dir string) *Repo {
	return &Repo{runner: runner, bin: bin, dir: dir}
}

// Dir returns the working tree path.
func (r *Repo) Dir() string {
	return r.dir
}

// CommandError describes a git invocation that exited non-zero.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s exited %d", strings.Join(e.Args, " "), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// RemoveMetadata deletes the .git directory. A missing directory is not an error.
func (r *Repo) RemoveMetadata() error {
	return os.RemoveAll(filepath.Join(r.dir, ".git"))
}

// Init runs `git init`.
func (r *Repo) Init(ctx context.Context) error {
	_, err := r.run(ctx, "init")
	return err
}

// AddAll stages every file in the working tree.
func (r *Repo) AddAll(ctx context.Context) error {
	_, err := r.run(ctx, "add", ".")
	return err
}

// Commit records the staged changes.
func (r *Repo) Commit(ctx context.Context, message string) error {
	_, err := r.run(ctx, "commit", "-m", message)
	return err
}

// CheckoutOrphan switches to a new branch with no history.
func (r *Repo) CheckoutOrphan(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "checkout", "--orphan", branch)
	return err
}

// DeleteBranch force-deletes a local branch.
func (r *Repo) DeleteBranch(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "branch", "-D", branch)
	return err
}

// RemoveAll removes every tracked file from the index and the working tree.
func (r *Repo) RemoveAll(ctx context.Context) error {
	_, err := r.run(ctx, "rm", "-rf", ".")
	return err
}

// Checkout switches to an existing branch.
func (r *Repo) Checkout(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "checkout", branch)
	return err
}

// ForcePush overwrites branch on remote with the local branch.
func (r *Repo) ForcePush(ctx context.Context, remote, branch string) error {
	_, err := r.run(ctx, "push", remote, branch, "--force")
	return err
}

// RemoteURL returns the fetch URL of remote.
func (r *Repo) RemoteURL(ctx context.Context, remote string) (string, error) {
	out, err := r.run(ctx, "remote", "get-url", remote)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// HeadCommit returns the full hash of HEAD.
func (r *Repo) HeadCommit(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	result, err := r.runner.Run(ctx, r.bin, args, command.Options{Dir: r.dir})
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	if result.ExitCode != 0 {
		return "", &CommandError{Args: args, ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	return result.Stdout, nil
}
