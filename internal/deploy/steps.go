package deploy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kurihiro0119/pages-deploy/internal/command"
	apperrors "github.com/kurihiro0119/pages-deploy/internal/errors"
	"github.com/kurihiro0119/pages-deploy/internal/identity"
	"github.com/kurihiro0119/pages-deploy/internal/publish"
)

const (
	manualDeployHint = "You can try deploying manually by pushing to the %s branch"
	mainBranchHint   = "The %s branch was pushed. Set MAIN_BRANCH if your working branch is not %s"
)

func (w *Workflow) checkCLI(ctx context.Context, r *run) error {
	version, err := w.gh.Version(ctx)
	if err != nil {
		return err
	}
	w.printer.Log.Debug("gh found", "version", version)
	w.printer.Success("GitHub CLI is installed")
	return nil
}

func (w *Workflow) authenticate(ctx context.Context, r *run) error {
	status, err := w.gh.AuthStatus(ctx)
	if err != nil {
		return err
	}
	w.printer.Success("Logged in to GitHub")

	r.username = w.username(ctx, status)
	r.deployment.Username = r.username
	return nil
}

// username parses the login from gh output, then asks the REST API when a
// client is configured, then falls back to the placeholder.
func (w *Workflow) username(ctx context.Context, status string) string {
	if name, ok := identity.ParseUsername(status); ok {
		return name
	}
	w.printer.Log.Debug("username not found in gh auth status", "error", apperrors.NewParseError("username", status))

	if w.pages != nil {
		name, err := w.pages.AuthenticatedUser(ctx)
		if err == nil && name != "" {
			return name
		}
		w.printer.Log.Debug("authenticated user lookup failed", "error", err)
	}
	return identity.PlaceholderUsername
}

func (w *Workflow) setup(ctx context.Context, r *run) error {
	if !r.opts.FirstTime {
		w.printer.Info("Using existing repository configuration")
		w.readRemote(ctx, r)
		return nil
	}

	r.repoName = w.repoName(r.opts.RepoName)
	r.deployment.Repo = r.repoName
	if r.username != identity.PlaceholderUsername {
		r.deployment.Owner = r.username
	}

	w.printer.Step("📝 Updating configuration...")
	w.printer.Success("Set homepage to: %s", identity.HomepageURL(r.username, r.repoName))

	w.printer.Step("📁 Setting up git repository...")
	if err := w.initRepository(ctx); err != nil {
		return apperrors.NewSetupError("Error setting up repository", err)
	}
	w.printer.Success("Git repository initialized")

	w.printer.Banner("🔧 Creating GitHub repository: %s...", r.repoName)
	if err := w.gh.CreateRepo(ctx, r.repoName); err != nil {
		return apperrors.NewSetupError("Error setting up repository", err)
	}
	w.printer.Success("GitHub repository created and code pushed")
	return nil
}

// repoName picks the flag value, then one line of prompt input, then a
// generated name.
func (w *Workflow) repoName(provided string) string {
	if name := strings.TrimSpace(provided); name != "" {
		return name
	}
	if w.prompt != nil {
		w.printer.Info("Enter a name for your GitHub repository: ")
		line, err := bufio.NewReader(w.prompt).ReadString('\n')
		if name := strings.TrimSpace(line); name != "" {
			return name
		}
		if err != nil {
			w.printer.Log.Debug("no repository name entered", "error", err)
		}
	}
	return identity.GeneratedRepoName(w.settings.RepoNamePrefix, w.now())
}

func (w *Workflow) initRepository(ctx context.Context) error {
	if err := w.git.RemoveMetadata(); err != nil {
		return fmt.Errorf("remove .git: %w", err)
	}
	if err := w.git.Init(ctx); err != nil {
		return err
	}
	if err := w.git.AddAll(ctx); err != nil {
		return err
	}
	return w.git.Commit(ctx, "Initial commit")
}

func (w *Workflow) build(ctx context.Context, r *run) error {
	w.printer.Banner("🔨 Building React application...")

	argv := w.settings.BuildCommand
	result, err := w.runner.Run(ctx, argv[0], argv[1:], command.Options{
		Dir:    w.git.Dir(),
		Stream: true,
	})
	if err != nil {
		return apperrors.NewBuildError("Build failed", err)
	}
	if result.ExitCode != 0 {
		return apperrors.NewBuildError("Build failed",
			fmt.Errorf("%s exited %d", command.Line(argv[0], argv[1:]), result.ExitCode))
	}

	w.printer.Success("Application built successfully")
	return nil
}

func (w *Workflow) publish(ctx context.Context, r *run) error {
	w.printer.Banner("🚀 Deploying to GitHub Pages...")

	if err := w.publishBranch(ctx, r); err != nil {
		appErr := apperrors.NewPublishError("Deployment failed", err)
		if r.pushed {
			return appErr.WithHint(fmt.Sprintf(mainBranchHint, w.settings.PagesBranch, w.settings.MainBranch))
		}
		return appErr.WithHint(fmt.Sprintf(manualDeployHint, w.settings.PagesBranch))
	}

	w.printer.Success("Deployed to GitHub Pages successfully")
	return nil
}

func (w *Workflow) publishBranch(ctx context.Context, r *run) error {
	branch := w.settings.PagesBranch
	root := w.git.Dir()

	// A stale local pages branch would make the orphan checkout fail.
	if err := w.git.DeleteBranch(ctx, branch); err != nil {
		w.printer.Log.Debug("no local pages branch to delete", "branch", branch, "error", err)
	}
	if err := w.git.CheckoutOrphan(ctx, branch); err != nil {
		return err
	}
	if err := w.git.RemoveAll(ctx); err != nil {
		w.printer.Log.Debug("nothing to remove from pages branch", "error", err)
	}

	manifest, err := w.publisher.Copy(root)
	if err != nil {
		return err
	}
	r.manifest = manifest
	r.deployment.FileCount = len(manifest.Files)
	r.deployment.Bytes = manifest.Bytes
	w.printer.Log.Debug("copied build output", "files", len(manifest.Files), "bytes", manifest.Bytes)

	if w.settings.CheckReferences {
		w.checkReferences(root)
	}

	if err := w.git.AddAll(ctx); err != nil {
		return err
	}
	if err := w.git.Commit(ctx, "Deploy to GitHub Pages"); err != nil {
		return err
	}
	if commit, err := w.git.HeadCommit(ctx); err == nil {
		r.deployment.Commit = commit
	} else {
		w.printer.Log.Debug("could not read pages commit", "error", err)
	}
	if err := w.git.ForcePush(ctx, w.settings.Remote, branch); err != nil {
		return err
	}
	r.pushed = true
	// git init may have named the first branch after init.defaultBranch.
	return w.git.Checkout(ctx, w.settings.MainBranch)
}

func (w *Workflow) checkReferences(root string) {
	entry := w.publisher.Layout().EntryFile
	missing, err := publish.MissingReferences(root, entry)
	if err != nil {
		w.printer.Log.Debug("reference check skipped", "error", err)
		return
	}
	for _, ref := range missing {
		w.printer.Warn("%s references %s, which was not published", entry, ref)
	}
}

// readRemote parses the configured remote once per run. A redeploy reads it
// before building so that failed runs are recorded against the repository.
func (w *Workflow) readRemote(ctx context.Context, r *run) bool {
	if r.remoteRead {
		return r.hasRemote
	}
	r.remoteRead = true

	url, err := w.git.RemoteURL(ctx, w.settings.Remote)
	if err != nil {
		w.printer.Log.Debug("could not read remote", "remote", w.settings.Remote, "error", err)
		return false
	}

	remote, ok := identity.ParseRemote(url)
	if !ok {
		w.printer.Log.Debug("remote is not a GitHub URL", "error", apperrors.NewParseError("remote URL", url))
		return false
	}

	r.remote = remote
	r.hasRemote = true
	r.deployment.Owner = remote.Owner
	r.deployment.Repo = remote.Name
	return true
}

// resolveURL derives the Pages URL from the remote. Parse failures degrade
// to the generic success message.
func (w *Workflow) resolveURL(ctx context.Context, r *run) {
	if w.readRemote(ctx, r) {
		r.deployment.URL = identity.PagesURL(r.remote)
	}
}

func (w *Workflow) announce(r *run) {
	if r.deployment.URL != "" {
		w.printer.Banner("🎉 Your app is now live at: %s", r.deployment.URL)
	} else {
		w.printer.Banner("🎉 Your app is now deployed to GitHub Pages!")
	}
	w.printer.Info("Note: It may take a few minutes for the site to be fully deployed.")
}

// distRoot is the build output directory. Manifest paths are relative to it
// as well as to the publish root.
func (w *Workflow) distRoot() string {
	dist := w.publisher.Layout().DistDir
	if filepath.IsAbs(dist) {
		return dist
	}
	return filepath.Join(w.git.Dir(), dist)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
