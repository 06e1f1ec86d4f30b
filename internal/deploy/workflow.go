// Package deploy runs the GitHub Pages deploy workflow: tool and login checks,
// optional first-time repository setup, build, publish and URL report.
//
// Steps run strictly in order and the first failing step ends the run.
// Everything after a successful publish (Pages enablement, archive, history)
// is best effort and only produces warnings.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/kurihiro0119/pages-deploy/internal/command"
	"github.com/kurihiro0119/pages-deploy/internal/console"
	"github.com/kurihiro0119/pages-deploy/internal/domain"
	apperrors "github.com/kurihiro0119/pages-deploy/internal/errors"
	"github.com/kurihiro0119/pages-deploy/internal/identity"
	"github.com/kurihiro0119/pages-deploy/internal/pages"
	"github.com/kurihiro0119/pages-deploy/internal/publish"
)

// ErrFailed matches every error returned by a failed run.
var ErrFailed = errors.New("deployment failed")

// GitHubCLI is the subset of the gh wrapper the workflow calls.
type GitHubCLI interface {
	Version(ctx context.Context) (string, error)
	AuthStatus(ctx context.Context) (string, error)
	CreateRepo(ctx context.Context, name string) error
}

// Git is the subset of the git wrapper the workflow calls.
type Git interface {
	Dir() string
	RemoveMetadata() error
	Init(ctx context.Context) error
	AddAll(ctx context.Context) error
	Commit(ctx context.Context, message string) error
	CheckoutOrphan(ctx context.Context, branch string) error
	DeleteBranch(ctx context.Context, branch string) error
	RemoveAll(ctx context.Context) error
	Checkout(ctx context.Context, branch string) error
	ForcePush(ctx context.Context, remote, branch string) error
	RemoteURL(ctx context.Context, remote string) (string, error)
	HeadCommit(ctx context.Context) (string, error)
}

// Archiver uploads published files under a deployment ID.
type Archiver interface {
	Archive(ctx context.Context, deploymentID, root string, files []string) error
}

// Recorder persists deployment records.
type Recorder interface {
	SaveDeployment(ctx context.Context, d *domain.Deployment) error
}

// Deps are the collaborators of a Workflow. GH, Git, Runner, Publisher and
// Printer are required; the rest are optional.
type Deps struct {
	GH        GitHubCLI
	Git       Git
	Runner    command.Runner
	Publisher *publish.Publisher
	Printer   *console.Printer

	Pages    pages.Client
	Archiver Archiver
	Recorder Recorder

	// Prompt supplies the repository name in first-time mode.
	Prompt io.Reader
	Now    func() time.Time
	NewID  func() string
}

// Settings are the tunables of a Workflow.
type Settings struct {
	BuildCommand      []string
	PagesBranch       string
	MainBranch        string
	Remote            string
	RepoNamePrefix    string
	PagesWaitTimeout  time.Duration
	PagesPollInterval time.Duration
	CheckReferences   bool
}

// DefaultSettings mirrors the defaults of the config package.
func DefaultSettings() Settings {
	return Settings{
		BuildCommand:      []string{"deno", "task", "build"},
		PagesBranch:       "gh-pages",
		MainBranch:        "main",
		Remote:            "origin",
		RepoNamePrefix:    "deno-react-app",
		PagesWaitTimeout:  10 * time.Minute,
		PagesPollInterval: 5 * time.Second,
		CheckReferences:   true,
	}
}

// Options select the mode of one run.
type Options struct {
	FirstTime bool
	RepoName  string
	// Wait polls the Pages build after publishing. Needs Deps.Pages.
	Wait bool
}

// Result is the outcome of one run.
type Result struct {
	Deployment *domain.Deployment
	// URL is the resolved Pages URL, empty when the remote could not be parsed.
	URL string
	Err error
}

// Succeeded reports whether every step completed.
func (r *Result) Succeeded() bool {
	return r.Err == nil
}

// Failure is the error of a failed run. It names the step that stopped it.
type Failure struct {
	Step string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Step, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Is makes every Failure match ErrFailed.
func (f *Failure) Is(target error) bool {
	return target == ErrFailed
}

// Workflow runs deployments.
type Workflow struct {
	gh        GitHubCLI
	git       Git
	runner    command.Runner
	publisher *publish.Publisher
	printer   *console.Printer
	pages     pages.Client
	archiver  Archiver
	recorder  Recorder
	prompt    io.Reader
	now       func() time.Time
	newID     func() string
	settings  Settings
}

// New creates a Workflow. Zero settings fall back to DefaultSettings.
func New(deps Deps, settings Settings) *Workflow {
	def := DefaultSettings()
	if len(settings.BuildCommand) == 0 {
		settings.BuildCommand = def.BuildCommand
	}
	if settings.PagesBranch == "" {
		settings.PagesBranch = def.PagesBranch
	}
	if settings.MainBranch == "" {
		settings.MainBranch = def.MainBranch
	}
	if settings.Remote == "" {
		settings.Remote = def.Remote
	}
	if settings.RepoNamePrefix == "" {
		settings.RepoNamePrefix = def.RepoNamePrefix
	}
	if settings.PagesWaitTimeout <= 0 {
		settings.PagesWaitTimeout = def.PagesWaitTimeout
	}
	if settings.PagesPollInterval <= 0 {
		settings.PagesPollInterval = def.PagesPollInterval
	}

	w := &Workflow{
		gh:        deps.GH,
		git:       deps.Git,
		runner:    deps.Runner,
		publisher: deps.Publisher,
		printer:   deps.Printer,
		pages:     deps.Pages,
		archiver:  deps.Archiver,
		recorder:  deps.Recorder,
		prompt:    deps.Prompt,
		now:       deps.Now,
		newID:     deps.NewID,
		settings:  settings,
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.newID == nil {
		w.newID = uuid.NewString
	}
	return w
}

// run carries the state of one execution between steps.
type run struct {
	opts       Options
	deployment *domain.Deployment
	username   string
	repoName   string
	manifest   *publish.Manifest
	pushed     bool
	remote     identity.Remote
	remoteRead bool
	hasRemote  bool
}

type step struct {
	name string
	fn   func(ctx context.Context, r *run) error
}

// Run executes the workflow. On failure the returned error is a *Failure and
// matches ErrFailed; the Result is returned either way.
func (w *Workflow) Run(ctx context.Context, opts Options) (*Result, error) {
	mode := domain.DeployModeRedeploy
	if opts.FirstTime {
		mode = domain.DeployModeFirstTime
	}
	r := &run{
		opts: opts,
		deployment: &domain.Deployment{
			ID:        w.newID(),
			Mode:      mode,
			Branch:    w.settings.PagesBranch,
			StartedAt: w.now(),
		},
	}

	if opts.FirstTime {
		w.printer.Banner("🚀 First-time setup for GitHub Pages deployment...\n")
	} else {
		w.printer.Banner("🚀 Deploying updates to GitHub Pages...\n")
	}

	steps := []step{
		{"check-cli", w.checkCLI},
		{"auth", w.authenticate},
		{"setup", w.setup},
		{"build", w.build},
		{"publish", w.publish},
	}
	for _, s := range steps {
		w.printer.Log.Debug("step", "name", s.name)
		if err := s.fn(ctx, r); err != nil {
			return w.fail(ctx, r, s.name, err)
		}
	}

	w.resolveURL(ctx, r)
	w.afterPublish(ctx, r)
	w.announce(r)

	r.deployment.Status = domain.DeployStatusSucceeded
	r.deployment.FinishedAt = w.now()
	w.record(ctx, r)

	return &Result{Deployment: r.deployment, URL: r.deployment.URL}, nil
}

// fail prints err with its hints, records the failed run and converts err
// into the run's Failure.
func (w *Workflow) fail(ctx context.Context, r *run, stepName string, err error) (*Result, error) {
	w.printer.Failure(userMessage(err), apperrors.HintsOf(err)...)
	w.printer.Log.Debug("step failed", "step", stepName, "error", err)

	r.deployment.Status = domain.DeployStatusFailed
	r.deployment.FailedStep = stepName
	r.deployment.Error = err.Error()
	r.deployment.FinishedAt = w.now()
	w.record(ctx, r)

	failure := &Failure{Step: stepName, Err: err}
	return &Result{Deployment: r.deployment, URL: r.deployment.URL, Err: failure}, failure
}

// userMessage is the line printed after ❌. Tool and login failures print
// only their message because their hints carry the remedy.
func userMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case apperrors.ErrCodeToolMissing, apperrors.ErrCodeUnauthorized:
			return appErr.Message
		}
	}
	return apperrors.MessageOf(err)
}
