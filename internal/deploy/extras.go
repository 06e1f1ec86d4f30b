package deploy

import (
	"context"
	"errors"

	"github.com/kurihiro0119/pages-deploy/internal/pages"
)

// afterPublish runs the optional steps that follow a successful publish.
func (w *Workflow) afterPublish(ctx context.Context, r *run) {
	if w.pages != nil && r.hasRemote {
		w.ensurePages(ctx, r)
	}
	if w.archiver != nil && r.manifest != nil {
		w.archive(ctx, r)
	}
}

func (w *Workflow) ensurePages(ctx context.Context, r *run) {
	owner, repo := r.remote.Owner, r.remote.Name

	site, err := w.pages.EnsureEnabled(ctx, owner, repo, w.settings.PagesBranch)
	if err != nil {
		w.printer.Warn("could not check GitHub Pages settings: %v", err)
		return
	}
	if site.Created {
		w.printer.Success("Enabled GitHub Pages from the %s branch", w.settings.PagesBranch)
	} else if site.Branch != "" && site.Branch != w.settings.PagesBranch {
		w.printer.Warn("GitHub Pages serves the %s branch, not %s", site.Branch, w.settings.PagesBranch)
	}
	if site.URL != "" && site.URL != r.deployment.URL {
		w.printer.Info("GitHub Pages reports the site at %s", site.URL)
	}

	if !r.opts.Wait {
		return
	}

	w.printer.Step("⏳ Waiting for the GitHub Pages build...")
	build, err := w.pages.WaitForBuild(ctx, owner, repo, w.settings.PagesPollInterval, w.settings.PagesWaitTimeout)
	switch {
	case errors.Is(err, pages.ErrWaitTimeout):
		w.printer.Warn("GitHub Pages build still running after %s", w.settings.PagesWaitTimeout)
	case isCanceled(err):
		w.printer.Warn("stopped waiting for the GitHub Pages build")
	case err != nil:
		w.printer.Warn("could not follow the GitHub Pages build: %v", err)
	case build.Status == pages.BuildErrored:
		w.printer.Warn("GitHub Pages build errored: %s", build.Error)
	default:
		w.printer.Success("GitHub Pages build finished in %s", build.Duration)
	}
}

func (w *Workflow) archive(ctx context.Context, r *run) {
	if err := w.archiver.Archive(ctx, r.deployment.ID, w.distRoot(), r.manifest.Files); err != nil {
		w.printer.Warn("could not archive published files: %v", err)
		return
	}
	w.printer.Success("Archived %d files as %s", len(r.manifest.Files), r.deployment.ID)
}

// record saves the deployment. A storage failure never changes the outcome.
func (w *Workflow) record(ctx context.Context, r *run) {
	if w.recorder == nil {
		return
	}
	// The run may have been interrupted; the record is still written.
	if err := w.recorder.SaveDeployment(context.WithoutCancel(ctx), r.deployment); err != nil {
		w.printer.Warn("could not record deployment: %v", err)
		return
	}
	w.printer.Log.Debug("deployment recorded", "id", r.deployment.ID, "status", r.deployment.Status)
}
