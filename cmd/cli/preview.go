package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/pages-deploy/internal/api"
	"github.com/kurihiro0119/pages-deploy/internal/command"
	"github.com/kurihiro0119/pages-deploy/internal/console"
	"github.com/kurihiro0119/pages-deploy/internal/preview"
)

var (
	previewListen string
	previewWatch  bool
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Serve the build output locally",
	Long: `Serve the build output the way GitHub Pages will. With --watch the
frontend is rebuilt whenever a file under SOURCE_DIR changes.`,
	Args: cobra.NoArgs,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVar(&previewListen, "listen", "localhost:4173", "address to listen on")
	previewCmd.Flags().BoolVar(&previewWatch, "watch", false, "rebuild when sources change")
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	printer := console.Stdio(verbose)
	ctx := cmd.Context()

	dist := cfg.DistDir
	if !filepath.IsAbs(dist) {
		dist = filepath.Join(wd, dist)
	}

	runner := command.NewExecRunner()
	build := func(ctx context.Context) error {
		argv := cfg.BuildCommand
		result, err := runner.Run(ctx, argv[0], argv[1:], command.Options{Dir: wd, Stream: true})
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return fmt.Errorf("%s exited %d", command.Line(argv[0], argv[1:]), result.ExitCode)
		}
		return nil
	}

	site := api.PreviewSite{
		Root:      dist,
		EntryFile: cfg.EntryFile,
		AssetsDir: cfg.AssetsDir,
	}

	var watcher *preview.Watcher
	if previewWatch {
		printer.Step("🔨 Building React application...")
		if err := build(ctx); err != nil {
			printer.Warn("initial build failed: %v", err)
		}
		watcher = preview.NewWatcher([]string{filepath.Join(wd, cfg.SourceDir)}, build, preview.DefaultDebounce, printer.Log)
		site.Status = func() any { return watcher.Status() }
	}

	if _, err := os.Stat(filepath.Join(dist, cfg.EntryFile)); err != nil {
		printer.Warn("%s not found, run the build first", filepath.Join(cfg.DistDir, cfg.EntryFile))
	}

	logOut := io.Discard
	if verbose {
		logOut = printer.Out()
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              previewListen,
		Handler:           api.SetupPreviewRoutes(site, logOut),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if watcher != nil {
		go func() {
			if err := watcher.Run(ctx); err != nil {
				printer.Warn("watcher stopped: %v", err)
			}
		}()
	}

	printer.Success("Serving %s at http://%s/", cfg.DistDir, previewListen)

	select {
	case <-ctx.Done():
		printer.Info("Shutting down preview server")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
