package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kurihiro0119/pages-deploy/internal/artifact"
	"github.com/kurihiro0119/pages-deploy/internal/command"
	"github.com/kurihiro0119/pages-deploy/internal/config"
	"github.com/kurihiro0119/pages-deploy/internal/console"
	"github.com/kurihiro0119/pages-deploy/internal/deploy"
	"github.com/kurihiro0119/pages-deploy/internal/gh"
	"github.com/kurihiro0119/pages-deploy/internal/git"
	"github.com/kurihiro0119/pages-deploy/internal/pages"
	"github.com/kurihiro0119/pages-deploy/internal/publish"
	"github.com/kurihiro0119/pages-deploy/internal/storage"
	"github.com/kurihiro0119/pages-deploy/internal/storage/postgres"
	"github.com/kurihiro0119/pages-deploy/internal/storage/sqlite"
)

var (
	envFile    string
	verbose    bool
	outputJSON bool

	firstTime bool
	repoName  string
	waitBuild bool
)

var rootCmd = &cobra.Command{
	Use:   "pages-deploy",
	Short: "Build and publish a frontend to GitHub Pages",
	Long: `Build the frontend and publish its output to the gh-pages branch of the
current GitHub repository.

With --first-time the local git history is re-initialized and a new public
repository is created with the GitHub CLI before the first deployment.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDeploy,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs")

	rootCmd.Flags().BoolVar(&firstTime, "first-time", false, "create the GitHub repository before deploying")
	rootCmd.Flags().StringVar(&repoName, "repo-name", "", "repository name for --first-time (prompted when empty)")
	rootCmd.Flags().BoolVar(&waitBuild, "wait", false, "wait for the GitHub Pages build (needs GITHUB_TOKEN)")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(previewCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		// The workflow has already printed its failure.
		if !errors.Is(err, deploy.ErrFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func getStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "postgres":
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	default:
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	}
}

func getArtifactStore(cfg *config.Config) (*artifact.S3Store, error) {
	return artifact.NewS3Store(artifact.S3Config{
		Endpoint:  cfg.Artifact.Endpoint,
		Region:    cfg.Artifact.Region,
		AccessKey: cfg.Artifact.AccessKey,
		SecretKey: cfg.Artifact.SecretKey,
		Bucket:    cfg.Artifact.Bucket,
		UseSSL:    cfg.Artifact.UseSSL,
	})
}

func publishLayout(cfg *config.Config) publish.Layout {
	return publish.Layout{
		DistDir:   cfg.DistDir,
		EntryFile: cfg.EntryFile,
		AssetsDir: cfg.AssetsDir,
	}
}

func runDeploy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	printer := console.Stdio(verbose)
	runner := command.NewExecRunner()

	var minifier *publish.Minifier
	if cfg.Minify {
		minifier = publish.NewMinifier()
	}

	deps := deploy.Deps{
		GH:        gh.New(runner, cfg.GhBin, wd),
		Git:       git.New(runner, cfg.GitBin, wd),
		Runner:    runner,
		Publisher: publish.New(publishLayout(cfg), minifier),
		Printer:   printer,
		Prompt:    os.Stdin,
	}

	if cfg.GitHubToken != "" {
		deps.Pages = pages.NewClient(cfg.GitHubToken, printer.Log)
	} else if waitBuild {
		printer.Warn("--wait needs GITHUB_TOKEN, not waiting for the Pages build")
	}

	if cfg.Artifact.Enabled() {
		store, err := getArtifactStore(cfg)
		if err != nil {
			printer.Warn("artifact archive disabled: %v", err)
		} else {
			deps.Archiver = store
		}
	}

	if cfg.HistoryEnabled() {
		store, err := getStorage(cfg)
		if err != nil {
			printer.Warn("deployment history disabled: %v", err)
		} else {
			defer store.Close()
			deps.Recorder = store
		}
	}

	workflow := deploy.New(deps, deploy.Settings{
		BuildCommand:     cfg.BuildCommand,
		PagesBranch:      cfg.PagesBranch,
		MainBranch:       cfg.MainBranch,
		Remote:           cfg.Remote,
		RepoNamePrefix:   cfg.RepoNamePrefix,
		PagesWaitTimeout: cfg.PagesWaitTimeout,
		CheckReferences:  true,
	})

	_, err = workflow.Run(cmd.Context(), deploy.Options{
		FirstTime: firstTime,
		RepoName:  repoName,
		Wait:      waitBuild,
	})
	return err
}
