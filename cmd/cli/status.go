package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/pages-deploy/internal/command"
	"github.com/kurihiro0119/pages-deploy/internal/domain"
	"github.com/kurihiro0119/pages-deploy/internal/git"
	"github.com/kurihiro0119/pages-deploy/internal/identity"
	"github.com/kurihiro0119/pages-deploy/internal/pages"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the GitHub Pages site of the current repository",
	Long: `Show the GitHub Pages configuration and latest build of the repository
behind the configured git remote. Needs GITHUB_TOKEN.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

type statusReport struct {
	Repository string             `json:"repository"`
	PagesURL   string             `json:"pages_url"`
	Site       *pages.Site        `json:"site,omitempty"`
	Build      *pages.Build       `json:"build,omitempty"`
	LastDeploy *domain.Deployment `json:"last_deploy,omitempty"`
}

func init() {
	statusCmd.Flags().BoolVar(&outputJSON, "json", false, "output in JSON format")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.GitHubToken == "" {
		return fmt.Errorf("GITHUB_TOKEN is required for status")
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	url, err := git.New(command.NewExecRunner(), cfg.GitBin, wd).RemoteURL(ctx, cfg.Remote)
	if err != nil {
		return fmt.Errorf("failed to read remote %s: %w", cfg.Remote, err)
	}
	remote, ok := identity.ParseRemote(url)
	if !ok {
		return fmt.Errorf("remote %s is not a GitHub repository: %s", cfg.Remote, url)
	}

	report := statusReport{
		Repository: remote.FullName(),
		PagesURL:   identity.PagesURL(remote),
	}

	client := pages.NewClient(cfg.GitHubToken, nil)
	var notEnabled *pages.NotEnabledError

	report.Site, err = client.Info(ctx, remote.Owner, remote.Name)
	switch {
	case errors.As(err, &notEnabled):
	case err != nil:
		return err
	default:
		report.Build, err = client.LatestBuild(ctx, remote.Owner, remote.Name)
		if err != nil && !errors.As(err, &notEnabled) {
			return err
		}
	}

	if cfg.HistoryEnabled() {
		if store, err := getStorage(cfg); err == nil {
			recent, err := store.ListDeployments(ctx, domain.DeploymentFilter{
				Owner: remote.Owner,
				Repo:  remote.Name,
				Limit: 1,
			})
			if err == nil && len(recent) > 0 {
				report.LastDeploy = recent[0]
			}
			store.Close()
		}
	}

	if outputJSON {
		return printJSON(report)
	}

	fmt.Printf("\nGitHub Pages: %s\n\n", report.Repository)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"Expected URL", report.PagesURL})
	if report.Site == nil {
		table.Append([]string{"Pages", "not enabled"})
	} else {
		table.Append([]string{"Site URL", report.Site.URL})
		table.Append([]string{"Site Status", report.Site.Status})
		table.Append([]string{"Source", report.Site.Branch + " " + report.Site.Path})
		table.Append([]string{"HTTPS Enforced", fmt.Sprintf("%t", report.Site.HTTPS)})
	}
	if report.Build != nil {
		table.Append([]string{"Latest Build", report.Build.Status})
		table.Append([]string{"Build Commit", report.Build.Commit})
		table.Append([]string{"Built At", formatTime(report.Build.CreatedAt)})
		if report.Build.Error != "" {
			table.Append([]string{"Build Error", report.Build.Error})
		}
	}
	if report.LastDeploy != nil {
		table.Append([]string{"Last Deploy", formatTime(report.LastDeploy.StartedAt) + " " + string(report.LastDeploy.Status)})
	}
	table.Render()
	return nil
}
