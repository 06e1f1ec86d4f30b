package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/pages-deploy/internal/aggregator"
	"github.com/kurihiro0119/pages-deploy/internal/config"
	"github.com/kurihiro0119/pages-deploy/internal/domain"
	"github.com/kurihiro0119/pages-deploy/internal/identity"
	"github.com/kurihiro0119/pages-deploy/internal/storage"
	"github.com/kurihiro0119/pages-deploy/pkg/client"
)

var (
	historyRepo   string
	historyLimit  int
	historySince  string
	historyStatus string
	historyAPI    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past deployments",
	Long: `List recorded deployments, newest first. Records are read from the
configured storage, or from the history API server with --api.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one deployment",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show deployment stats per repository",
	Args:  cobra.NoArgs,
	RunE:  runHistoryStats,
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyRepo, "repo", "", "filter by repository (owner/name)")
	historyCmd.PersistentFlags().StringVar(&historySince, "since", "", "only deployments started on or after this date (YYYY-MM-DD)")
	historyCmd.PersistentFlags().BoolVar(&historyAPI, "api", false, "read from the history API (API_ENDPOINT)")
	historyCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of deployments")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status (succeeded, failed)")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyStatsCmd)
}

// historySource is implemented by local storage and by the API client
type historySource interface {
	ListDeployments(ctx context.Context, filter domain.DeploymentFilter) ([]*domain.Deployment, error)
	GetDeployment(ctx context.Context, id string) (*domain.Deployment, error)
	RepoStats(ctx context.Context, owner, repo string, since time.Time) (*domain.RepoStats, error)
	AllRepoStats(ctx context.Context, since time.Time) ([]*domain.RepoStats, error)
	Close() error
}

type remoteHistory struct {
	*client.Client
}

func (r remoteHistory) RepoStats(ctx context.Context, owner, repo string, since time.Time) (*domain.RepoStats, error) {
	return r.GetRepoStats(ctx, owner, repo, since)
}

func (r remoteHistory) AllRepoStats(ctx context.Context, since time.Time) ([]*domain.RepoStats, error) {
	return r.ListRepoStats(ctx, since)
}

func (r remoteHistory) Close() error { return nil }

type localHistory struct {
	storage.Storage
	aggregator.Aggregator
}

func openHistory() (historySource, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if historyAPI {
		return remoteHistory{client.NewClient(cfg.APIEndpoint)}, nil
	}
	if !cfg.HistoryEnabled() {
		return nil, fmt.Errorf("deployment history is disabled (STORAGE_TYPE=none)")
	}

	store, err := getStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return localHistory{Storage: store, Aggregator: aggregator.NewAggregator(store)}, nil
}

func parseHistoryFilter() (domain.DeploymentFilter, error) {
	filter := domain.DeploymentFilter{
		Limit:  historyLimit,
		Status: domain.DeployStatus(historyStatus),
	}
	if historyRepo != "" {
		r, ok := identity.ParseFullName(historyRepo)
		if !ok {
			return filter, fmt.Errorf("--repo must be owner/name, got %q", historyRepo)
		}
		filter.Owner, filter.Repo = r.Owner, r.Name
	}
	since, err := parseSinceFlag()
	if err != nil {
		return filter, err
	}
	filter.Since = since
	return filter, nil
}

func parseSinceFlag() (time.Time, error) {
	if historySince == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", historySince)
	if err != nil {
		return time.Time{}, fmt.Errorf("--since must be YYYY-MM-DD: %w", err)
	}
	return t, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	filter, err := parseHistoryFilter()
	if err != nil {
		return err
	}

	src, err := openHistory()
	if err != nil {
		return err
	}
	defer src.Close()

	deployments, err := src.ListDeployments(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to list deployments: %w", err)
	}

	if outputJSON {
		return printJSON(deployments)
	}
	if len(deployments) == 0 {
		fmt.Println("No deployments recorded yet.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Started", "Repository", "Mode", "Status", "Duration", "Files", "URL"})
	for _, d := range deployments {
		status := string(d.Status)
		if d.FailedStep != "" {
			status += " (" + d.FailedStep + ")"
		}
		table.Append([]string{
			d.ID,
			formatTime(d.StartedAt),
			d.FullName(),
			string(d.Mode),
			status,
			formatDuration(d.Duration()),
			strconv.Itoa(d.FileCount),
			d.URL,
		})
	}
	table.Render()
	return nil
}

// deploymentDetail is a deployment plus the files archived for it
type deploymentDetail struct {
	*domain.Deployment
	Archived []string `json:"archived_files,omitempty"`
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	src, err := openHistory()
	if err != nil {
		return err
	}
	defer src.Close()

	d, err := src.GetDeployment(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	detail := deploymentDetail{Deployment: d}
	if cfg.Artifact.Enabled() {
		detail.Archived, err = archivedFiles(cmd.Context(), cfg, d.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not list archived files: %v\n", err)
		}
	}

	if outputJSON {
		return printJSON(detail)
	}

	fmt.Printf("\nDeployment %s\n\n", d.ID)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"Repository", d.FullName()})
	table.Append([]string{"Mode", string(d.Mode)})
	table.Append([]string{"User", d.Username})
	table.Append([]string{"Status", string(d.Status)})
	if d.FailedStep != "" {
		table.Append([]string{"Failed Step", d.FailedStep})
		table.Append([]string{"Error", d.Error})
	}
	table.Append([]string{"Branch", d.Branch})
	table.Append([]string{"Commit", d.Commit})
	table.Append([]string{"URL", d.URL})
	table.Append([]string{"Files", strconv.Itoa(d.FileCount)})
	table.Append([]string{"Bytes", strconv.FormatInt(d.Bytes, 10)})
	table.Append([]string{"Started", formatTime(d.StartedAt)})
	table.Append([]string{"Duration", formatDuration(d.Duration())})
	table.Render()

	if len(detail.Archived) > 0 {
		fmt.Printf("\nArchived files (%s)\n\n", cfg.Artifact.Bucket)
		files := tablewriter.NewWriter(os.Stdout)
		files.SetHeader([]string{"Path"})
		for _, f := range detail.Archived {
			files.Append([]string{f})
		}
		files.Render()
	}
	return nil
}

func archivedFiles(ctx context.Context, cfg *config.Config, id string) ([]string, error) {
	store, err := getArtifactStore(cfg)
	if err != nil {
		return nil, err
	}
	return store.List(ctx, id)
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	since, err := parseSinceFlag()
	if err != nil {
		return err
	}

	src, err := openHistory()
	if err != nil {
		return err
	}
	defer src.Close()

	var stats []*domain.RepoStats
	if historyRepo != "" {
		r, ok := identity.ParseFullName(historyRepo)
		if !ok {
			return fmt.Errorf("--repo must be owner/name, got %q", historyRepo)
		}
		s, err := src.RepoStats(cmd.Context(), r.Owner, r.Name, since)
		if err != nil {
			return err
		}
		stats = append(stats, s)
	} else {
		stats, err = src.AllRepoStats(cmd.Context(), since)
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}
	}

	if outputJSON {
		return printJSON(stats)
	}
	if len(stats) == 0 {
		fmt.Println("No deployments recorded yet.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Repository", "Total", "Succeeded", "Failed", "Success Rate", "Avg Duration", "Last Deploy", "Top Failure"})
	for _, s := range stats {
		lastDeploy := "-"
		if s.LastDeployedAt != nil {
			lastDeploy = formatTime(*s.LastDeployedAt)
		}
		table.Append([]string{
			s.FullName(),
			strconv.FormatInt(s.Total, 10),
			strconv.FormatInt(s.Succeeded, 10),
			strconv.FormatInt(s.Failed, 10),
			fmt.Sprintf("%.0f%%", s.SuccessRate*100),
			formatDuration(s.AverageDuration),
			lastDeploy,
			topFailure(s.FailuresByStep),
		})
	}
	table.Render()
	return nil
}

func topFailure(byStep map[string]int64) string {
	best, bestN := "-", int64(0)
	for step, n := range byStep {
		if n > bestN || (n == bestN && step < best) {
			best, bestN = step, n
		}
	}
	if bestN == 0 {
		return "-"
	}
	return fmt.Sprintf("%s (%d)", best, bestN)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
