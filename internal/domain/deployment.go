package domain

import "time"

// DeployMode distinguishes first-time setup from a routine redeploy
type DeployMode string

const (
	DeployModeFirstTime DeployMode = "first_time"
	DeployModeRedeploy  DeployMode = "redeploy"
)

// DeployStatus is the outcome of a deployment run
type DeployStatus string

const (
	DeployStatusSucceeded DeployStatus = "succeeded"
	DeployStatusFailed    DeployStatus = "failed"
)

// Deployment is the history record of one run
type Deployment struct {
	ID         string       `json:"id"`
	Mode       DeployMode   `json:"mode"`
	Owner      string       `json:"owner"`
	Repo       string       `json:"repo"`
	Username   string       `json:"username"`
	Branch     string       `json:"branch"`
	Commit     string       `json:"commit"`
	URL        string       `json:"url"`
	Status     DeployStatus `json:"status"`
	FailedStep string       `json:"failed_step,omitempty"`
	Error      string       `json:"error,omitempty"`
	FileCount  int          `json:"file_count"`
	Bytes      int64        `json:"bytes"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Duration returns how long the run took
func (d *Deployment) Duration() time.Duration {
	if d.FinishedAt.IsZero() {
		return 0
	}
	return d.FinishedAt.Sub(d.StartedAt)
}

// FullName returns "owner/repo", or "" when the repository is unknown
func (d *Deployment) FullName() string {
	if d.Owner == "" || d.Repo == "" {
		return d.Repo
	}
	return d.Owner + "/" + d.Repo
}

// DeploymentFilter narrows a history query
type DeploymentFilter struct {
	Owner  string
	Repo   string
	Status DeployStatus
	Since  time.Time
	Limit  int
}
