package domain

import "time"

// RepoStats summarizes the deployment history of one repository
type RepoStats struct {
	Owner           string        `json:"owner"`
	Repo            string        `json:"repo"`
	Total           int64         `json:"total"`
	Succeeded       int64         `json:"succeeded"`
	Failed          int64         `json:"failed"`
	SuccessRate     float64       `json:"success_rate"`
	AverageDuration time.Duration `json:"average_duration"`
	LastDeployedAt  *time.Time    `json:"last_deployed_at,omitempty"`
	LastSuccessAt   *time.Time    `json:"last_success_at,omitempty"`
	LastURL         string        `json:"last_url,omitempty"`
	// FailuresByStep counts failed runs by the step that stopped them
	FailuresByStep map[string]int64 `json:"failures_by_step,omitempty"`
}

// FullName returns "owner/repo"
func (s *RepoStats) FullName() string {
	return s.Owner + "/" + s.Repo
}
