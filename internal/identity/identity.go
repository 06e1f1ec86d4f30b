// Package identity parses GitHub identities out of CLI output and formats the
// URLs derived from them. Everything here is pure.
package identity

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PlaceholderUsername is used when the authenticated user cannot be determined.
const PlaceholderUsername = "github-user"

// Older gh releases print "Logged in to github.com as alice (oauth_token)",
// newer ones "Logged in to github.com account alice (keyring)".
var usernamePattern = regexp.MustCompile(`Logged in to github\.com (?:as|account) ([A-Za-z0-9][A-Za-z0-9-]*)`)

// Matches both https://github.com/owner/name(.git) and git@github.com:owner/name(.git).
var remotePattern = regexp.MustCompile(`github\.com[:/]([^/\s]+)/([^/\s]+?)(?:\.git)?/?$`)

// Remote identifies a GitHub repository.
type Remote struct {
	Owner string
	Name  string
}

// FullName returns "owner/name".
func (r Remote) FullName() string {
	return r.Owner + "/" + r.Name
}

// ParseUsername extracts the login from `gh auth status` output.
func ParseUsername(output string) (string, bool) {
	m := usernamePattern.FindStringSubmatch(output)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseRemote extracts owner and repository name from a GitHub remote URL in
// either HTTPS or SSH form.
func ParseRemote(url string) (Remote, bool) {
	m := remotePattern.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return Remote{}, false
	}
	if m[1] == "" || m[2] == "" {
		return Remote{}, false
	}
	return Remote{Owner: m[1], Name: m[2]}, true
}

// ParseFullName parses "owner/name" as typed on the command line.
func ParseFullName(s string) (Remote, bool) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Remote{}, false
	}
	return Remote{Owner: owner, Name: name}, true
}

// PagesURL is the project site URL GitHub Pages serves for r.
func PagesURL(r Remote) string {
	return fmt.Sprintf("https://%s.github.io/%s/", r.Owner, r.Name)
}

// HomepageURL is the homepage reported during first-time setup.
func HomepageURL(username, repoName string) string {
	return fmt.Sprintf("https://%s.github.io/%s", username, repoName)
}

// GeneratedRepoName synthesizes a repository name from prefix and the unix
// time in milliseconds.
func GeneratedRepoName(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%d", prefix, now.UnixMilli())
}
