package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseUsername(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
		wantOK bool
	}{
		{
			name:   "legacy format",
			output: "github.com\n  ✓ Logged in to github.com as alice (oauth_token)\n",
			want:   "alice",
			wantOK: true,
		},
		{
			name:   "bare sentence",
			output: "Logged in to github.com as alice",
			want:   "alice",
			wantOK: true,
		},
		{
			name:   "account format",
			output: "github.com\n  ✓ Logged in to github.com account bob-smith (keyring)\n",
			want:   "bob-smith",
			wantOK: true,
		},
		{
			name:   "enterprise host only",
			output: "Logged in to ghe.example.com as carol",
			wantOK: false,
		},
		{
			name:   "not logged in",
			output: "You are not logged into any GitHub hosts. Run gh auth login to authenticate.",
			wantOK: false,
		},
		{
			name:   "empty",
			output: "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseUsername(tt.output)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRemote(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		want   Remote
		wantOK bool
	}{
		{"ssh with .git", "git@github.com:owner/project.git", Remote{"owner", "project"}, true},
		{"ssh without .git", "git@github.com:owner/project", Remote{"owner", "project"}, true},
		{"https with .git", "https://github.com/owner/project.git", Remote{"owner", "project"}, true},
		{"https without .git", "https://github.com/owner/project", Remote{"owner", "project"}, true},
		{"https trailing slash", "https://github.com/owner/project/", Remote{"owner", "project"}, true},
		{"ssh url form", "ssh://git@github.com/owner/project.git", Remote{"owner", "project"}, true},
		{"dotted repo name", "git@github.com:owner/my.site.git", Remote{"owner", "my.site"}, true},
		{"trailing newline", "https://github.com/owner/project.git\n", Remote{"owner", "project"}, true},
		{"gitlab", "git@gitlab.com:owner/project.git", Remote{}, false},
		{"local path", "/srv/git/project.git", Remote{}, false},
		{"missing repo", "https://github.com/owner", Remote{}, false},
		{"empty", "", Remote{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRemote(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPagesURL(t *testing.T) {
	for _, url := range []string{
		"git@github.com:owner/project.git",
		"https://github.com/owner/project.git",
	} {
		r, ok := ParseRemote(url)
		assert.True(t, ok, url)
		assert.Equal(t, "https://owner.github.io/project/", PagesURL(r))
	}
}

func TestParseFullName(t *testing.T) {
	r, ok := ParseFullName("owner/project")
	assert.True(t, ok)
	assert.Equal(t, "owner/project", r.FullName())

	for _, bad := range []string{"", "owner", "/project", "owner/", "a/b/c"} {
		_, ok := ParseFullName(bad)
		assert.False(t, ok, bad)
	}
}

func TestHomepageURL(t *testing.T) {
	assert.Equal(t, "https://alice.github.io/my-app", HomepageURL("alice", "my-app"))
}

func TestGeneratedRepoName(t *testing.T) {
	ts := time.UnixMilli(1743065812345)
	assert.Equal(t, "deno-react-app-1743065812345", GeneratedRepoName("deno-react-app", ts))
}
