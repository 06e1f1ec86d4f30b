package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// External tools
	GhBin        string
	GitBin       string
	BuildCommand []string

	// Build output layout
	DistDir   string
	EntryFile string
	AssetsDir string
	SourceDir string

	// Branches
	PagesBranch string
	MainBranch  string
	Remote      string

	// First-time setup
	RepoNamePrefix string

	// Publishing
	Minify bool

	// GitHub REST API (optional)
	GitHubToken      string
	PagesWaitTimeout time.Duration

	// Storage
	StorageType string // "sqlite", "postgres" or "none"
	SQLitePath  string
	PostgresURL string

	// API Server
	APIPort string
	APIHost string

	// CLI
	APIEndpoint string

	// Artifact archive (optional)
	Artifact ArtifactConfig
}

// ArtifactConfig configures the S3-compatible archive of published files
type ArtifactConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether enough is configured to reach the bucket
func (a ArtifactConfig) Enabled() bool {
	return a.Endpoint != "" && a.AccessKey != "" && a.SecretKey != ""
}

// Load loads the configuration from environment variables. Files are read
// with godotenv first; with no files, .env is tried.
func Load(files ...string) (*Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return nil, err
		}
	} else {
		// Load .env file if it exists (ignore error if not found)
		_ = godotenv.Load()
	}

	return &Config{
		GhBin:            getEnv("GH_BIN", "gh"),
		GitBin:           getEnv("GIT_BIN", "git"),
		BuildCommand:     strings.Fields(getEnv("BUILD_COMMAND", "deno task build")),
		DistDir:          getEnv("DIST_DIR", "dist"),
		EntryFile:        getEnv("ENTRY_FILE", "index.html"),
		AssetsDir:        getEnv("ASSETS_DIR", "assets"),
		SourceDir:        getEnv("SOURCE_DIR", "src"),
		PagesBranch:      getEnv("PAGES_BRANCH", "gh-pages"),
		MainBranch:       getEnv("MAIN_BRANCH", "main"),
		Remote:           getEnv("GIT_REMOTE", "origin"),
		RepoNamePrefix:   getEnv("REPO_NAME_PREFIX", "deno-react-app"),
		Minify:           getBool("MINIFY", false),
		GitHubToken:      getEnv("GITHUB_TOKEN", ""),
		PagesWaitTimeout: getDuration("PAGES_WAIT_TIMEOUT", 10*time.Minute),
		StorageType:      getEnv("STORAGE_TYPE", "sqlite"),
		SQLitePath:       getEnv("SQLITE_PATH", defaultSQLitePath()),
		PostgresURL:      getEnv("POSTGRES_URL", ""),
		APIPort:          getEnv("API_PORT", "8080"),
		APIHost:          getEnv("API_HOST", "localhost"),
		APIEndpoint:      getEnv("API_ENDPOINT", "http://localhost:8080"),
		Artifact: ArtifactConfig{
			Endpoint:  getEnv("ARTIFACT_S3_ENDPOINT", ""),
			Region:    getEnv("ARTIFACT_S3_REGION", "us-east-1"),
			AccessKey: getEnv("ARTIFACT_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("ARTIFACT_S3_SECRET_KEY", ""),
			Bucket:    getEnv("ARTIFACT_S3_BUCKET", "pages-deploy-artifacts"),
			UseSSL:    getBool("ARTIFACT_S3_USE_SSL", true),
		},
	}, nil
}

// defaultSQLitePath keeps the history database out of the working tree, which
// is staged wholesale on every publish.
func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "pages-deploy", "history.db")
	}
	return filepath.Join(home, ".pages-deploy", "history.db")
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// HistoryEnabled reports whether deployments are recorded
func (c *Config) HistoryEnabled() bool {
	return c.StorageType != "none"
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.BuildCommand) == 0 {
		return &ConfigError{Field: "BUILD_COMMAND", Message: "build command is required"}
	}
	if c.PagesBranch == c.MainBranch {
		return &ConfigError{Field: "PAGES_BRANCH", Message: "must differ from MAIN_BRANCH"}
	}
	if filepath.IsAbs(c.AssetsDir) || filepath.IsAbs(c.EntryFile) {
		return &ConfigError{Field: "ASSETS_DIR", Message: "entry file and assets dir must be relative to DIST_DIR"}
	}
	switch c.StorageType {
	case "sqlite", "postgres", "none":
	default:
		return &ConfigError{Field: "STORAGE_TYPE", Message: "must be 'sqlite', 'postgres' or 'none'"}
	}
	if c.StorageType == "postgres" && c.PostgresURL == "" {
		return &ConfigError{Field: "POSTGRES_URL", Message: "PostgreSQL URL is required when STORAGE_TYPE is 'postgres'"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
