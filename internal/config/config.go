package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const defaultConfigPath = "csvdeploy.toml"
const envOverride = "CSVDEPLOY_CONFIG"

type Config struct {
	Storage  StorageConfig  `toml:"storage"`
	Database DatabaseConfig `toml:"database"`
	Paths    PathsConfig    `toml:"paths"`
	GitHub   GitHubConfig   `toml:"github"`
}

// StorageConfig describes the blob service. Credentials only come from the
// environment and are never read from or written to the TOML file.
type StorageConfig struct {
	AccountURL            string `toml:"account_url" env:"AZURE_STORAGE_ACCOUNT_URL"`
	DataContainer         string `toml:"data_container" env:"AZURE_BLOB_CONTAINER_NAME"`
	ReleaseNotesContainer string `toml:"release_notes_container" env:"AZURE_RELEASE_NOTES_CONTAINER"`
	ConnectionString      string `toml:"-" env:"AZURE_STORAGE_CONNECTION_STRING"`
	SASToken              string `toml:"-" env:"AZURE_SAS_TOKEN"`
	ReleaseNoteSASToken   string `toml:"-" env:"AZURE_SAS_RELEASE_NOTE"`
}

type DatabaseConfig struct {
	Driver                string `toml:"driver" env:"DB_DRIVER"`
	Server                string `toml:"server" env:"DB_SERVER"`
	Port                  int    `toml:"port" env:"DB_PORT"`
	Name                  string `toml:"name" env:"DB_NAME"`
	User                  string `toml:"user" env:"DB_USER"`
	PasswordFile          string `toml:"password_file" env:"DB_PASSWORD_FILE"`
	Password              string `toml:"-" env:"DB_PASSWORD"`
	Table                 string `toml:"table" env:"DB_TABLE_NAME"`
	ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds" env:"DB_CONNECT_TIMEOUT_SECONDS"`
}

type PathsConfig struct {
	DataDir  string `toml:"data_dir" env:"DATA_DIR"`
	LogFile  string `toml:"log_file" env:"DEPLOYMENT_LOG_FILE"`
	NotesDir string `toml:"notes_dir" env:"RELEASE_NOTES_DIR"`
}

type GitHubConfig struct {
	Repository string `toml:"repository" env:"GITHUB_REPOSITORY"`
	ReleaseTag string `toml:"release_tag" env:"RELEASE_TAG"`
	Token      string `toml:"-" env:"GITHUB_TOKEN"`
}

// Enabled reports whether release notes should also be published to GitHub.
func (g GitHubConfig) Enabled() bool {
	return g.Token != "" && g.Repository != "" && g.ReleaseTag != ""
}

// ConnectTimeout returns the database connect timeout.
func (d DatabaseConfig) ConnectTimeout() time.Duration {
	return time.Duration(d.ConnectTimeoutSeconds) * time.Second
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	if p := os.Getenv(envOverride); p != "" {
		return p
	}
	return defaultConfigPath
}

// Load reads a .env file from the working directory if one exists, then
// configuration from the default path.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	return LoadFrom(DefaultPath())
}

// LoadFrom reads configuration from the given TOML file, overlays the
// environment and applies defaults. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	// Apply defaults
	if cfg.Storage.DataContainer == "" {
		cfg.Storage.DataContainer = "devops-tutorial-backup"
	}
	if cfg.Storage.ReleaseNotesContainer == "" {
		cfg.Storage.ReleaseNotesContainer = "release-notes"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlserver"
	}
	if cfg.Database.Table == "" {
		cfg.Database.Table = "Transactions"
	}
	if cfg.Database.ConnectTimeoutSeconds <= 0 {
		cfg.Database.ConnectTimeoutSeconds = 5
	}
	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = "data"
	}
	if cfg.Paths.LogFile == "" {
		cfg.Paths.LogFile = "deployment_log.json"
	}
	if cfg.Paths.NotesDir == "" {
		cfg.Paths.NotesDir = "."
	}

	// Resolve database password from file when not given directly
	if cfg.Database.Password == "" && cfg.Database.PasswordFile != "" {
		pwData, err := os.ReadFile(cfg.Database.PasswordFile)
		if err != nil {
			return nil, fmt.Errorf("reading database password from %s: %w", cfg.Database.PasswordFile, err)
		}
		cfg.Database.Password = strings.TrimSpace(string(pwData))
		if cfg.Database.Password == "" {
			return nil, fmt.Errorf("config: database password file %s is empty", cfg.Database.PasswordFile)
		}
	}

	return &cfg, nil
}

// RequireDataStorage checks the credentials needed to reach the data container.
func (c *Config) RequireDataStorage() error {
	return c.Storage.require(c.Storage.SASToken, "AZURE_SAS_TOKEN")
}

// RequireReleaseNoteStorage checks the credentials needed to reach the
// release-notes container.
func (c *Config) RequireReleaseNoteStorage() error {
	return c.Storage.require(c.Storage.ReleaseNoteSASToken, "AZURE_SAS_RELEASE_NOTE")
}

func (s StorageConfig) require(sas, sasVar string) error {
	if sas != "" && s.AccountURL != "" {
		return nil
	}
	if s.ConnectionString != "" {
		return nil
	}
	if sas == "" {
		return fmt.Errorf("config: %s (or AZURE_STORAGE_CONNECTION_STRING) is required", sasVar)
	}
	return fmt.Errorf("config: AZURE_STORAGE_ACCOUNT_URL is required when using %s", sasVar)
}

// RequireDatabase checks that a database target is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.Name == "" {
		return fmt.Errorf("config: DB_NAME is required")
	}
	if c.Database.Driver == "sqlite" {
		return nil
	}
	if c.Database.Server == "" {
		return fmt.Errorf("config: DB_SERVER is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: DB_USER is required")
	}
	return nil
}

// TemplateConfig returns a TOML template with placeholder values for first-time setup.
// Secrets stay in the environment (AZURE_SAS_TOKEN, AZURE_SAS_RELEASE_NOTE,
// DB_PASSWORD, GITHUB_TOKEN).
func TemplateConfig() string {
	return `[storage]
account_url             = "https://youraccount.blob.core.windows.net"
data_container          = "devops-tutorial-backup"
release_notes_container = "release-notes"

[database]
driver                  = "sqlserver"
server                  = "yourserver.database.windows.net"
name                    = "devops-db"
user                    = "devops-admin"
password_file           = "/run/secrets/db_password"
table                   = "Transactions"
connect_timeout_seconds = 5

[paths]
data_dir  = "data"
log_file  = "deployment_log.json"
notes_dir = "."

[github]
repository  = ""
release_tag = ""
`
}
