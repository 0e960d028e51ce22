package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server ServerConfig `toml:"server"`
	Data   DataConfig   `toml:"data"`
	Auth   AuthConfig   `toml:"auth"`
	Crawl  CrawlConfig  `toml:"crawl"`
	Task   TaskConfig   `toml:"task"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// DataConfig locates the flat-file stores. Paths are resolved relative to
// Dir unless absolute.
type DataConfig struct {
	Dir           string `toml:"dir"`
	MainPosts     string `toml:"main_posts"`
	FilteredPosts string `toml:"filtered_posts"`
	Labels        string `toml:"labels"`
	LabeledPosts  string `toml:"labeled_posts"`
	History       string `toml:"history"`
	UserHistory   string `toml:"user_history"`
	UsersExport   string `toml:"users_export"`
}

type AuthConfig struct {
	OperatorHandle string `toml:"operator_handle"`
	// Bcrypt hash of the operator password. Empty disables login and
	// leaves mutating endpoints open (development mode).
	OperatorPasswordHash string `toml:"operator_password_hash"`
	JWTSecret            string `toml:"jwt_secret"`
	TokenExpiryMin       int    `toml:"token_expiry_min"`
}

type CrawlConfig struct {
	// MaxUsers caps how many distinct usernames a single matching run
	// takes from the filtered subset.
	MaxUsers int  `toml:"max_users"`
	Enabled  bool `toml:"enabled"`
}

type TaskConfig struct {
	Path string `toml:"path"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Data: DataConfig{
			Dir:           "data",
			MainPosts:     "main_posts.csv",
			FilteredPosts: "filtered_posts.csv",
			Labels:        "label.csv",
			LabeledPosts:  "main_posts_with_labels.csv",
			History:       "all_users_history_data.jsonl",
			UserHistory:   "user_his.csv",
			UsersExport:   "users_export.csv",
		},
		Auth: AuthConfig{
			OperatorHandle: "operator",
			JWTSecret:      "change-me-in-production",
			TokenExpiryMin: 1440, // 24h
		},
		Crawl: CrawlConfig{
			MaxUsers: 7,
			Enabled:  false,
		},
		Task: TaskConfig{
			Path: "data/tasks.db",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Resolve returns the location of a data file, joining relative names
// onto the data dir.
func (d DataConfig) Resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir, name)
}

func (d DataConfig) MainPostsPath() string     { return d.Resolve(d.MainPosts) }
func (d DataConfig) FilteredPostsPath() string { return d.Resolve(d.FilteredPosts) }
func (d DataConfig) LabelsPath() string        { return d.Resolve(d.Labels) }
func (d DataConfig) LabeledPostsPath() string  { return d.Resolve(d.LabeledPosts) }
func (d DataConfig) HistoryPath() string       { return d.Resolve(d.History) }
func (d DataConfig) UserHistoryPath() string   { return d.Resolve(d.UserHistory) }
func (d DataConfig) UsersExportPath() string   { return d.Resolve(d.UsersExport) }
