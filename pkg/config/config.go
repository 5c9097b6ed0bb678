package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PollerConfig bounds the comment polling loop.
type PollerConfig struct {
	MinDelay         time.Duration // floor for the adaptive poll interval
	MaxDelay         time.Duration // ceiling for the adaptive poll interval
	MaxIterations    int           // generation rollover boundary
	SeenCap          int           // watermark set size
	GapScanThreshold int           // scanned comments before a missing watermark counts as a gap
	ListingLimit     int           // comments requested per listing page
}

// CoordinatorConfig bounds the per-user increment lanes.
type CoordinatorConfig struct {
	MaxCachedResults int // dedup results kept per rotation
	RotateAfter      int // applies before the cache is compacted
}

// ControlPlaneConfig configures the embedded HTTP server.
type ControlPlaneConfig struct {
	ListenAddr string
	DBPath     string // sqlite audit database
}

// Config is the runtime configuration of the bot.
type Config struct {
	SubredditName      string
	BotUsername        string
	MonthlyPostFlairID string
	TemplatesDir       string
	DataDir            string

	Poller       PollerConfig
	Coordinator  CoordinatorConfig
	ControlPlane ControlPlaneConfig

	LogLevel string
	LogFile  string
}

var globalConfig *Config
var configFilePath string

// SetConfigPath sets the config file path used by Load.
func SetConfigPath(path string) {
	configFilePath = path
}

func GetConfigPath() string {
	return configFilePath
}

// ConfigFile mirrors the YAML/JSON layout on disk.
type ConfigFile struct {
	Subreddit struct {
		Name               string `yaml:"name" json:"name"`
		BotUsername        string `yaml:"bot_username" json:"bot_username"`
		MonthlyPostFlairID string `yaml:"monthly_post_flair_id" json:"monthly_post_flair_id"`
	} `yaml:"subreddit" json:"subreddit"`
	Poller struct {
		MinDelaySeconds  float64 `yaml:"min_delay_seconds" json:"min_delay_seconds"`
		MaxDelaySeconds  float64 `yaml:"max_delay_seconds" json:"max_delay_seconds"`
		MaxIterations    int     `yaml:"max_iterations" json:"max_iterations"`
		SeenCap          int     `yaml:"seen_cap" json:"seen_cap"`
		GapScanThreshold int     `yaml:"gap_scan_threshold" json:"gap_scan_threshold"`
		ListingLimit     int     `yaml:"listing_limit" json:"listing_limit"`
	} `yaml:"poller" json:"poller"`
	Coordinator struct {
		MaxCachedResults int `yaml:"max_cached_results" json:"max_cached_results"`
		RotateAfter      int `yaml:"rotate_after" json:"rotate_after"`
	} `yaml:"coordinator" json:"coordinator"`
	ControlPlane struct {
		ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
		DBPath     string `yaml:"db_path" json:"db_path"`
	} `yaml:"control_plane" json:"control_plane"`
	TemplatesDir string `yaml:"templates_dir" json:"templates_dir"`
	DataDir      string `yaml:"data_dir" json:"data_dir"`
	LogLevel     string `yaml:"log_level" json:"log_level"`
	LogFile      string `yaml:"log_file" json:"log_file"`
}

// Load loads the configuration from the configured path.
func Load() (*Config, error) {
	return LoadFromFile(configFilePath)
}

// LoadFromFile parses filePath (YAML or JSON by extension) and applies
// defaults. An empty path yields pure defaults plus env overrides.
func LoadFromFile(filePath string) (*Config, error) {
	if globalConfig != nil && configFilePath == filePath {
		return globalConfig, nil
	}

	var file ConfigFile
	if filePath != "" {
		raw, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", filePath, err)
		}
		switch strings.ToLower(filepath.Ext(filePath)) {
		case ".json":
			err = json.Unmarshal(raw, &file)
		default:
			err = yaml.Unmarshal(raw, &file)
		}
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", filePath, err)
		}
	}

	cfg := &Config{
		SubredditName:      file.Subreddit.Name,
		BotUsername:        file.Subreddit.BotUsername,
		MonthlyPostFlairID: file.Subreddit.MonthlyPostFlairID,
		TemplatesDir:       file.TemplatesDir,
		DataDir:            file.DataDir,
		Poller: PollerConfig{
			MinDelay:         secondsOr(file.Poller.MinDelaySeconds, 1*time.Second),
			MaxDelay:         secondsOr(file.Poller.MaxDelaySeconds, 16*time.Second),
			MaxIterations:    intOr(file.Poller.MaxIterations, 500),
			SeenCap:          intOr(file.Poller.SeenCap, 1000),
			GapScanThreshold: intOr(file.Poller.GapScanThreshold, 900),
			ListingLimit:     intOr(file.Poller.ListingLimit, 1000),
		},
		Coordinator: CoordinatorConfig{
			MaxCachedResults: intOr(file.Coordinator.MaxCachedResults, 2000),
			RotateAfter:      intOr(file.Coordinator.RotateAfter, 500),
		},
		ControlPlane: ControlPlaneConfig{
			ListenAddr: stringOr(file.ControlPlane.ListenAddr, ":8720"),
			DBPath:     stringOr(file.ControlPlane.DBPath, "data/bot.db"),
		},
		LogLevel: stringOr(file.LogLevel, "info"),
		LogFile:  file.LogFile,
	}
	if cfg.TemplatesDir == "" {
		cfg.TemplatesDir = "mdtemplates"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}

	// Env overrides for deployment without a config file.
	if v := strings.TrimSpace(os.Getenv("SUBREDDIT_NAME")); v != "" {
		cfg.SubredditName = v
	}
	if v := strings.TrimSpace(os.Getenv("MONTHLY_POST_FLAIR_ID")); v != "" {
		cfg.MonthlyPostFlairID = v
	}

	if cfg.SubredditName == "" {
		return nil, fmt.Errorf("subreddit name is required (config subreddit.name or SUBREDDIT_NAME)")
	}

	globalConfig = cfg
	configFilePath = filePath
	return cfg, nil
}

func secondsOr(v float64, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v * float64(time.Second))
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func stringOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
