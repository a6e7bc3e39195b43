package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Assistant   AssistantConfig           `json:"assistant"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type BasicConfig struct {
	ServerAddress   string `json:"server_address"`
	DefaultProvider string `json:"default_provider"`
}

// AssistantConfig tunes the orchestration pipeline.
type AssistantConfig struct {
	// RecallLimit bounds how many memory entries feed into a briefing.
	RecallLimit int `json:"recall_limit"`
	// SummaryMinMessages is the minimum stored messages before a cleared
	// session is worth summarizing.
	SummaryMinMessages int `json:"summary_min_messages"`
	// SnapshotTTLSeconds is the cache lifetime of the business snapshot.
	SnapshotTTLSeconds int `json:"snapshot_ttl_seconds"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("at least one database must be configured")
	}
	if cfg.BasicConfig.DefaultProvider == "" {
		cfg.BasicConfig.DefaultProvider = "openai"
	}
	applyAssistantDefaults(&cfg.Assistant)
	return &cfg, nil
}

func applyAssistantDefaults(a *AssistantConfig) {
	if a.RecallLimit <= 0 {
		a.RecallLimit = 5
	}
	if a.SummaryMinMessages <= 0 {
		a.SummaryMinMessages = 4
	}
	if a.SnapshotTTLSeconds <= 0 {
		a.SnapshotTTLSeconds = 30
	}
}
