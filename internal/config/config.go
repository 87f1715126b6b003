// Package config handles Reeve configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./reeve.yaml, ~/.config/reeve/reeve.yaml, /etc/reeve/reeve.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"reeve.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "reeve", "reeve.yaml"))
	}

	paths = append(paths, "/etc/reeve/reeve.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Reeve configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Draft     DraftConfig     `yaml:"draft"`
	Search    SearchConfig    `yaml:"search"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Planner   string          `yaml:"planner"` // "rules" (default) or "llm"
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// DraftConfig defines the text-generation backend used for drafting
// replies and summaries.
type DraftConfig struct {
	URL        string `yaml:"url"`   // Ollama-compatible endpoint
	Model      string `yaml:"model"` // Model name (e.g., qwen3:4b)
	TimeoutSec int    `yaml:"timeout_sec"`
}

// SearchConfig defines the web search backend.
type SearchConfig struct {
	URL     string `yaml:"url"`      // SearXNG base URL; empty disables the search tool
	MaxHits int    `yaml:"max_hits"` // Result cap per query (default 5)
}

// WorkspaceConfig defines the root for file tool operations.
// If Path is empty, the file tool is disabled.
type WorkspaceConfig struct {
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Draft: DraftConfig{
			URL:        "http://localhost:11434",
			Model:      "qwen3:4b",
			TimeoutSec: 120,
		},
		Search:  SearchConfig{MaxHits: 5},
		Planner: "rules",
		DataDir: "data",
	}
}
