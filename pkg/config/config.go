/*
Package config manages TOML config for placeserve.
*/
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/bastiangx/placeserve/pkg/suggest"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Index   IndexConfig   `toml:"index"`
	Suggest SuggestConfig `toml:"suggest"`
	CLI     CliConfig     `toml:"cli"`
	Log     LogConfig     `toml:"log"`
}

// ServerConfig has HTTP front end options.
type ServerConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	DefaultSize int      `toml:"default_size"`
	MaxSize     int      `toml:"max_size"`
	MaxQueryLen int      `toml:"max_query_len"`
	RateRPS     float64  `toml:"rate_rps"`
	RateBurst   int      `toml:"rate_burst"`
	CORSOrigins []string `toml:"cors_origins"`
	// AdminToken guards POST /admin/reload as a bearer token; empty leaves it open.
	AdminToken string `toml:"admin_token"`
}

// IndexConfig holds corpus locations and reload options.
type IndexConfig struct {
	DataDir         string `toml:"data_dir"`
	SnapshotPath    string `toml:"snapshot_path"`
	RefreshInterval string `toml:"refresh_interval"`
	MaxRetries      int    `toml:"max_retries"`
}

// SuggestConfig tunes the query engine.
type SuggestConfig struct {
	FuzzyMaxDistance   int  `toml:"fuzzy_max_distance"`
	FuzzyMinQueryLen   int  `toml:"fuzzy_min_query_len"`
	FuzzyMinCandidates int  `toml:"fuzzy_min_candidates"`
	FuzzySameFirstRune bool `toml:"fuzzy_same_first_rune"`
	CacheSize          int  `toml:"cache_size"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultSize int `toml:"default_size"`
}

// LogConfig selects level and output format.
type LogConfig struct {
	Level     string `toml:"level"`
	Formatter string `toml:"formatter"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/
// 2. ~/Library/Application Support/ (macOS)
// 3. Current executable dir
// 4. builtin defaults
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		execDir, execErr := utils.GetExecutableDir()
		if execErr != nil {
			return "", execErr
		}
		return execDir, nil
	}
	primaryPath := filepath.Join(homeDir, ".config", "placeserve")
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", "placeserve")
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from -config flag
// 2. Default path: [UserConfigDir]/placeserve/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8080,
			DefaultSize: 10,
			MaxSize:     50,
			MaxQueryLen: 256,
			RateRPS:     50,
			RateBurst:   100,
			CORSOrigins: []string{"*"},
		},
		Index: IndexConfig{
			DataDir:         "data/",
			SnapshotPath:    "",
			RefreshInterval: "0s",
			MaxRetries:      3,
		},
		Suggest: SuggestConfig{
			FuzzyMaxDistance:   2,
			FuzzyMinQueryLen:   3,
			FuzzyMinCandidates: 0,
			FuzzySameFirstRune: true,
			CacheSize:          1024,
		},
		CLI: CliConfig{
			DefaultSize: 10,
		},
		Log: LogConfig{
			Level:     "warn",
			Formatter: "text",
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	config.normalize()
	return config, nil
}

// tryPartialParse keeps every well-typed value of a file that failed strict decoding
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if serverSection, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(serverSection, &config.Server)
	}
	if indexSection, ok := utils.ExtractSection(tempConfig, "index"); ok {
		extractIndexConfig(indexSection, &config.Index)
	}
	if suggestSection, ok := utils.ExtractSection(tempConfig, "suggest"); ok {
		extractSuggestConfig(suggestSection, &config.Suggest)
	}
	if cliSection, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		extractCliConfig(cliSection, &config.CLI)
	}
	if logSection, ok := utils.ExtractSection(tempConfig, "log"); ok {
		extractLogConfig(logSection, &config.Log)
	}
	config.normalize()
	return config, nil
}

func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractString(data, "host"); ok {
		server.Host = val
	}
	if val, ok := utils.ExtractInt64(data, "port"); ok {
		server.Port = val
	}
	if val, ok := utils.ExtractInt64(data, "default_size"); ok {
		server.DefaultSize = val
	}
	if val, ok := utils.ExtractInt64(data, "max_size"); ok {
		server.MaxSize = val
	}
	if val, ok := utils.ExtractInt64(data, "max_query_len"); ok {
		server.MaxQueryLen = val
	}
	if val, ok := utils.ExtractFloat(data, "rate_rps"); ok {
		server.RateRPS = val
	}
	if val, ok := utils.ExtractInt64(data, "rate_burst"); ok {
		server.RateBurst = val
	}
	if val, ok := utils.ExtractStrings(data, "cors_origins"); ok {
		server.CORSOrigins = val
	}
	if val, ok := utils.ExtractString(data, "admin_token"); ok {
		server.AdminToken = val
	}
}

func extractIndexConfig(data map[string]any, index *IndexConfig) {
	if val, ok := utils.ExtractString(data, "data_dir"); ok {
		index.DataDir = val
	}
	if val, ok := utils.ExtractString(data, "snapshot_path"); ok {
		index.SnapshotPath = val
	}
	if val, ok := utils.ExtractString(data, "refresh_interval"); ok {
		index.RefreshInterval = val
	}
	if val, ok := utils.ExtractInt64(data, "max_retries"); ok {
		index.MaxRetries = val
	}
}

func extractSuggestConfig(data map[string]any, s *SuggestConfig) {
	if val, ok := utils.ExtractInt64(data, "fuzzy_max_distance"); ok {
		s.FuzzyMaxDistance = val
	}
	if val, ok := utils.ExtractInt64(data, "fuzzy_min_query_len"); ok {
		s.FuzzyMinQueryLen = val
	}
	if val, ok := utils.ExtractInt64(data, "fuzzy_min_candidates"); ok {
		s.FuzzyMinCandidates = val
	}
	if val, ok := utils.ExtractBool(data, "fuzzy_same_first_rune"); ok {
		s.FuzzySameFirstRune = val
	}
	if val, ok := utils.ExtractInt64(data, "cache_size"); ok {
		s.CacheSize = val
	}
}

func extractCliConfig(data map[string]any, cli *CliConfig) {
	if val, ok := utils.ExtractInt64(data, "default_size"); ok {
		cli.DefaultSize = val
	}
}

func extractLogConfig(data map[string]any, l *LogConfig) {
	if val, ok := utils.ExtractString(data, "level"); ok {
		l.Level = val
	}
	if val, ok := utils.ExtractString(data, "formatter"); ok {
		l.Formatter = val
	}
}

// normalize replaces values that would break the server with defaults
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Server.MaxSize <= 0 {
		log.Warnf("Invalid server.max_size %d, using %d", c.Server.MaxSize, def.Server.MaxSize)
		c.Server.MaxSize = def.Server.MaxSize
	}
	if c.Server.DefaultSize <= 0 || c.Server.DefaultSize > c.Server.MaxSize {
		log.Warnf("Invalid server.default_size %d, using %d", c.Server.DefaultSize, min(def.Server.DefaultSize, c.Server.MaxSize))
		c.Server.DefaultSize = min(def.Server.DefaultSize, c.Server.MaxSize)
	}
	if c.Server.MaxQueryLen <= 0 {
		c.Server.MaxQueryLen = def.Server.MaxQueryLen
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		log.Warnf("Invalid server.port %d, using %d", c.Server.Port, def.Server.Port)
		c.Server.Port = def.Server.Port
	}
	if c.CLI.DefaultSize <= 0 {
		c.CLI.DefaultSize = def.CLI.DefaultSize
	}
	if c.Index.MaxRetries < 0 {
		c.Index.MaxRetries = 0
	}
	if _, err := time.ParseDuration(c.Index.RefreshInterval); err != nil && c.Index.RefreshInterval != "" {
		log.Warnf("Invalid index.refresh_interval %q, reload schedule disabled", c.Index.RefreshInterval)
		c.Index.RefreshInterval = "0s"
	}
}

// RefreshEvery is the parsed reload interval; 0 disables scheduled reloads.
func (c *Config) RefreshEvery() time.Duration {
	d, err := time.ParseDuration(c.Index.RefreshInterval)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// EngineOptions maps the [suggest] section to engine options.
func (c *Config) EngineOptions() suggest.Options {
	return suggest.Options{
		FuzzyMaxDistance:   c.Suggest.FuzzyMaxDistance,
		FuzzyMinQueryLen:   c.Suggest.FuzzyMinQueryLen,
		FuzzyMinCandidates: c.Suggest.FuzzyMinCandidates,
		FuzzySameFirstRune: c.Suggest.FuzzySameFirstRune,
		CacheSize:          c.Suggest.CacheSize,
	}
}


// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		return "builtin defaults"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}
