package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Downloads  DownloadsConfig  `mapstructure:"downloads"`
	Thumbnails ThumbnailsConfig `mapstructure:"thumbnails"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// CatalogConfig holds the remote catalog endpoint configuration
type CatalogConfig struct {
	URL string `mapstructure:"url"` // Catalog query API base URL
}

// PathsConfig holds the writable directories the core requires
type PathsConfig struct {
	Data       string `mapstructure:"data"`       // Record database directory
	Downloads  string `mapstructure:"downloads"`  // Downloaded video files
	Thumbnails string `mapstructure:"thumbnails"` // Cached thumbnails (backup-excluded)
}

// DownloadsConfig holds download pipeline tuning
type DownloadsConfig struct {
	ProbeTimeoutSeconds int `mapstructure:"probe_timeout_seconds"` // Size probe timeout
	ProgressIntervalMs  int `mapstructure:"progress_interval_ms"`  // Minimum gap between progress reports
}

// ThumbnailsConfig holds thumbnail cache budgets
type ThumbnailsConfig struct {
	DiskBudgetMB   int    `mapstructure:"disk_budget_mb"`   // Disk tier byte budget
	MemoryBudgetMB int    `mapstructure:"memory_budget_mb"` // Memory tier cost budget
	FFmpegBinary   string `mapstructure:"ffmpeg_binary"`    // Frame extractor binary
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			URL: "https://mediathekviewweb.de",
		},
		Paths: PathsConfig{
			Data:       filepath.Join(defaultDataPath(), "db"),
			Downloads:  filepath.Join(defaultDataPath(), "downloads"),
			Thumbnails: filepath.Join(defaultDataPath(), "thumbnails"),
		},
		Downloads: DownloadsConfig{
			ProbeTimeoutSeconds: 15,
			ProgressIntervalMs:  500,
		},
		Thumbnails: ThumbnailsConfig{
			DiskBudgetMB:   200,
			MemoryBudgetMB: 50,
			FFmpegBinary:   "ffmpeg",
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "tvleaf")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "tvleaf")
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	return filepath.Join(defaultDataPath(), "tvleaf.log")
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "tvleaf")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "tvleaf")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("TVLEAF")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()

	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set("catalog.url", cfg.Catalog.URL)
	viper.Set("paths.data", cfg.Paths.Data)
	viper.Set("paths.downloads", cfg.Paths.Downloads)
	viper.Set("paths.thumbnails", cfg.Paths.Thumbnails)
	viper.Set("downloads.probe_timeout_seconds", cfg.Downloads.ProbeTimeoutSeconds)
	viper.Set("downloads.progress_interval_ms", cfg.Downloads.ProgressIntervalMs)
	viper.Set("thumbnails.disk_budget_mb", cfg.Thumbnails.DiskBudgetMB)
	viper.Set("thumbnails.memory_budget_mb", cfg.Thumbnails.MemoryBudgetMB)
	viper.Set("thumbnails.ffmpeg_binary", cfg.Thumbnails.FFmpegBinary)
	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
