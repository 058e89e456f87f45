package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Metadata backends understood by the serve and tags commands.
const (
	BackendNative   = "native"
	BackendExiftool = "exiftool"
)

type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`
	DBPath          string        `yaml:"db_path"`
	PhotoPath       string        `yaml:"photo_path"`
	MetadataBackend string        `yaml:"metadata_backend"`
	ExiftoolPath    string        `yaml:"exiftool_path"`
	WatchLibrary    bool          `yaml:"watch_library"`
	WatchDebounce   time.Duration `yaml:"watch_debounce"`
	LogLevel        string        `yaml:"log_level"`
	LogFile         string        `yaml:"log_file"`
	LogFormat       string        `yaml:"log_format"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:      ":8080",
		DBPath:          "/data/exifedit.db",
		PhotoPath:       "/data/photos",
		MetadataBackend: BackendNative,
		WatchLibrary:    true,
		WatchDebounce:   500 * time.Millisecond,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE if set, then environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.PhotoPath = getEnv("PHOTO_LOCAL_PATH", cfg.PhotoPath)
	cfg.MetadataBackend = getEnv("METADATA_BACKEND", cfg.MetadataBackend)
	cfg.ExiftoolPath = getEnv("EXIFTOOL_PATH", cfg.ExiftoolPath)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	if v, ok := os.LookupEnv("WATCH_LIBRARY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid WATCH_LIBRARY %q: %w", v, err)
		}
		cfg.WatchLibrary = b
	}
	if v, ok := os.LookupEnv("WATCH_DEBOUNCE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid WATCH_DEBOUNCE %q: %w", v, err)
		}
		cfg.WatchDebounce = d
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.MetadataBackend {
	case BackendNative, BackendExiftool:
	default:
		return fmt.Errorf("unknown metadata backend %q", c.MetadataBackend)
	}
	if c.WatchDebounce < 0 {
		return fmt.Errorf("watch debounce must not be negative")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}
