package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config captures the runtime settings for lendpoold.
type Config struct {
	RPCAddress        string  `toml:"RPCAddress"`
	MetricsAddress    string  `toml:"MetricsAddress"`
	DataDir           string  `toml:"DataDir"`
	GenesisFile       string  `toml:"GenesisFile"`
	Environment       string  `toml:"Environment"`
	LogFile           string  `toml:"LogFile"`
	LogMaxSizeMB      int     `toml:"LogMaxSizeMB"`
	LogMaxBackups     int     `toml:"LogMaxBackups"`
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	RateLimitBurst    int     `toml:"RateLimitBurst"`

	// AuthToken is never persisted; it comes from the environment.
	AuthToken string `toml:"-"`
}

const (
	envAuthToken      = "LENDPOOL_RPC_TOKEN"
	envRPCAddress     = "LENDPOOL_RPC_ADDRESS"
	envMetricsAddress = "LENDPOOL_METRICS_ADDRESS"
	envDataDir        = "LENDPOOL_DATA_DIR"
	envEnvironment    = "LENDPOOL_ENV"

	defaultRPCAddress        = ":8080"
	defaultMetricsAddress    = ":9090"
	defaultDataDir           = "./lendpool-data"
	defaultEnvironment       = "local"
	defaultRequestsPerMinute = 600
	defaultRateLimitBurst    = 20
)

// Load loads the configuration from the given path, creating a default file
// when none exists. Environment variables override the file for deployment
// addresses and supply the RPC auth token.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		created, createErr := createDefault(path)
		if createErr != nil {
			return nil, createErr
		}
		cfg = created
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s contains unknown key %q", path, undecoded[0].String())
		}
	}

	cfg.RPCAddress = stringFromEnv(envRPCAddress, cfg.RPCAddress)
	cfg.MetricsAddress = stringFromEnv(envMetricsAddress, cfg.MetricsAddress)
	cfg.DataDir = stringFromEnv(envDataDir, cfg.DataDir)
	cfg.Environment = stringFromEnv(envEnvironment, cfg.Environment)
	cfg.AuthToken = strings.TrimSpace(os.Getenv(envAuthToken))

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the configuration is internally consistent.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		return fmt.Errorf("RPCAddress must not be empty")
	}
	if cfg.RequestsPerMinute < 0 {
		return fmt.Errorf("RequestsPerMinute must be non-negative")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RateLimitBurst must be non-negative")
	}
	if cfg.LogMaxSizeMB < 0 || cfg.LogMaxBackups < 0 {
		return fmt.Errorf("log rotation settings must be non-negative")
	}
	return nil
}

// Sanitized returns a copy of the Config with secrets masked for logging.
func (cfg Config) Sanitized() Config {
	clone := cfg
	if clone.AuthToken != "" {
		clone.AuthToken = "***"
	}
	return clone
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = defaultMetricsAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = defaultEnvironment
	}
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = defaultRequestsPerMinute
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = defaultRateLimitBurst
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:        defaultRPCAddress,
		MetricsAddress:    defaultMetricsAddress,
		DataDir:           defaultDataDir,
		GenesisFile:       "",
		Environment:       defaultEnvironment,
		RequestsPerMinute: defaultRequestsPerMinute,
		RateLimitBurst:    defaultRateLimitBurst,
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func stringFromEnv(key, fallback string) string {
	trimmed := strings.TrimSpace(os.Getenv(key))
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
