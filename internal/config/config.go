package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glowlens/glowlens-reliability/internal/models"
)

// Config captures the settings required to boot the reliability engine.
type Config struct {
	Server   ServerConfig                     `yaml:"server"`
	Clients  ClientsConfig                    `yaml:"clients"`
	Logging  LoggingConfig                    `yaml:"logging"`
	Monitor  MonitorConfig                    `yaml:"monitor"`
	Recovery map[string]models.RecoveryConfig `yaml:"recovery"`
	Caches   CachesConfig                     `yaml:"caches"`
	Redis    RedisConfig                      `yaml:"redis"`
	Alerts   AlertsConfig                     `yaml:"alerts"`
}

// ServerConfig controls the listener surfaces.
type ServerConfig struct {
	GRPCAddress     string        `yaml:"grpcAddress"`
	HTTPAddress     string        `yaml:"httpAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// ClientsConfig groups the downstream capability endpoints.
type ClientsConfig struct {
	Vision      VisionClientConfig `yaml:"vision"`
	VectorStore VectorStoreConfig  `yaml:"vectorStore"`
}

// VisionClientConfig configures access to the vision analysis API.
type VisionClientConfig struct {
	BaseURL      string        `yaml:"baseURL"`
	AnalyzePath  string        `yaml:"analyzePath"`
	ClassifyPath string        `yaml:"classifyPath"`
	HealthPath   string        `yaml:"healthPath"`
	Timeout      time.Duration `yaml:"timeout"`
}

// VectorStoreConfig configures the embedding index.
type VectorStoreConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	APIKey    string        `yaml:"apiKey"`
	Timeout   time.Duration `yaml:"timeout"`
	SearchTTL time.Duration `yaml:"searchTTL"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MonitorConfig controls the periodic health sweep.
type MonitorConfig struct {
	CheckInterval time.Duration `yaml:"checkInterval"`
	Retention     time.Duration `yaml:"retention"`
}

// CachesConfig sizes the in-process caches.
type CachesConfig struct {
	DemographicSize int           `yaml:"demographicSize"`
	DemographicTTL  time.Duration `yaml:"demographicTTL"`
	SearchSize      int           `yaml:"searchSize"`
	SearchRemoteTTL time.Duration `yaml:"searchRemoteTTL"`
	VectorSize      int           `yaml:"vectorSize"`
	VectorTTL       time.Duration `yaml:"vectorTTL"`
}

// RedisConfig controls the optional shared remote cache tier.
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
}

// AlertsConfig controls rule-pack loading for the alert manager.
type AlertsConfig struct {
	RulesPath string `yaml:"rulesPath"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GLOWLENS_RELIABILITY_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			GRPCAddress:     ":50051",
			HTTPAddress:     ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Clients: ClientsConfig{
			Vision: VisionClientConfig{
				AnalyzePath:  "/api/v1/vision/analyze",
				ClassifyPath: "/api/v1/vision/classify",
				HealthPath:   "/healthz",
				Timeout:      5 * time.Second,
			},
			VectorStore: VectorStoreConfig{
				Timeout:   5 * time.Second,
				SearchTTL: 2 * time.Minute,
			},
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Monitor: MonitorConfig{
			CheckInterval: time.Minute,
			Retention:     24 * time.Hour,
		},
		Recovery: map[string]models.RecoveryConfig{},
		Caches: CachesConfig{
			DemographicSize: 1000,
			DemographicTTL:  30 * time.Minute,
			SearchSize:      500,
			SearchRemoteTTL: 5 * time.Minute,
			VectorSize:      2000,
			VectorTTL:       time.Hour,
		},
		Redis: RedisConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
		},
		Alerts: AlertsConfig{RulesPath: ""},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GLOWLENS_GRPC_ADDRESS"); v != "" {
		cfg.Server.GRPCAddress = v
	}
	if v := os.Getenv("GLOWLENS_HTTP_ADDRESS"); v != "" {
		cfg.Server.HTTPAddress = v
	}
	if v := os.Getenv("GLOWLENS_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("GLOWLENS_VISION_BASE_URL"); v != "" {
		cfg.Clients.Vision.BaseURL = v
	}
	if v := os.Getenv("GLOWLENS_VECTOR_STORE_URL"); v != "" {
		cfg.Clients.VectorStore.Endpoint = v
	}
	if v := os.Getenv("GLOWLENS_VECTOR_STORE_API_KEY"); v != "" {
		cfg.Clients.VectorStore.APIKey = v
	}
	if v := os.Getenv("GLOWLENS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GLOWLENS_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("GLOWLENS_ALERT_RULES_PATH"); v != "" {
		cfg.Alerts.RulesPath = v
	}
	if v := os.Getenv("GLOWLENS_MONITOR_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Monitor.CheckInterval = d
		}
	}
	if v := os.Getenv("GLOWLENS_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("GLOWLENS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("GLOWLENS_REDIS_USERNAME"); v != "" {
		cfg.Redis.Username = v
	}
	if v := os.Getenv("GLOWLENS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("GLOWLENS_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("GLOWLENS_REDIS_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Redis.TLS = true
	}
}

// RecoveryFor returns the policy configured for a service, falling back to the
// package default.
func (c *Config) RecoveryFor(service string) models.RecoveryConfig {
	if cfg, ok := c.Recovery[service]; ok {
		return cfg
	}
	return models.DefaultRecoveryConfig()
}
