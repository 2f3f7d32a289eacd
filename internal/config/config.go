package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Firebase struct {
		ProjectID string `yaml:"project_id"`
		// ServiceAccountJSON holds the service account key inline. Usually
		// populated via ${FIREBASE_SERVICE_ACCOUNT} expansion.
		ServiceAccountJSON string `yaml:"service_account_json"`
	} `yaml:"firebase"`

	Reminder struct {
		ScanPeriodSeconds        int     `yaml:"scan_period_seconds"`
		WarmupDelaySeconds       int     `yaml:"warmup_delay_seconds"`
		MisfireGraceSeconds      int     `yaml:"misfire_grace_seconds"`
		WindowStartOffsetSeconds int     `yaml:"window_start_offset_seconds"`
		WindowEndOffsetSeconds   int     `yaml:"window_end_offset_seconds"`
		SuppressMinutes          int     `yaml:"suppress_minutes"`
		RetentionMinutes         int     `yaml:"retention_minutes"`
		MaxSendAttempts          int     `yaml:"max_send_attempts"`
		BaseBackoffSeconds       int     `yaml:"base_backoff_seconds"`
		SendRatePerSecond        float64 `yaml:"send_rate_per_second"`
		SendBurst                int     `yaml:"send_burst"`
	} `yaml:"reminder"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/getitdone.db"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return &cfg, nil
}

func (c *Config) ScanPeriod() time.Duration {
	if c.Reminder.ScanPeriodSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Reminder.ScanPeriodSeconds) * time.Second
}

func (c *Config) WarmupDelay() time.Duration {
	if c.Reminder.WarmupDelaySeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Reminder.WarmupDelaySeconds) * time.Second
}

func (c *Config) MisfireGrace() time.Duration {
	if c.Reminder.MisfireGraceSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Reminder.MisfireGraceSeconds) * time.Second
}

func (c *Config) WindowStartOffset() time.Duration {
	if c.Reminder.WindowStartOffsetSeconds <= 0 {
		return 9*time.Minute + 30*time.Second
	}
	return time.Duration(c.Reminder.WindowStartOffsetSeconds) * time.Second
}

func (c *Config) WindowEndOffset() time.Duration {
	if c.Reminder.WindowEndOffsetSeconds <= 0 {
		return 10*time.Minute + 30*time.Second
	}
	return time.Duration(c.Reminder.WindowEndOffsetSeconds) * time.Second
}

func (c *Config) SuppressHorizon() time.Duration {
	if c.Reminder.SuppressMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.Reminder.SuppressMinutes) * time.Minute
}

func (c *Config) RetentionHorizon() time.Duration {
	if c.Reminder.RetentionMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Reminder.RetentionMinutes) * time.Minute
}

func (c *Config) MaxSendAttempts() int {
	if c.Reminder.MaxSendAttempts <= 0 {
		return 3
	}
	return c.Reminder.MaxSendAttempts
}

func (c *Config) BaseBackoff() time.Duration {
	if c.Reminder.BaseBackoffSeconds <= 0 {
		return 1 * time.Second
	}
	return time.Duration(c.Reminder.BaseBackoffSeconds) * time.Second
}

func (c *Config) SendRate() float64 {
	if c.Reminder.SendRatePerSecond <= 0 {
		return 20.0
	}
	return c.Reminder.SendRatePerSecond
}

func (c *Config) SendBurst() int {
	if c.Reminder.SendBurst <= 0 {
		return 30
	}
	return c.Reminder.SendBurst
}
