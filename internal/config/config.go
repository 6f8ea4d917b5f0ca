package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	JWTSecret     string           `json:"jwt_secret"`
	PublicBaseURL string           `json:"public_base_url"`
	CORSOrigins   []string         `json:"cors_origins"`
	Database      DatabaseConfig   `json:"database"`
	Sharing       SharingConfig    `json:"sharing"`
	LogConfig     logger.LogConfig `json:"log_config"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type SharingConfig struct {
	// CleanupCron sweeps expired rate-limit entries; standard 5-field spec.
	CleanupCron string `json:"cleanup_cron"`
	// SecurityScanCron runs the access-pattern detectors over the last hour.
	SecurityScanCron string `json:"security_scan_cron"`
	// RecentAuditLimit caps the audit tail returned by the metrics endpoint.
	RecentAuditLimit int `json:"recent_audit_limit"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("public_base_url is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Sharing.CleanupCron == "" {
		cfg.Sharing.CleanupCron = "*/30 * * * *"
	}
	if cfg.Sharing.SecurityScanCron == "" {
		cfg.Sharing.SecurityScanCron = "5 * * * *"
	}
	if cfg.Sharing.RecentAuditLimit == 0 {
		cfg.Sharing.RecentAuditLimit = 50
	}
	return &cfg, nil
}
