// Package config 載入 loyaltyd 的 YAML 設定檔
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 環境變數覆寫
const (
	EnvDatabaseDSN   = "LOYALTY_DATABASE_DSN"
	EnvPort          = "PORT"
	EnvPaymentAPIKey = "LOYALTY_PAYMENT_API_KEY"
	EnvLogLevel      = "LOYALTY_LOG_LEVEL"
)

// 支付閘道實作
const (
	PaymentProviderMemory = "memory"
	PaymentProviderHTTP   = "http"
)

// Config loyaltyd 設定
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Payment    PaymentConfig    `yaml:"payment"`
	Redemption RedemptionConfig `yaml:"redemption"`
	Sweep      SweepConfig      `yaml:"sweep"`
	// SeedFile 啟動時載入的租戶 / 獎勵 / 規則種子檔（可為空）
	SeedFile string `yaml:"seed_file"`
}

// ServerConfig HTTP 服務
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// DatabaseConfig 資料庫
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	LogSQL bool   `yaml:"log_sql"`
}

// LogConfig 日誌
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PaymentConfig 支付閘道
type PaymentConfig struct {
	Provider string        `yaml:"provider"`
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RedemptionConfig 兌換 saga
type RedemptionConfig struct {
	// StaleAfter 未到終態的兌換超過此時間由清理排程收尾
	StaleAfter time.Duration `yaml:"stale_after"`
}

// SweepConfig 清理排程
type SweepConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Schedule    string `yaml:"schedule"`
	Concurrency int    `yaml:"concurrency"`
	BatchSize   int    `yaml:"batch_size"`
}

// Default 預設設定
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 20 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			DSN: "file:loyalty.db?_busy_timeout=5000&_foreign_keys=on",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Payment: PaymentConfig{
			Provider: PaymentProviderMemory,
			Timeout:  10 * time.Second,
		},
		Redemption: RedemptionConfig{
			StaleAfter: 5 * time.Minute,
		},
		Sweep: SweepConfig{
			Enabled:     true,
			Schedule:    "@every 1m",
			Concurrency: 4,
			BatchSize:   100,
		},
	}
}

// Load 讀取設定檔；path 為空時只使用預設值與環境變數
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode 未知欄位視為錯誤；空檔案保留預設值
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDatabaseDSN); ok && v != "" {
		c.Database.DSN = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup(EnvPaymentAPIKey); ok && v != "" {
		c.Payment.APIKey = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate 檢查設定
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must be positive"))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, fmt.Errorf("database.dsn is required"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}
	switch c.Payment.Provider {
	case PaymentProviderMemory:
	case PaymentProviderHTTP:
		if c.Payment.APIKey == "" {
			errs = append(errs, fmt.Errorf("payment.api_key (or %s) is required for the http provider", EnvPaymentAPIKey))
		}
	default:
		errs = append(errs, fmt.Errorf("payment.provider must be memory or http, got %q", c.Payment.Provider))
	}
	if c.Payment.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("payment.timeout must be positive"))
	}
	if c.Redemption.StaleAfter <= 0 {
		errs = append(errs, fmt.Errorf("redemption.stale_after must be positive"))
	}
	if c.Redemption.StaleAfter <= c.Payment.Timeout {
		errs = append(errs, fmt.Errorf("redemption.stale_after must exceed payment.timeout"))
	}
	if c.Sweep.Enabled && strings.TrimSpace(c.Sweep.Schedule) == "" {
		errs = append(errs, fmt.Errorf("sweep.schedule is required when the sweeper is enabled"))
	}
	if c.Sweep.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("sweep.concurrency must be positive"))
	}
	if c.Sweep.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("sweep.batch_size must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ParseLevel 解析日誌等級
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level must be debug, info, warn or error, got %q", level)
}

// NewLogger 依設定建立 slog logger
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
