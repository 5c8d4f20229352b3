package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Tools     ToolsConfig     `yaml:"tools"`
	Resources ResourcesConfig `yaml:"resources"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Host    string `yaml:"host" env:"GENBI_MCP_HOST"`
	Port    int    `yaml:"port" env:"GENBI_MCP_PORT"`
	Name    string `yaml:"name" env:"GENBI_MCP_NAME"`
	Version string `yaml:"version"`
}

// SessionConfig はセッションのタイムアウト設定
type SessionConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" env:"GENBI_MCP_HANDSHAKE_TIMEOUT"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" env:"GENBI_MCP_IDLE_TIMEOUT"`
	ShutdownGrace    time.Duration `yaml:"shutdown_grace" env:"GENBI_MCP_SHUTDOWN_GRACE"`
	CallTimeout      time.Duration `yaml:"call_timeout" env:"GENBI_MCP_CALL_TIMEOUT"`
}

// ToolsConfig は組み込みツールの設定
type ToolsConfig struct {
	Workspace           string        `yaml:"workspace" env:"GENBI_MCP_WORKSPACE"`
	RestrictToWorkspace bool          `yaml:"restrict_to_workspace" env:"GENBI_MCP_RESTRICT_TO_WORKSPACE"`
	HTTPTimeout         time.Duration `yaml:"http_timeout" env:"GENBI_MCP_HTTP_TIMEOUT"`
	HTTPMaxBodyBytes    int64         `yaml:"http_max_body_bytes" env:"GENBI_MCP_HTTP_MAX_BODY_BYTES"`
}

// ResourcesConfig はリソース公開の設定。
// Rootが空の場合はディレクトリリソースを公開しない
type ResourcesConfig struct {
	Root string `yaml:"root" env:"GENBI_MCP_RESOURCES_ROOT"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string `yaml:"level" env:"GENBI_MCP_LOG_LEVEL"`
	Format string `yaml:"format" env:"GENBI_MCP_LOG_FORMAT"`
}

// LoadConfig は設定を読み込む。
// pathが空の場合はファイルを読まずデフォルトと環境変数のみ使用。
// 優先順位は 環境変数 > ファイル > デフォルト
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults はデフォルト値を設定
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Name == "" {
		c.Server.Name = "genbi-mcp"
	}
	if c.Server.Version == "" {
		c.Server.Version = "dev"
	}

	if c.Session.HandshakeTimeout == 0 {
		c.Session.HandshakeTimeout = 10 * time.Second
	}
	if c.Session.IdleTimeout == 0 {
		c.Session.IdleTimeout = 5 * time.Minute
	}
	if c.Session.ShutdownGrace == 0 {
		c.Session.ShutdownGrace = 5 * time.Second
	}
	if c.Session.CallTimeout == 0 {
		c.Session.CallTimeout = 30 * time.Second
	}

	if c.Tools.Workspace == "" {
		c.Tools.Workspace = "./workspace"
	}
	if c.Tools.HTTPTimeout == 0 {
		c.Tools.HTTPTimeout = 30 * time.Second
	}
	if c.Tools.HTTPMaxBodyBytes == 0 {
		c.Tools.HTTPMaxBodyBytes = 1 << 20
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate は設定の妥当性を検証
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.Session.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake_timeout must be positive")
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive")
	}
	if c.Session.ShutdownGrace <= 0 {
		return fmt.Errorf("shutdown_grace must be positive")
	}
	if c.Session.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Log.Format)
	}
	return nil
}
