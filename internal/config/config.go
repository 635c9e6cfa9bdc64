// Package config loads runtime configuration from defaults, a YAML config
// file, environment variables, and command line flags, in ascending
// precedence order.
package config

import (
	"time"

	"dataapi/internal/metadata"
)

// Config is the root configuration for the service.
type Config struct {
	Database DatabaseConfig          `mapstructure:"database"`
	Runtime  RuntimeConfig           `mapstructure:"runtime"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Entities []metadata.EntityConfig `mapstructure:"entities"`
}

// DatabaseConfig holds MySQL connection settings.
type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	PasswordFile string `mapstructure:"password_file"`
	Database     string `mapstructure:"database"`

	// TLSMode is passed through to the driver: "", "false", "true",
	// "skip-verify", or "custom" when TLSCAFile is set.
	TLSMode       string `mapstructure:"tls_mode"`
	TLSCAFile     string `mapstructure:"tls_ca_file"`
	TLSServerName string `mapstructure:"tls_server_name"`

	// SessionClaims propagates JWT string claims as MySQL session
	// variables on a dedicated connection per request.
	SessionClaims bool `mapstructure:"session_claims"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RuntimeConfig holds request handling settings shared by the GraphQL and
// REST entry points.
type RuntimeConfig struct {
	DefaultPageSize uint64        `mapstructure:"default_page_size"`
	MaxPageSize     uint64        `mapstructure:"max_page_size"`
	DevelopmentMode bool          `mapstructure:"development_mode"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`           // debug, info, warn, error
	Format         string `mapstructure:"format"`          // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"` // enable OTLP log export
	ExportEndpoint string `mapstructure:"export_endpoint"` // OTLP HTTP collector, host:port
	ExportInsecure bool   `mapstructure:"export_insecure"` // disable TLS towards the collector
}
