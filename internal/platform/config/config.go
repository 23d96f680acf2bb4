// Package config loads process configuration from an optional YAML file and
// HOUSEHEALTH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. HOUSEHEALTH_STORAGE_BACKEND.
const EnvPrefix = "HOUSEHEALTH"

// EnvConfigFile names an optional YAML file read before the environment.
const EnvConfigFile = "HOUSEHEALTH_CONFIG"

const minJWTSecretLength = 32

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Auth    AuthConfig    `mapstructure:"auth"`

	// AdminEmails are promoted to ADMIN at startup once registered.
	AdminEmails []string `mapstructure:"admin_emails" validate:"dive,email"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	LogLevel        string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format" validate:"oneof=text json"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type StorageConfig struct {
	Backend     string `mapstructure:"backend" validate:"oneof=memory postgres sqlite"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Backend postgres"`
	SQLitePath  string `mapstructure:"sqlite_path" validate:"required_if=Backend sqlite"`
	MaxConns    int32  `mapstructure:"max_conns" validate:"gte=0"`

	IdempotencyRetention time.Duration `mapstructure:"idempotency_retention" validate:"gt=0"`
}

// AuthConfig selects how request subjects are established.
// In "jwt" mode bearer tokens are HS256-verified; in "dev" mode the X-Debug-Subject
// header is trusted and must never be enabled in production.
type AuthConfig struct {
	Mode      string        `mapstructure:"mode" validate:"oneof=jwt dev"`
	JWTSecret string        `mapstructure:"jwt_secret" validate:"required_if=Mode jwt"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
	ClockSkew time.Duration `mapstructure:"clock_skew" validate:"gte=0"`

	// DevSubject is used in dev mode when a request carries no X-Debug-Subject.
	DevSubject string `mapstructure:"dev_subject"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.sqlite_path", "data/househealth.db")
	v.SetDefault("storage.max_conns", 10)
	v.SetDefault("storage.idempotency_retention", 24*time.Hour)

	v.SetDefault("auth.mode", "jwt")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "househealth")
	v.SetDefault("auth.audience", "househealth-api")
	v.SetDefault("auth.clock_skew", 30*time.Second)
	v.SetDefault("auth.dev_subject", "")

	v.SetDefault("admin_emails", []string{})
}

// Load reads configuration. Environment variables take precedence over the file.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(EnvConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Server.LogLevel = strings.ToLower(cfg.Server.LogLevel)
	cfg.AdminEmails = compact(cfg.AdminEmails)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Auth.Mode == "jwt" && len(cfg.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("invalid config: auth.jwt_secret must be at least %d bytes", minJWTSecretLength)
	}
	return nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
