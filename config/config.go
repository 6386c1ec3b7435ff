package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/sitehost/blobstore"
	"github.com/sagarc03/sitehost/database"
	sitehosthttp "github.com/sagarc03/sitehost/http"
	"github.com/sagarc03/sitehost/identity"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for sitehost.
type Config struct {
	Env      string                  `mapstructure:"env" validate:"required,oneof=dev prod"`
	Server   ServerConfig            `mapstructure:"server"`
	Service  ServiceConfig           `mapstructure:"service"`
	Database DatabaseConfig          `mapstructure:"database"`
	Storage  StorageConfig           `mapstructure:"storage"`
	Auth     AuthConfig              `mapstructure:"auth"`
	CORS     sitehosthttp.CORSConfig `mapstructure:"cors"`
	Metrics  MetricsConfig           `mapstructure:"metrics"`
	Log      LogConfig               `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	BaseURL       string `mapstructure:"base_url" validate:"omitempty,http_url"`
	MaxUploadSize int64  `mapstructure:"max_upload_size" validate:"min=1"`
	SecureCookies bool   `mapstructure:"secure_cookies"`
	ContentOrigin string `mapstructure:"content_origin" validate:"omitempty,http_url"` // Separate origin for hosted sites
}

// ServiceConfig holds site service and sweeper configuration.
type ServiceConfig struct {
	CleanupTimeout   time.Duration `mapstructure:"cleanup_timeout" validate:"min=1s"`
	SweepSchedule    string        `mapstructure:"sweep_schedule"` // Cron expression; empty disables the sweeper
	SweepGracePeriod time.Duration `mapstructure:"sweep_grace_period" validate:"min=0"`
}

// DatabaseConfig selects the registry backend.
type DatabaseConfig struct {
	database.Config `mapstructure:",squash"`
	AutoMigrate     bool `mapstructure:"auto_migrate"`
}

// StorageConfig selects the content store backend.
type StorageConfig struct {
	blobstore.Config `mapstructure:",squash"`
}

// AuthConfig holds session and sign-in configuration.
type AuthConfig struct {
	SessionSecret     string              `mapstructure:"session_secret" validate:"omitempty,min=32"` // Required by serve only
	SessionTTL        time.Duration       `mapstructure:"session_ttl" validate:"min=1m"`
	MinPasswordLength int                 `mapstructure:"min_password_length" validate:"min=1,max=72"`
	SignInRate        float64             `mapstructure:"sign_in_rate" validate:"min=0"`
	SignInBurst       int                 `mapstructure:"sign_in_burst" validate:"min=1"`
	Keys              identity.KeysConfig `mapstructure:"keys"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":         "database.type",
	"db-dsn":          "database.dsn",
	"storage-backend": "storage.backend",
	"storage-path":    "storage.path",
	"port":            "server.port",
	"base-url":        "server.base_url",
	"content-origin":  "server.content_origin",
	"log-level":       "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Every key
// that may come from the environment needs a default, or AutomaticEnv
// never looks it up.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 5708)
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.max_upload_size", sitehosthttp.DefaultMaxUploadSize)
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("server.content_origin", "")

	v.SetDefault("service.cleanup_timeout", 30*time.Second)
	v.SetDefault("service.sweep_schedule", "@hourly")
	v.SetDefault("service.sweep_grace_period", time.Hour)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "sitehost.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.tables.sites", "sites")
	v.SetDefault("database.tables.users", "users")
	v.SetDefault("database.tables.roles", "user_roles")

	v.SetDefault("storage.backend", blobstore.BackendFilesystem)
	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("storage.gcs.credentials_file", "")
	v.SetDefault("storage.gcs.endpoint", "")
	v.SetDefault("storage.gcs.prefix", "")
	v.SetDefault("storage.azure.container", "")
	v.SetDefault("storage.azure.account_name", "")
	v.SetDefault("storage.azure.account_key", "")
	v.SetDefault("storage.azure.connection_string", "")
	v.SetDefault("storage.azure.service_url", "")
	v.SetDefault("storage.azure.prefix", "")

	v.SetDefault("auth.session_secret", "")
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.min_password_length", 8)
	v.SetDefault("auth.sign_in_rate", 0.2)
	v.SetDefault("auth.sign_in_burst", 5)
	v.SetDefault("auth.keys.file", "")

	v.SetDefault("cors.enabled", false)
	v.SetDefault("metrics.enabled", false)

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	v.SetEnvPrefix("SITEHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Server.ContentOrigin != "" {
		content, err := sitehosthttp.ParseContentOrigin(c.Server.ContentOrigin)
		if err != nil {
			return fmt.Errorf("server.content_origin: %w", err)
		}
		if c.Server.BaseURL != "" {
			if base, err := url.Parse(c.Server.BaseURL); err == nil && strings.EqualFold(base.Host, content.Host) {
				return errors.New("server.content_origin must be a different host from server.base_url")
			}
		}
	}

	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.type must be sqlite or postgres, got %q", c.Database.Type)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if err := c.Database.Tables.Validate(); err != nil {
		return err
	}

	if c.Service.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.Service.SweepSchedule); err != nil {
			return fmt.Errorf("service.sweep_schedule: %w", err)
		}
	}

	switch c.Storage.Backend {
	case blobstore.BackendFilesystem:
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for the filesystem backend")
		}
	case blobstore.BackendS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for the s3 backend")
		}
	case blobstore.BackendGCS:
		if c.Storage.GCS.Bucket == "" {
			return errors.New("storage.gcs.bucket is required for the gcs backend")
		}
	case blobstore.BackendAzure:
		if c.Storage.Azure.Container == "" {
			return errors.New("storage.azure.container is required for the azure backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of filesystem, s3, gcs, azure, got %q", c.Storage.Backend)
	}

	return nil
}
