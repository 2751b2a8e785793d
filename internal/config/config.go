// Package config loads the atlas server configuration from defaults, an
// optional config file, a .env file and ATLAS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/signalsfoundry/libya-atlas/internal/logging"
	"github.com/signalsfoundry/libya-atlas/internal/observability"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, so data.csv is read
// from ATLAS_DATA_CSV.
const EnvPrefix = "ATLAS"

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full server configuration.
type Config struct {
	HTTPAddr       string         `mapstructure:"http_addr" validate:"required"`
	GRPCAddr       string         `mapstructure:"grpc_addr" validate:"required"`
	MetricsAddr    string         `mapstructure:"metrics_addr"`
	AllowedOrigins []string       `mapstructure:"allowed_origins"`
	FrameInterval  time.Duration  `mapstructure:"frame_interval" validate:"gt=0"`
	ShutdownGrace  time.Duration  `mapstructure:"shutdown_grace" validate:"gt=0"`
	Data           DataConfig     `mapstructure:"data"`
	Viewport       ViewportConfig `mapstructure:"viewport"`
	Log            LogConfig      `mapstructure:"log"`
	Tracing        TracingConfig  `mapstructure:"tracing"`
}

// DataConfig locates the municipality table and district outlines. Either
// may be a file path or an http(s) URL; an empty CSV source selects the
// embedded table.
type DataConfig struct {
	CSV           string        `mapstructure:"csv"`
	GeoJSON       string        `mapstructure:"geojson"`
	Retries       int           `mapstructure:"retries" validate:"gte=0,lte=20"`
	RetryInterval time.Duration `mapstructure:"retry_interval" validate:"gte=0"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	InferRegions  bool          `mapstructure:"infer_regions"`
}

// ViewportConfig is the surface size used when a client does not send one.
type ViewportConfig struct {
	Width  float64 `mapstructure:"width" validate:"gt=0,lte=16384"`
	Height float64 `mapstructure:"height" validate:"gt=0,lte=16384"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level     string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format    string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	Backend   string `mapstructure:"backend" validate:"omitempty,oneof=slog zap"`
	AddSource bool   `mapstructure:"add_source"`
}

// TracingConfig mirrors observability.TracingConfig.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Exporter    string  `mapstructure:"exporter" validate:"omitempty,oneof=stdout otlp"`
	Endpoint    string  `mapstructure:"endpoint" validate:"required_if=Exporter otlp"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

// Logging converts the section into a logging.Config.
func (c LogConfig) Logging() logging.Config {
	return logging.Config{
		Level:     c.Level,
		Format:    c.Format,
		Backend:   c.Backend,
		AddSource: c.AddSource,
	}
}

// Observability converts the section into an observability.TracingConfig.
func (c TracingConfig) Observability() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Enabled,
		ServiceName: c.ServiceName,
		Exporter:    c.Exporter,
		Endpoint:    c.Endpoint,
		SampleRatio: c.SampleRatio,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":50051")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("frame_interval", 16*time.Millisecond)
	v.SetDefault("shutdown_grace", 5*time.Second)

	v.SetDefault("data.csv", "")
	v.SetDefault("data.geojson", "")
	v.SetDefault("data.retries", 3)
	v.SetDefault("data.retry_interval", 500*time.Millisecond)
	v.SetDefault("data.timeout", 10*time.Second)
	v.SetDefault("data.infer_regions", false)

	v.SetDefault("viewport.width", 960.0)
	v.SetDefault("viewport.height", 720.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.backend", "slog")
	v.SetDefault("log.add_source", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", observability.DefaultServiceName)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Options tune Load.
type Options struct {
	// File is an optional yaml, json or toml config file.
	File string
	// EnvFiles are loaded into the process environment before reading
	// ATLAS_* keys. Missing files are ignored; variables already set win.
	EnvFiles []string
}

// Default returns the configuration produced by defaults alone.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load resolves the configuration. Precedence is environment, then the
// config file, then defaults.
func Load(opts Options) (Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and reports every failing key.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
}
