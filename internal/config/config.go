package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode   `mapstructure:"mode"`
	HTTPAddr string `mapstructure:"http_addr"`
	SiteID   string `mapstructure:"site_id"` // tags this instance's event log rows

	Store     StoreConfig     `mapstructure:"store"`
	Blob      BlobConfig      `mapstructure:"blob"`
	Exam      ExamConfig      `mapstructure:"exam"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Events    EventsConfig    `mapstructure:"events"`
}

// StoreConfig picks the record store. The file and sqlite drivers assume a
// single examd process owns the data; postgres serializes writers across
// processes with advisory locks.
type StoreConfig struct {
	Driver  string `mapstructure:"driver"` // file|sqlite|postgres
	DSN     string `mapstructure:"dsn"`
	DataDir string `mapstructure:"data_dir"` // file driver only
}

type BlobConfig struct {
	Driver         string `mapstructure:"driver"` // fs|minio
	BasePath       string `mapstructure:"base_path"`
	MinioEndpoint  string `mapstructure:"minio_endpoint"`
	MinioAccessKey string `mapstructure:"minio_access_key"`
	MinioSecretKey string `mapstructure:"minio_secret_key"`
	MinioBucket    string `mapstructure:"minio_bucket"`
	MinioUseSSL    bool   `mapstructure:"minio_use_ssl"`
}

type ExamConfig struct {
	QuestionsPerSection int `mapstructure:"questions_per_section"`
	ExpectedTotal       int `mapstructure:"expected_total"`
}

type CORSConfig struct {
	OriginsOnline  []string `mapstructure:"origins_online"`
	OriginsOffline []string `mapstructure:"origins_offline"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"` // 0 disables
	Burst             int `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// EventsConfig adds a RabbitMQ publisher next to the store's own event sink
// when AMQPURL is set.
type EventsConfig struct {
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(ModeOffline))
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("site_id", "local")

	v.SetDefault("store.driver", "file")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.data_dir", "./exam_data")

	v.SetDefault("blob.driver", "fs")
	v.SetDefault("blob.base_path", "./exam_data")
	v.SetDefault("blob.minio_endpoint", "")
	v.SetDefault("blob.minio_access_key", "")
	v.SetDefault("blob.minio_secret_key", "")
	v.SetDefault("blob.minio_bucket", "placement-exam")
	v.SetDefault("blob.minio_use_ssl", false)

	v.SetDefault("exam.questions_per_section", 20)
	v.SetDefault("exam.expected_total", 60)

	v.SetDefault("cors.origins_online", []string{"https://exam.mindengage.ai"})
	v.SetDefault("cors.origins_offline", []string{"http://localhost:3000", "http://localhost:5173"})

	v.SetDefault("rate_limit.requests_per_minute", 300)
	v.SetDefault("rate_limit.burst", 50)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "logs/examd.log")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")

	v.SetDefault("upload.max_bytes", 50<<20)

	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", "exam.events")
}

// Load reads config.yaml from dir when present, then applies EXAM_*
// environment overrides (EXAM_STORE_DRIVER for store.driver). An empty dir
// skips the file.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("EXAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir != "" {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Mode = Mode(strings.ToLower(strings.TrimSpace(string(cfg.Mode))))
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Blob.Driver = strings.ToLower(strings.TrimSpace(cfg.Blob.Driver))
	cfg.CORS.OriginsOnline = cleanList(cfg.CORS.OriginsOnline)
	cfg.CORS.OriginsOffline = cleanList(cfg.CORS.OriginsOffline)
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeOffline, ModeOnline:
	default:
		errs = append(errs, fmt.Errorf("mode %q: want offline or online", c.Mode))
	}
	switch c.Store.Driver {
	case "file", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("store.driver %q: want file, sqlite or postgres", c.Store.Driver))
	}
	switch c.Blob.Driver {
	case "fs":
	case "minio":
		if c.Blob.MinioEndpoint == "" || c.Blob.MinioBucket == "" {
			errs = append(errs, errors.New("blob.minio_endpoint and blob.minio_bucket are required for the minio driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("blob.driver %q: want fs or minio", c.Blob.Driver))
	}
	if c.Exam.QuestionsPerSection <= 0 {
		errs = append(errs, fmt.Errorf("exam.questions_per_section must be positive, got %d", c.Exam.QuestionsPerSection))
	}
	if c.Exam.ExpectedTotal <= 0 {
		errs = append(errs, fmt.Errorf("exam.expected_total must be positive, got %d", c.Exam.ExpectedTotal))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("upload.max_bytes must be positive, got %d", c.Upload.MaxBytes))
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit values must not be negative"))
	}
	return errors.Join(errs...)
}

// CORSOrigins returns the allow-list for the configured mode.
func (c *Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORS.OriginsOnline
	}
	return c.CORS.OriginsOffline
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		for _, p := range strings.Split(raw, ",") {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
