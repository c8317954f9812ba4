package common

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	OCR       OCRConfig       `mapstructure:"ocr"`
	Uploads   UploadsConfig   `mapstructure:"uploads"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `mapstructure:"driver"` // "postgres" | "sqlite"
	DSN              string        `mapstructure:"dsn"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract     string        `mapstructure:"tesseract"`
	Lang          string        `mapstructure:"lang"`
	TessdataDir   string        `mapstructure:"tessdata_dir"`
	PSM           int           `mapstructure:"psm"`
	OEM           int           `mapstructure:"oem"`
	TSVConfidence bool          `mapstructure:"tsv_confidence"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
}

// UploadsConfig controls where screenshots are stored.
type UploadsConfig struct {
	Dir      string `mapstructure:"dir"`
	MaxBytes int64  `mapstructure:"max_bytes"`
}

// WorkerConfig sizes the verification queue.
type WorkerConfig struct {
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
}

// RedisConfig configures the in-flight reference lock. Empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// KafkaConfig configures verification events. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// TelemetryConfig configures OTLP tracing. Empty endpoint disables export.
type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" | "json"
}

// legacyEnv maps config keys to the bare env names older deployments use.
var legacyEnv = map[string]string{
	"database.dsn":     "DB_URL",
	"server.grpc_addr": "GRPC_ADDR",
	"server.http_addr": "HTTP_ADDR",
	"ocr.tessdata_dir": "TESSDATA_PREFIX",
	"redis.addr":       "REDIS_ADDR",
	"kafka.brokers":    "KAFKA_BROKERS",
}

// LoadConfig reads configuration from an optional YAML file, PAYVERIFY_*
// environment variables and the legacy bare names. path may be empty, in which
// case ./payverify.yaml is used when present.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("payverify")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PAYVERIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "PAYVERIFY_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("database.dial_timeout", 3*time.Second)
	v.SetDefault("database.statement_timeout", 0)
	v.SetDefault("server.grpc_addr", ":8080")
	v.SetDefault("server.http_addr", ":8081")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("ocr.tesseract", "tesseract")
	v.SetDefault("ocr.lang", "eng")
	v.SetDefault("ocr.tessdata_dir", "")
	v.SetDefault("ocr.psm", 6)
	v.SetDefault("ocr.oem", 0)
	v.SetDefault("ocr.tsv_confidence", true)
	v.SetDefault("ocr.timeout", 30*time.Second)
	v.SetDefault("ocr.rate_per_second", 4.0)
	v.SetDefault("ocr.burst", 4)
	v.SetDefault("uploads.dir", "./uploads/payment-proofs")
	v.SetDefault("uploads.max_bytes", 10<<20)
	v.SetDefault("worker.workers", 4)
	v.SetDefault("worker.queue_size", 256)
	v.SetDefault("worker.process_timeout", time.Minute)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 30*time.Second)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "payment-proof.events")
	v.SetDefault("telemetry.service_name", "payverify")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// splitList accepts both YAML lists and a single comma-separated env value.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required for the postgres driver", ErrInvalidInput)
		}
	case "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", "database.driver must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "at least one of GRPC_ADDR or HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Uploads.Dir == "" {
		return NewAppError("CONFIG_ERROR", "uploads.dir is required", ErrInvalidInput)
	}
	if c.Uploads.MaxBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "uploads.max_bytes must be positive", ErrInvalidInput)
	}
	if c.OCR.RatePerSecond < 0 {
		return NewAppError("CONFIG_ERROR", "ocr.rate_per_second must not be negative", ErrInvalidInput)
	}
	return nil
}
