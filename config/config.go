package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Transport string `mapstructure:"transport" validate:"oneof=telegram gateway"`
	BotToken  string `mapstructure:"bot_token" validate:"required_if=Transport telegram"`

	AdminPassword     string `mapstructure:"admin_password"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
	DataKey           string `mapstructure:"data_key"`

	StoreBackend string `mapstructure:"store_backend" validate:"oneof=file sqlite redis pebble"`
	DataFile     string `mapstructure:"data_file" validate:"required_if=StoreBackend file"`
	SQLitePath   string `mapstructure:"sqlite_path" validate:"required_if=StoreBackend sqlite"`
	RedisAddr    string `mapstructure:"redis_addr" validate:"required_if=StoreBackend redis"`
	RedisKey     string `mapstructure:"redis_key"`
	PebblePath   string `mapstructure:"pebble_path" validate:"required_if=StoreBackend pebble"`
	AuditLog     string `mapstructure:"audit_log" validate:"required"`

	AutosaveInterval time.Duration `mapstructure:"autosave_interval" validate:"min=1000000000"`
	RateLimitWindow  time.Duration `mapstructure:"rate_limit_window" validate:"min=0"`
	NoticeTTL        time.Duration `mapstructure:"notice_ttl" validate:"min=0"`
	DisplayTZOffset  time.Duration `mapstructure:"display_tz_offset"`
	Footer           string        `mapstructure:"footer"`

	SendRate        float64 `mapstructure:"send_rate" validate:"gt=0"`
	SendConcurrency int     `mapstructure:"send_concurrency" validate:"min=1"`

	GatewayPort         int           `mapstructure:"gateway_port" validate:"min=0,max=65535"`
	GatewayReadTimeout  time.Duration `mapstructure:"gateway_read_timeout"`
	GatewayWriteTimeout time.Duration `mapstructure:"gateway_write_timeout"`

	ControlSocket string `mapstructure:"control_socket"`
	MetricsAddr   string `mapstructure:"metrics_addr"`

	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn warning error"`
	LogDev   bool   `mapstructure:"log_dev"`
}

// DefaultFooter is appended to every anonymous delivery.
const DefaultFooter = "У нас новые слухи? Или мне кажется?🐶"

var envKeys = map[string]string{
	"transport":             "RELAY_TRANSPORT",
	"bot_token":             "BOT_TOKEN",
	"admin_password":        "ADMIN_PASSWORD",
	"admin_password_hash":   "ADMIN_PASSWORD_HASH",
	"data_key":              "DATA_KEY",
	"store_backend":         "STORE_BACKEND",
	"data_file":             "DATA_FILE",
	"sqlite_path":           "SQLITE_PATH",
	"redis_addr":            "REDIS_ADDR",
	"redis_key":             "REDIS_KEY",
	"pebble_path":           "PEBBLE_PATH",
	"audit_log":             "AUDIT_LOG",
	"autosave_interval":     "AUTOSAVE_INTERVAL",
	"rate_limit_window":     "RATE_LIMIT_WINDOW",
	"notice_ttl":            "NOTICE_TTL",
	"display_tz_offset":     "DISPLAY_TZ_OFFSET",
	"footer":                "FOOTER",
	"send_rate":             "SEND_RATE",
	"send_concurrency":      "SEND_CONCURRENCY",
	"gateway_port":          "GATEWAY_PORT",
	"gateway_read_timeout":  "GATEWAY_READ_TIMEOUT",
	"gateway_write_timeout": "GATEWAY_WRITE_TIMEOUT",
	"control_socket":        "CONTROL_SOCKET",
	"metrics_addr":          "METRICS_ADDR",
	"log_level":             "LOG_LEVEL",
	"log_dev":               "LOG_DEV",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transport", "telegram")
	v.SetDefault("admin_password", "adminpass")
	v.SetDefault("store_backend", "file")
	v.SetDefault("data_file", "data.json")
	v.SetDefault("sqlite_path", "relay.db")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_key", "anonrelay:state")
	v.SetDefault("pebble_path", "relay.pebble")
	v.SetDefault("audit_log", "audit.log")
	v.SetDefault("autosave_interval", 60*time.Second)
	v.SetDefault("rate_limit_window", 30*time.Second)
	v.SetDefault("notice_ttl", 3*time.Second)
	v.SetDefault("display_tz_offset", 5*time.Hour)
	v.SetDefault("footer", DefaultFooter)
	v.SetDefault("send_rate", 25.0)
	v.SetDefault("send_concurrency", 8)
	v.SetDefault("gateway_port", 3215)
	v.SetDefault("gateway_read_timeout", 120*time.Second)
	v.SetDefault("gateway_write_timeout", 30*time.Second)
	v.SetDefault("control_socket", "/tmp/anonrelay.sock")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dev", false)
}

// Load reads .env (if present), the optional RELAY_CONFIG file and the
// environment, in increasing order of priority.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(viper.New())
}

// LoadStorage is Load for offline tools: only the storage settings are validated.
func LoadStorage() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := decode(viper.New())
	if err != nil {
		return nil, err
	}
	if err := validator.New().StructPartial(cfg, "StoreBackend", "DataFile", "SQLitePath", "RedisAddr", "PebblePath"); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func load(v *viper.Viper) (*Config, error) {
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if path := os.Getenv("RELAY_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// EncryptionEnabled reports whether the persisted document is encrypted.
func (c *Config) EncryptionEnabled() bool { return c.DataKey != "" }
