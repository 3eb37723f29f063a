package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type IngestConfig struct {
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type EmailConfig struct {
	From            string   `mapstructure:"from"`
	SMTPHost        string   `mapstructure:"smtp_host"`
	SMTPPort        int      `mapstructure:"smtp_port"`
	Username        string   `mapstructure:"username"`
	Password        string   `mapstructure:"password"`
	AlertRecipients []string `mapstructure:"alert_recipients"`
}

type Config struct {
	DatabaseURL string         `mapstructure:"database_url"`
	ServerPort  string         `mapstructure:"server_port"`
	LogLevel    string         `mapstructure:"log_level"`
	JWTSecret   string         `mapstructure:"jwt_secret"`
	SecretKey   string         `mapstructure:"secret_key"`
	Database    DatabaseConfig `mapstructure:"database"`
	Ingest      IngestConfig   `mapstructure:"ingest"`
	CORS        CORSConfig     `mapstructure:"cors"`
	Email       EmailConfig    `mapstructure:"email"`
}

// envKeys can be set through ADSCOPE_<KEY>, with dots replaced by underscores.
var envKeys = []string{
	"database_url", "server_port", "log_level", "jwt_secret", "secret_key",
	"database.max_open_conns", "database.max_idle_conns", "database.conn_max_lifetime",
	"ingest.max_body_bytes",
	"cors.allowed_origins",
	"email.from", "email.smtp_host", "email.smtp_port", "email.username", "email.password", "email.alert_recipients",
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	cfg, err := load(v)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	return cfg
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("ADSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&config)

	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url must be set")
	}
	if config.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret must be set")
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("secret_key must be set")
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.Ingest.MaxBodyBytes <= 0 {
		config.Ingest.MaxBodyBytes = 10 << 20
	}
	if config.Database.MaxOpenConns == 0 {
		config.Database.MaxOpenConns = 20
	}
	if config.Database.MaxIdleConns == 0 {
		config.Database.MaxIdleConns = 5
	}
	if config.Database.ConnMaxLifetime == 0 {
		config.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if len(config.CORS.AllowedOrigins) == 0 {
		config.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if config.Email.SMTPPort == 0 {
		config.Email.SMTPPort = 587
	}
}
