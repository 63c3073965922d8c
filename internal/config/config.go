package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port                     string        `mapstructure:"PORT"`
	Env                      string        `mapstructure:"ENV"`
	DatabaseURL              string        `mapstructure:"DATABASE_URL"`
	DBMaxConns               int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns               int32         `mapstructure:"DB_MIN_CONNS"`
	DBMaxConnLifetime        time.Duration `mapstructure:"DB_MAX_CONN_LIFETIME"`
	DBMaxConnIdleTime        time.Duration `mapstructure:"DB_MAX_CONN_IDLE_TIME"`
	DBConnectTimeout         time.Duration `mapstructure:"DB_CONNECT_TIMEOUT"`
	MigrationsDir            string        `mapstructure:"MIGRATIONS_DIR"`
	RedisURL                 string        `mapstructure:"REDIS_URL"`
	JWTSecret                string        `mapstructure:"JWT_SECRET"`
	JWTIssuer                string        `mapstructure:"JWT_ISSUER"`
	AccessTokenExpireMinutes int           `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	CORSOrigins              []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS             float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst           int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout           time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit                string        `mapstructure:"BODY_LIMIT"`
	LogLevel                 string        `mapstructure:"LOG_LEVEL"`
	LogFile                  string        `mapstructure:"LOG_FILE"`
	MQTTBrokerURL            string        `mapstructure:"MQTT_BROKER_URL"`
	MQTTTopicPrefix          string        `mapstructure:"MQTT_TOPIC_PREFIX"`
	AlarmCheckInterval       int           `mapstructure:"ALARM_CHECK_INTERVAL"`
	ComplianceThreshold      float64       `mapstructure:"COMPLIANCE_THRESHOLD"`
	MissedDoseGraceMinutes   int           `mapstructure:"MISSED_DOSE_GRACE_MINUTES"`
	SMTPHost                 string        `mapstructure:"SMTP_HOST"`
	SMTPPort                 int           `mapstructure:"SMTP_PORT"`
	SMTPUser                 string        `mapstructure:"SMTP_USER"`
	SMTPPassword             string        `mapstructure:"SMTP_PASSWORD"`
	FromEmail                string        `mapstructure:"FROM_EMAIL"`
	InteractionCheck         bool          `mapstructure:"INTERACTION_CHECK"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"DB_MAX_CONN_LIFETIME", "DB_MAX_CONN_IDLE_TIME", "DB_CONNECT_TIMEOUT", "MIGRATIONS_DIR",
	"REDIS_URL", "JWT_SECRET", "JWT_ISSUER", "ACCESS_TOKEN_EXPIRE_MINUTES",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "BODY_LIMIT",
	"LOG_LEVEL", "LOG_FILE", "MQTT_BROKER_URL", "MQTT_TOPIC_PREFIX",
	"ALARM_CHECK_INTERVAL", "COMPLIANCE_THRESHOLD", "MISSED_DOSE_GRACE_MINUTES",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASSWORD", "FROM_EMAIL",
	"INTERACTION_CHECK",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_MAX_CONN_LIFETIME", "1h")
	v.SetDefault("DB_MAX_CONN_IDLE_TIME", "30m")
	v.SetDefault("DB_CONNECT_TIMEOUT", "5s")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("JWT_ISSUER", "pillcare")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MQTT_TOPIC_PREFIX", "pillcare")
	v.SetDefault("ALARM_CHECK_INTERVAL", 60)
	v.SetDefault("COMPLIANCE_THRESHOLD", 75.0)
	v.SetDefault("MISSED_DOSE_GRACE_MINUTES", 60)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("FROM_EMAIL", "noreply@pillcare360.com")
	v.SetDefault("INTERACTION_CHECK", false)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is not set; using an insecure development secret")
		cfg.JWTSecret = "pillcare-development-secret"
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AccessTokenTTL is the lifetime of issued access tokens.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// AlarmInterval is the period between reminder dispatcher sweeps.
func (c *Config) AlarmInterval() time.Duration {
	if c.AlarmCheckInterval <= 0 {
		return time.Minute
	}
	return time.Duration(c.AlarmCheckInterval) * time.Second
}

// SMTPEnabled reports whether outbound alert email is configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production, got %d", len(c.JWTSecret))
	}
	if c.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", c.AccessTokenExpireMinutes)
	}
	if c.ComplianceThreshold < 0 || c.ComplianceThreshold > 100 {
		return fmt.Errorf("COMPLIANCE_THRESHOLD must be between 0 and 100, got %v", c.ComplianceThreshold)
	}
	if c.SMTPEnabled() && c.SMTPPort <= 0 {
		return fmt.Errorf("SMTP_PORT is required when SMTP_HOST is set")
	}
	return nil
}
