package main

import (
	"errors"
	"fmt"
	"time"

	sias "github.com/MrEthical07/sias"
	"github.com/MrEthical07/sias/access"
	"github.com/MrEthical07/sias/sqlstore"
	"github.com/spf13/viper"
)

type serverConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	TrustProxy      bool          `mapstructure:"trust_proxy"`
	Production      bool          `mapstructure:"production"`
	CookieDomain    string        `mapstructure:"cookie_domain"`
	BaseURL         string        `mapstructure:"base_url"`

	LogLevel      string `mapstructure:"log_level"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
	LogMaxAgeDays int    `mapstructure:"log_max_age_days"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	DBDriver       string `mapstructure:"db_driver"`
	DBDSN          string `mapstructure:"db_dsn"`
	DBMaxOpenConns int    `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns int    `mapstructure:"db_max_idle_conns"`

	PendingSecret string `mapstructure:"pending_secret"`
	AuditKey      string `mapstructure:"audit_key"`
	AuditAsync    bool   `mapstructure:"audit_async"`

	SessionTTL       time.Duration `mapstructure:"session_ttl"`
	SingleSession    bool          `mapstructure:"single_session"`
	LockoutThreshold int           `mapstructure:"lockout_threshold"`
	LockoutDuration  time.Duration `mapstructure:"lockout_duration"`
	TOTPIssuer       string        `mapstructure:"totp_issuer"`

	PasswordAlgorithm    string `mapstructure:"password_algorithm"`
	BcryptCost           int    `mapstructure:"bcrypt_cost"`
	PasswordHistoryDepth int    `mapstructure:"password_history_depth"`

	ResetTTL          time.Duration `mapstructure:"reset_ttl"`
	ResetMaxRequests  int           `mapstructure:"reset_max_requests"`
	ResetWindow       time.Duration `mapstructure:"reset_window"`
	ResetIPThrottle   bool          `mapstructure:"reset_ip_throttle"`
	SignupMaxAttempts int           `mapstructure:"signup_max_attempts"`
	SignupWindow      time.Duration `mapstructure:"signup_window"`
	VerificationTTL   time.Duration `mapstructure:"verification_ttl"`

	Timezone      string `mapstructure:"timezone"`
	GradeEditRule string `mapstructure:"grade_edit_rule"`

	MetricsEnabled   bool `mapstructure:"metrics_enabled"`
	MetricsProtected bool `mapstructure:"metrics_protected"`

	// CaptchaAcceptAll accepts any non-empty CAPTCHA token. Development only.
	CaptchaAcceptAll bool `mapstructure:"captcha_accept_all"`
}

// loadConfig reads config.yaml from the usual places, then SIAS_* environment
// variables. A missing file is not an error.
func loadConfig(v *viper.Viper) (*serverConfig, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/sias/")
	v.AddConfigPath("$HOME/.sias")
	v.AddConfigPath(".")

	def := sias.DefaultConfig()
	v.SetDefault("port", 8080)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("production", false)
	v.SetDefault("cookie_domain", "")
	v.SetDefault("base_url", "http://localhost:3000")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 100)
	v.SetDefault("log_max_backups", 5)
	v.SetDefault("log_max_age_days", 30)

	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("db_driver", sqlstore.DriverSQLite)
	v.SetDefault("db_dsn", "file:sias.db?_pragma=busy_timeout(5000)")
	v.SetDefault("db_max_open_conns", 0)
	v.SetDefault("db_max_idle_conns", 0)

	v.SetDefault("pending_secret", "")
	v.SetDefault("audit_key", "")
	v.SetDefault("audit_async", def.Audit.Async)

	v.SetDefault("session_ttl", def.Session.TTL)
	v.SetDefault("single_session", def.Session.SingleSession)
	v.SetDefault("lockout_threshold", def.Lockout.Threshold)
	v.SetDefault("lockout_duration", def.Lockout.Duration)
	v.SetDefault("totp_issuer", def.TOTP.Issuer)

	v.SetDefault("password_algorithm", def.Password.Algorithm)
	v.SetDefault("bcrypt_cost", def.Password.BcryptCost)
	v.SetDefault("password_history_depth", def.Password.HistoryDepth)

	v.SetDefault("reset_ttl", def.PasswordReset.TTL)
	v.SetDefault("reset_max_requests", def.PasswordReset.MaxRequests)
	v.SetDefault("reset_window", def.PasswordReset.Window)
	v.SetDefault("reset_ip_throttle", def.PasswordReset.EnableIPThrottle)
	v.SetDefault("signup_max_attempts", def.Signup.MaxAttempts)
	v.SetDefault("signup_window", def.Signup.Window)
	v.SetDefault("verification_ttl", def.EmailVerification.TTL)

	v.SetDefault("timezone", "Local")
	v.SetDefault("grade_edit_rule", "")

	v.SetDefault("metrics_enabled", def.Metrics.Enabled)
	v.SetDefault("metrics_protected", false)
	v.SetDefault("captcha_accept_all", false)

	v.SetEnvPrefix("SIAS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg serverConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// engineConfig maps the server settings onto the engine configuration and
// validates the result.
func (c *serverConfig) engineConfig() (sias.Config, error) {
	cfg := sias.DefaultConfig()

	cfg.Pending.Secret = []byte(c.PendingSecret)
	cfg.Audit.Key = c.AuditKey
	cfg.Audit.Async = c.AuditAsync

	cfg.Session.TTL = c.SessionTTL
	cfg.Session.SingleSession = c.SingleSession
	cfg.Lockout.Threshold = c.LockoutThreshold
	cfg.Lockout.Duration = c.LockoutDuration
	cfg.TOTP.Issuer = c.TOTPIssuer

	cfg.Password.Algorithm = c.PasswordAlgorithm
	cfg.Password.BcryptCost = c.BcryptCost
	cfg.Password.HistoryDepth = c.PasswordHistoryDepth

	cfg.PasswordReset.TTL = c.ResetTTL
	cfg.PasswordReset.MaxRequests = c.ResetMaxRequests
	cfg.PasswordReset.Window = c.ResetWindow
	cfg.PasswordReset.EnableIPThrottle = c.ResetIPThrottle
	cfg.Signup.MaxAttempts = c.SignupMaxAttempts
	cfg.Signup.Window = c.SignupWindow
	cfg.EmailVerification.TTL = c.VerificationTTL
	cfg.EmailVerification.BaseURL = c.BaseURL

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return cfg, fmt.Errorf("timezone: %w", err)
	}
	cfg.Access.Location = loc
	cfg.Access.GradeEditRule = access.Rule(c.GradeEditRule)

	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Security.ProductionMode = c.Production

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *serverConfig) storeConfig() sqlstore.Config {
	return sqlstore.Config{
		Driver:       c.DBDriver,
		DSN:          c.DBDSN,
		MaxOpenConns: c.DBMaxOpenConns,
		MaxIdleConns: c.DBMaxIdleConns,
	}
}
