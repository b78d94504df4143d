package sias

import (
	"encoding/hex"
	"errors"
	"time"

	"github.com/MrEthical07/sias/access"
	"github.com/MrEthical07/sias/password"
)

// Config holds every engine setting. Start from [DefaultConfig] and override
// fields; [Builder.Build] rejects a Config that fails [Config.Validate].
type Config struct {
	Session           SessionConfig
	Lockout           LockoutConfig
	Pending           PendingConfig
	TOTP              TOTPConfig
	Password          PasswordConfig
	PasswordReset     PasswordResetConfig
	Signup            SignupConfig
	EmailVerification EmailVerificationConfig
	Audit             AuditConfig
	Access            AccessConfig
	Metrics           MetricsConfig
	Security          SecurityConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls opaque session tokens.
type SessionConfig struct {
	RedisPrefix string
	TTL         time.Duration
	// SingleSession revokes an identity's other sessions on fresh login.
	SingleSession bool
}

// LockoutConfig controls the failed-login counter.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

// PendingConfig controls the MFA pending token. Secret is required.
type PendingConfig struct {
	Secret []byte
	TTL    time.Duration
}

// TOTPConfig controls MFA enrolment and verification.
type TOTPConfig struct {
	Issuer string
	// Skew is the number of 30 second steps accepted either side of now.
	Skew            uint
	BackupCodeCount int
	MaxAttempts     int
	Cooldown        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hash algorithm and reuse window.
type PasswordConfig struct {
	Algorithm    string // "bcrypt" (default) or "argon2id"
	BcryptCost   int
	Argon2       password.Argon2Config
	HistoryDepth int
}

// PasswordResetConfig controls reset tokens and request throttling.
type PasswordResetConfig struct {
	RedisPrefix      string
	TTL              time.Duration
	MaxRequests      int
	Window           time.Duration
	EnableIPThrottle bool
}

// SignupConfig throttles account creation per email and per client IP.
// MaxAttempts <= 0 disables the throttle.
type SignupConfig struct {
	MaxAttempts      int
	Window           time.Duration
	EnableIPThrottle bool
}

// EmailVerificationConfig controls signup verification tokens.
type EmailVerificationConfig struct {
	TTL     time.Duration
	BaseURL string
}

// AuditConfig controls the encrypted audit trail. Key is 64 hex characters
// and is required.
type AuditConfig struct {
	Key          string
	Async        bool
	BufferSize   int
	DropIfFull   bool
	WriteTimeout time.Duration
}

// AccessConfig controls the context of rule-based checks.
type AccessConfig struct {
	Location *time.Location
	// GradeEditRule gates grade updates. Empty disables the time rule.
	GradeEditRule access.Rule
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// SecurityConfig holds transport-facing switches.
type SecurityConfig struct {
	ProductionMode bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. Pending.Secret and
// Audit.Key are left empty and must be provisioned.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix:   "sias:sess",
			TTL:           7 * 24 * time.Hour,
			SingleSession: false,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  30 * time.Minute,
		},
		Pending: PendingConfig{
			TTL: 5 * time.Minute,
		},
		TOTP: TOTPConfig{
			Issuer:          "SIAS",
			Skew:            1,
			BackupCodeCount: 10,
			MaxAttempts:     5,
			Cooldown:        5 * time.Minute,
		},
		Password: PasswordConfig{
			Algorithm:    "bcrypt",
			BcryptCost:   password.DefaultBcryptCost,
			Argon2:       password.DefaultArgon2Config(),
			HistoryDepth: 5,
		},
		PasswordReset: PasswordResetConfig{
			RedisPrefix:      "sias:pwr",
			TTL:              time.Hour,
			MaxRequests:      5,
			Window:           time.Hour,
			EnableIPThrottle: true,
		},
		Signup: SignupConfig{
			MaxAttempts:      10,
			Window:           time.Hour,
			EnableIPThrottle: true,
		},
		EmailVerification: EmailVerificationConfig{
			TTL: 24 * time.Hour,
		},
		Audit: AuditConfig{
			Async:        true,
			BufferSize:   1024,
			DropIfFull:   true,
			WriteTimeout: 5 * time.Second,
		},
		Access: AccessConfig{
			Location:      time.Local,
			GradeEditRule: "",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must be set")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}

	// Lockout
	if c.Lockout.Threshold < 1 {
		return errors.New("Lockout Threshold must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Pending
	if len(c.Pending.Secret) < 32 {
		return errors.New("Pending Secret must be at least 32 bytes")
	}
	if c.Pending.TTL <= 0 {
		return errors.New("Pending TTL must be > 0")
	}

	// TOTP
	if c.TOTP.Issuer == "" {
		return errors.New("TOTP Issuer must be set")
	}
	if c.TOTP.Skew > 2 {
		return errors.New("TOTP Skew must be <= 2")
	}
	if c.TOTP.BackupCodeCount < 1 {
		return errors.New("TOTP BackupCodeCount must be >= 1")
	}

	// Password
	switch c.Password.Algorithm {
	case "bcrypt", "argon2id":
	default:
		return errors.New("Password Algorithm must be 'bcrypt' or 'argon2id'")
	}
	if c.Password.HistoryDepth < 0 {
		return errors.New("Password HistoryDepth must be >= 0")
	}

	// Password reset
	if c.PasswordReset.RedisPrefix == "" {
		return errors.New("PasswordReset RedisPrefix must be set")
	}
	if c.PasswordReset.TTL <= 0 {
		return errors.New("PasswordReset TTL must be > 0")
	}

	// Signup
	if c.Signup.MaxAttempts > 0 && c.Signup.Window <= 0 {
		return errors.New("Signup Window must be > 0 when MaxAttempts is set")
	}

	// Email verification
	if c.EmailVerification.TTL <= 0 {
		return errors.New("EmailVerification TTL must be > 0")
	}

	// Audit
	if len(c.Audit.Key) != 64 {
		return errors.New("Audit Key must be 64 hex characters")
	}
	if _, err := hex.DecodeString(c.Audit.Key); err != nil {
		return errors.New("Audit Key must be hex encoded")
	}
	if c.Audit.Async && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Async is true")
	}

	// Access
	if c.Access.Location == nil {
		return errors.New("Access Location must be set")
	}
	if c.Access.GradeEditRule != "" &&
		c.Access.GradeEditRule != access.RuleBusinessHours &&
		c.Access.GradeEditRule != access.RuleWeekdayOnly {
		return errors.New("Access GradeEditRule is invalid")
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if len(cfg.Pending.Secret) > 0 {
		out.Pending.Secret = append([]byte(nil), cfg.Pending.Secret...)
	}
	return out
}
