package sias

import (
	"errors"
	"time"

	"github.com/MrEthical07/sias/access"
	internalaudit "github.com/MrEthical07/sias/internal/audit"
	"github.com/MrEthical07/sias/internal/limiters"
	"github.com/MrEthical07/sias/internal/stores"
	"github.com/MrEthical07/sias/password"
	"github.com/MrEthical07/sias/pendingtoken"
	"github.com/MrEthical07/sias/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config  Config
	redis   redis.UniversalClient
	store   Store
	logger  *zap.Logger
	mailer  Mailer
	captcha CaptchaVerifier
	now     func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the engine configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing sessions, reset tokens and limiters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the relational store.
func (b *Builder) WithStore(store Store) *Builder {
	b.store = store
	return b
}

// WithLogger sets the operational logger. The default discards output.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMailer sets the outbound email collaborator. The default logs links.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithCaptcha sets the signup CAPTCHA gate. The default rejects every token.
func (b *Builder) WithCaptcha(c CaptchaVerifier) *Builder {
	b.captcha = c
	return b
}

// WithClock overrides the wall clock used by every time-dependent check.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}
	mailer := b.mailer
	if mailer == nil {
		mailer = LogMailer{Logger: logger, BaseURL: cfg.EmailVerification.BaseURL}
	}
	captcha := b.captcha
	if captcha == nil {
		captcha = StaticCaptcha(false)
	}

	// -------- PASSWORD HASHING --------
	hasher, err := buildHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	// -------- PENDING MFA TOKENS --------
	signer, err := pendingtoken.NewSigner(pendingtoken.Config{
		Key: cfg.Pending.Secret,
		TTL: cfg.Pending.TTL,
		Now: now,
	})
	if err != nil {
		return nil, err
	}

	// -------- AUDIT --------
	auditCipher, err := internalaudit.NewCipher(cfg.Audit.Key)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:       cfg,
		logger:       logger,
		store:        b.store,
		sessions:     session.NewStore(b.redis, cfg.Session.RedisPrefix, now),
		resets:       stores.NewPasswordResetStore(b.redis, cfg.PasswordReset.RedisPrefix, now),
		resetLimiter: buildResetLimiter(b.redis, cfg.PasswordReset),
		mfaLimiter: limiters.NewMFALimiter(b.redis, limiters.MFAConfig{
			MaxAttempts: cfg.TOTP.MaxAttempts,
			Cooldown:    cfg.TOTP.Cooldown,
		}),
		signupLimiter: limiters.NewSignupLimiter(b.redis, limiters.SignupConfig{
			EnableIPThrottle: cfg.Signup.EnableIPThrottle,
			MaxAttempts:      cfg.Signup.MaxAttempts,
			Window:           cfg.Signup.Window,
		}),
		pending:     signer,
		hasher:      hasher,
		totp:        newTOTPManager(cfg.TOTP),
		dac:         access.NewDAC(b.store),
		auditCipher: auditCipher,
		metrics:     NewMetrics(cfg.Metrics),
		mailer:      mailer,
		captcha:     captcha,
		now:         now,
	}

	sink := &internalaudit.EncryptingSink{
		Cipher:  auditCipher,
		Store:   auditAppender{store: b.store},
		NewID:   e.newAuditID,
		Timeout: cfg.Audit.WriteTimeout,
		OnError: e.auditWriteFailed,
		OnStored: func(internalaudit.Event) {
			e.metricInc(MetricAuditWritten)
		},
	}
	e.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    true,
		Async:      cfg.Audit.Async,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop:     e.auditDropped,
	}, sink)

	e.flows = e.buildFlowDeps()

	b.built = true
	return e, nil
}

func buildHasher(cfg PasswordConfig) (password.Hasher, error) {
	bcryptHasher, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	argonHasher, err := password.NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}

	// Both verify so stored hashes survive an algorithm switch.
	if cfg.Algorithm == "argon2id" {
		return password.Chain{argonHasher, bcryptHasher}, nil
	}
	return password.Chain{bcryptHasher, argonHasher}, nil
}

func buildResetLimiter(client redis.UniversalClient, cfg PasswordResetConfig) *limiters.PasswordResetLimiter {
	if cfg.MaxRequests <= 0 {
		return nil
	}
	return limiters.NewPasswordResetLimiter(client, limiters.PasswordResetConfig{
		EnableIPThrottle: cfg.EnableIPThrottle,
		Window:           cfg.Window,
		MaxAttempts:      cfg.MaxRequests,
	})
}
