package sias

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sias/access"
	internalaudit "github.com/MrEthical07/sias/internal/audit"
	"github.com/MrEthical07/sias/internal/flows"
	"github.com/MrEthical07/sias/internal/limiters"
	"github.com/MrEthical07/sias/internal/stores"
	"github.com/MrEthical07/sias/password"
	"github.com/MrEthical07/sias/pendingtoken"
	"github.com/MrEthical07/sias/session"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Engine is the access-control and authentication core. Methods are safe
// for concurrent use after [Builder.Build].
type Engine struct {
	config        Config
	logger        *zap.Logger
	store         Store
	sessions      *session.Store
	resets        *stores.PasswordResetStore
	resetLimiter  *limiters.PasswordResetLimiter
	mfaLimiter    *limiters.MFALimiter
	signupLimiter *limiters.SignupLimiter
	pending       *pendingtoken.Signer
	hasher        password.Hasher
	totp          *totpManager
	dac           *access.DAC
	auditCipher   *internalaudit.Cipher
	audit         *internalaudit.Dispatcher
	metrics       *Metrics
	mailer        Mailer
	captcha       CaptchaVerifier
	now           func() time.Time
	flows         flows.Deps
}

// Close drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping checks the session backend.
func (e *Engine) Ping(ctx context.Context) error {
	if _, err := e.sessions.Ping(ctx); err != nil {
		return errors.Join(ErrSessionBackend, err)
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// clock returns now in the configured access-control location.
func (e *Engine) clock() time.Time {
	return e.now().In(e.config.Access.Location)
}

func (e *Engine) newAuditID() string {
	return ulid.MustNew(ulid.Timestamp(e.now()), ulid.DefaultEntropy()).String()
}

// fail logs err in full and returns it for the caller to classify.
func (e *Engine) fail(op string, err error) error {
	e.logger.Error(op, zap.Error(err))
	return err
}

func (e *Engine) warn(msg string, err error) {
	e.logger.Warn(msg, zap.Error(err))
}

func (e *Engine) buildFlowDeps() flows.Deps {
	return flows.Deps{
		Login:         e.loginDeps(),
		PasswordReset: e.passwordResetDeps(),
		Validate:      e.validateDeps(),
		Logout: flows.LogoutDeps{
			SessionStore: e.sessions,
			ValidToken:   validSessionToken,
		},
	}
}
