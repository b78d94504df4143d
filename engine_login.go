package sias

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/sias/internal"
	"github.com/MrEthical07/sias/internal/flows"
)

// Audit action tags recorded by the authentication lifecycle.
const (
	ActionLoginSuccess         = "LOGIN_SUCCESS"
	ActionLoginFailed          = "LOGIN_FAILED"
	ActionLoginLocked          = "LOGIN_LOCKED"
	ActionLoginMFAChallenge    = "LOGIN_MFA_CHALLENGE"
	ActionMFAFailed            = "MFA_FAILED"
	ActionMFAEnabled           = "MFA_ENABLED"
	ActionMFADisabled          = "MFA_DISABLED"
	ActionLogout               = "LOGOUT"
	ActionSignupSuccess        = "signup_success"
	ActionSignupFailed         = "signup_failed"
	ActionEmailVerified        = "EMAIL_VERIFIED"
	ActionPasswordResetRequest = "PASSWORD_RESET_REQUEST"
	ActionPasswordReset        = "PASSWORD_RESET"
	ActionRoleChange           = "ROLE_CHANGE"
	ActionDACShare             = "DAC_SHARE"
	ActionDACRevoke            = "DAC_REVOKE"
	ActionAccessGrades         = "ACCESS_GRADES"
	ActionGradeUpdate          = "GRADE_UPDATE"
	ActionAccessDenied         = "ACCESS_DENIED"
	ActionDepartmentBudget     = "ACCESS_DEPARTMENT_BUDGET"
)

const resourceAuth = "auth"

// SignIn verifies email and password. With MFA disabled it returns a session
// token; with MFA enabled it returns only a pending token for [Engine.ValidateMFA].
//
// Unknown email and wrong password both return [ErrInvalidCredentials]. An
// engaged lockout returns a [*LockedError] regardless of the password.
func (e *Engine) SignIn(ctx context.Context, email, pw string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || pw == "" {
		return nil, invalid("email", "Email and password are required")
	}

	res, err := flows.RunSignIn(ctx, email, pw, e.flows.Login)
	if err != nil {
		return nil, e.mapLoginError("sign in", err)
	}
	return e.loginResult(ctx, res)
}

// ValidateMFA completes a pending sign-in with a TOTP code or a single-use
// backup code. A wrong code leaves the pending token valid until it expires.
func (e *Engine) ValidateMFA(ctx context.Context, pendingToken, code string) (*LoginResult, error) {
	if pendingToken == "" || strings.TrimSpace(code) == "" {
		return nil, invalid("code", "Token required")
	}

	res, err := flows.RunValidateMFA(ctx, pendingToken, code, e.flows.Login)
	if err != nil {
		return nil, e.mapLoginError("validate mfa", err)
	}
	return e.loginResult(ctx, res)
}

func (e *Engine) loginResult(ctx context.Context, res *flows.LoginResult) (*LoginResult, error) {
	out := &LoginResult{
		SessionToken:     res.SessionToken,
		SessionExpiresAt: res.SessionExpiresAt,
		MFARequired:      res.MFARequired,
		PendingToken:     res.PendingToken,
		PendingExpiresAt: res.PendingExpiresAt,
	}
	if res.MFARequired {
		return out, nil
	}

	id, err := e.store.FindIdentityByID(ctx, res.UserID)
	if err != nil {
		return nil, e.fail("load principal", err)
	}
	out.Principal = principalOf(id)
	return out, nil
}

func (e *Engine) mapLoginError(op string, err error) error {
	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountLocked),
		errors.Is(err, ErrPendingExpired),
		errors.Is(err, ErrInvalidMFACode),
		errors.Is(err, ErrMFARateLimited),
		errors.Is(err, ErrEngineNotReady):
		return err
	default:
		return e.fail(op, err)
	}
}

func (e *Engine) loginDeps() flows.LoginDeps {
	return flows.LoginDeps{
		LockoutThreshold: e.config.Lockout.Threshold,
		LockoutDuration:  e.config.Lockout.Duration,
		Now:              e.now,

		FindByEmail: func(ctx context.Context, email string) (*flows.LoginIdentity, error) {
			id, err := e.store.FindIdentityByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			return loginIdentityOf(id), nil
		},
		FindByID: func(ctx context.Context, userID string) (*flows.LoginIdentity, error) {
			id, err := e.store.FindIdentityByID(ctx, userID)
			if err != nil {
				return nil, err
			}
			return loginIdentityOf(id), nil
		},
		RecordFailure: e.store.RecordLoginFailure,
		RecordSuccess: e.store.RecordLoginSuccess,

		VerifyPassword: e.hasher.Verify,

		SignPending:   e.pending.Sign,
		VerifyPending: e.pending.Verify,

		CheckMFARate:     e.mfaLimiter.Check,
		RecordMFAFailure: e.mfaLimiter.RecordFailure,
		ResetMFARate:     e.mfaLimiter.Reset,

		VerifyTOTP:        e.totp.VerifyCode,
		AdvanceMFACounter: e.store.AdvanceMFACounter,
		HashBackupCode:    internal.HashBackupCode,
		ConsumeBackupCode: e.store.ConsumeBackupCode,

		IssueSession: e.issueSession,

		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: func(ctx context.Context, action, userID string, details map[string]any) {
			e.emitAudit(ctx, action, userID, resourceAuth, details)
		},
		Warn: e.warn,

		Metrics: flows.LoginMetrics{
			LoginSuccess:   int(MetricLoginSuccess),
			LoginFailure:   int(MetricLoginFailure),
			LoginLocked:    int(MetricLoginLocked),
			AccountLocked:  int(MetricAccountLocked),
			MFAChallenge:   int(MetricMFAChallenge),
			MFASuccess:     int(MetricMFASuccess),
			MFAFailure:     int(MetricMFAFailure),
			MFARateLimited: int(MetricMFARateLimited),
			BackupCodeUsed: int(MetricBackupCodeUsed),
			SessionCreated: int(MetricSessionCreated),
		},
		Events: flows.LoginEvents{
			LoginSuccess: ActionLoginSuccess,
			LoginFailed:  ActionLoginFailed,
			LoginLocked:  ActionLoginLocked,
			MFAChallenge: ActionLoginMFAChallenge,
			MFAFailed:    ActionMFAFailed,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			PendingExpired:     ErrPendingExpired,
			InvalidMFACode:     ErrInvalidMFACode,
			MFARateLimited:     ErrMFARateLimited,
			NotFound:           ErrNotFound,
			Locked: func(until time.Time, remaining time.Duration) error {
				return &LockedError{Until: until, Remaining: remaining}
			},
		},
	}
}

func loginIdentityOf(id *Identity) *flows.LoginIdentity {
	return &flows.LoginIdentity{
		ID:                  id.ID,
		Email:               id.Email,
		PasswordHash:        id.PasswordHash,
		MFAEnabled:          id.MFAEnabled,
		MFASecret:           id.MFASecret,
		MFALastCounter:      id.MFALastCounter,
		FailedLoginAttempts: id.FailedLoginAttempts,
		LockedUntil:         id.LockedUntil,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
