package flows

import (
	"context"
	"errors"
	"strings"
	"time"
)

// LoginIdentity is the flow-local identity model used by sign-in and MFA.
type LoginIdentity struct {
	ID                  string
	Email               string
	PasswordHash        string
	MFAEnabled          bool
	MFASecret           string
	MFALastCounter      int64
	FailedLoginAttempts int
	LockedUntil         time.Time
}

// LoginResult is the flow-local sign-in response shape.
type LoginResult struct {
	UserID           string
	SessionToken     string
	SessionExpiresAt time.Time
	MFARequired      bool
	PendingToken     string
	PendingExpiresAt time.Time
}

// LoginMetrics carries metric IDs needed by sign-in and MFA.
type LoginMetrics struct {
	LoginSuccess   int
	LoginFailure   int
	LoginLocked    int
	AccountLocked  int
	MFAChallenge   int
	MFASuccess     int
	MFAFailure     int
	MFARateLimited int
	BackupCodeUsed int
	SessionCreated int
}

// LoginEvents carries audit action tags used by sign-in and MFA.
type LoginEvents struct {
	LoginSuccess string
	LoginFailed  string
	LoginLocked  string
	MFAChallenge string
	MFAFailed    string
}

// LoginErrors carries host-level sentinel errors used by sign-in and MFA.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	PendingExpired     error
	InvalidMFACode     error
	MFARateLimited     error
	NotFound           error
	// Locked builds the informative lockout error.
	Locked func(until time.Time, remaining time.Duration) error
}

// LoginDeps captures sign-in and MFA dependencies.
type LoginDeps struct {
	LockoutThreshold int
	LockoutDuration  time.Duration

	Now func() time.Time

	FindByEmail   func(context.Context, string) (*LoginIdentity, error)
	FindByID      func(context.Context, string) (*LoginIdentity, error)
	RecordFailure func(ctx context.Context, userID string, attempts int, lockedUntil, at time.Time) error
	RecordSuccess func(ctx context.Context, userID string, at time.Time) error

	VerifyPassword func(password, hash string) (bool, error)

	SignPending   func(userID string) (string, time.Time, error)
	VerifyPending func(token string) (string, error)

	CheckMFARate     func(context.Context, string) error
	RecordMFAFailure func(context.Context, string) error
	ResetMFARate     func(context.Context, string) error

	VerifyTOTP        func(secret, code string, now time.Time) (bool, int64, error)
	AdvanceMFACounter func(ctx context.Context, userID string, counter int64) (bool, error)
	HashBackupCode    func(string) string
	ConsumeBackupCode func(ctx context.Context, userID, codeHash string) (bool, error)

	IssueSession func(ctx context.Context, userID string) (string, time.Time, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, action, userID string, details map[string]any)
	Warn      func(msg string, err error)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func (deps *LoginDeps) defaults() {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, string, map[string]any) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, error) {}
	}
}

// RunSignIn verifies credentials, maintains the lockout counter, and either
// issues a session or a pending MFA token.
func RunSignIn(ctx context.Context, email, password string, deps LoginDeps) (*LoginResult, error) {
	deps.defaults()
	if deps.FindByEmail == nil ||
		deps.RecordFailure == nil ||
		deps.RecordSuccess == nil ||
		deps.VerifyPassword == nil ||
		deps.IssueSession == nil ||
		deps.Errors.Locked == nil {
		return nil, deps.Errors.EngineNotReady
	}

	user, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, deps.Errors.NotFound) {
			deps.MetricInc(deps.Metrics.LoginFailure)
			deps.EmitAudit(ctx, deps.Events.LoginFailed, "", map[string]any{
				"email":  email,
				"reason": "User not found",
			})
			return nil, deps.Errors.InvalidCredentials
		}
		return nil, err
	}

	now := deps.Now()
	if !user.LockedUntil.IsZero() && user.LockedUntil.After(now) {
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.EmitAudit(ctx, deps.Events.LoginLocked, user.ID, map[string]any{"email": email})
		return nil, deps.Errors.Locked(user.LockedUntil, user.LockedUntil.Sub(now))
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		deps.Warn("password verification failed", err)
		ok = false
	}
	if !ok {
		deps.MetricInc(deps.Metrics.LoginFailure)

		// The penalty is persisted before the audit entry is emitted.
		attempts := user.FailedLoginAttempts + 1
		var lockedUntil time.Time
		if attempts >= deps.LockoutThreshold {
			lockedUntil = now.Add(deps.LockoutDuration)
			deps.MetricInc(deps.Metrics.AccountLocked)
		}
		if err := deps.RecordFailure(ctx, user.ID, attempts, lockedUntil, now); err != nil {
			return nil, err
		}

		deps.EmitAudit(ctx, deps.Events.LoginFailed, user.ID, map[string]any{
			"email":  email,
			"reason": "Invalid password",
		})
		return nil, deps.Errors.InvalidCredentials
	}

	if err := deps.RecordSuccess(ctx, user.ID, now); err != nil {
		return nil, err
	}

	if user.MFAEnabled {
		if deps.SignPending == nil {
			return nil, deps.Errors.EngineNotReady
		}
		token, expires, err := deps.SignPending(user.ID)
		if err != nil {
			return nil, err
		}
		deps.MetricInc(deps.Metrics.MFAChallenge)
		deps.EmitAudit(ctx, deps.Events.MFAChallenge, user.ID, map[string]any{"email": email})
		return &LoginResult{
			UserID:           user.ID,
			MFARequired:      true,
			PendingToken:     token,
			PendingExpiresAt: expires,
		}, nil
	}

	sessionToken, expires, err := deps.IssueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, user.ID, map[string]any{"email": email})

	return &LoginResult{
		UserID:           user.ID,
		SessionToken:     sessionToken,
		SessionExpiresAt: expires,
	}, nil
}

// RunValidateMFA completes a pending sign-in with a TOTP or backup code.
// A failed code leaves the pending token usable until it expires.
func RunValidateMFA(ctx context.Context, pendingToken, code string, deps LoginDeps) (*LoginResult, error) {
	deps.defaults()
	if deps.VerifyPending == nil ||
		deps.FindByID == nil ||
		deps.VerifyTOTP == nil ||
		deps.AdvanceMFACounter == nil ||
		deps.HashBackupCode == nil ||
		deps.ConsumeBackupCode == nil ||
		deps.IssueSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	userID, err := deps.VerifyPending(pendingToken)
	if err != nil || userID == "" {
		return nil, deps.Errors.PendingExpired
	}

	user, err := deps.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Errors.NotFound) {
			return nil, deps.Errors.PendingExpired
		}
		return nil, err
	}
	if !user.MFAEnabled || user.MFASecret == "" {
		return nil, deps.Errors.InvalidMFACode
	}

	if deps.CheckMFARate != nil {
		if err := deps.CheckMFARate(ctx, user.ID); err != nil {
			deps.MetricInc(deps.Metrics.MFARateLimited)
			return nil, deps.Errors.MFARateLimited
		}
	}

	code = strings.TrimSpace(code)
	method, err := verifySecondFactor(ctx, user, code, deps)
	if err != nil {
		return nil, err
	}
	if method == "" {
		deps.MetricInc(deps.Metrics.MFAFailure)
		deps.EmitAudit(ctx, deps.Events.MFAFailed, user.ID, map[string]any{"email": user.Email})
		if deps.RecordMFAFailure != nil {
			if err := deps.RecordMFAFailure(ctx, user.ID); err != nil {
				deps.Warn("mfa failure not recorded", err)
			}
		}
		return nil, deps.Errors.InvalidMFACode
	}

	if deps.ResetMFARate != nil {
		if err := deps.ResetMFARate(ctx, user.ID); err != nil {
			deps.Warn("mfa limiter reset failed", err)
		}
	}

	sessionToken, expires, err := deps.IssueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.MFASuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, user.ID, map[string]any{
		"email":  user.Email,
		"method": method,
	})

	return &LoginResult{
		UserID:           user.ID,
		SessionToken:     sessionToken,
		SessionExpiresAt: expires,
	}, nil
}

// verifySecondFactor returns "totp", "backup_code", or "" when neither matched.
func verifySecondFactor(ctx context.Context, user *LoginIdentity, code string, deps LoginDeps) (string, error) {
	if code == "" {
		return "", nil
	}

	ok, counter, err := deps.VerifyTOTP(user.MFASecret, code, deps.Now())
	if err != nil {
		return "", err
	}
	if ok {
		if counter <= user.MFALastCounter {
			// Replayed code from an already-used step.
			return "", nil
		}
		// A concurrent submission of the same step may have won since the read.
		advanced, err := deps.AdvanceMFACounter(ctx, user.ID, counter)
		if err != nil {
			return "", err
		}
		if !advanced {
			return "", nil
		}
		return "totp", nil
	}

	consumed, err := deps.ConsumeBackupCode(ctx, user.ID, deps.HashBackupCode(code))
	if err != nil {
		return "", err
	}
	if consumed {
		deps.MetricInc(deps.Metrics.BackupCodeUsed)
		return "backup_code", nil
	}
	return "", nil
}
