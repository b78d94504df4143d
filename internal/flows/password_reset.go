package flows

import (
	"context"
	"errors"
	"strings"
	"time"
)

type PasswordResetIdentity struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
}

type PasswordResetMetrics struct {
	PasswordResetRequest        int
	PasswordResetConfirmSuccess int
	PasswordResetConfirmFailure int
	PasswordReuseRejected       int
}

type PasswordResetEvents struct {
	PasswordResetRequest string
	PasswordReset        string
}

type PasswordResetErrors struct {
	EngineNotReady    error
	Validation        func(field, message string) error
	ResetInvalid      error
	RateLimited       error
	PasswordReused    error
	NotFound          error
	StoreNotFound     error
	Mailer            error
	SessionsNotVoided error
}

type PasswordResetDeps struct {
	TTL time.Duration

	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time

	CheckRequestLimiter func(ctx context.Context, email, ip string) error
	IsRateLimited       func(error) bool

	FindByEmail func(context.Context, string) (*PasswordResetIdentity, error)
	FindByID    func(context.Context, string) (*PasswordResetIdentity, error)

	NewToken     func() (string, error)
	HashToken    func(string) [32]byte
	ValidToken   func(string) bool
	IssueToken   func(ctx context.Context, hash [32]byte, userID string, createdAt, expiresAt time.Time) error
	PeekToken    func(ctx context.Context, hash [32]byte) (string, error)
	ConsumeToken func(ctx context.Context, hash [32]byte) (string, error)

	SendResetEmail func(ctx context.Context, to, token string) error

	CheckPolicy    func(password string, userInputs ...string) error
	IsReused       func(ctx context.Context, userID, candidate, currentHash string) (bool, error)
	HashPassword   func(string) (string, error)
	UpdatePassword func(ctx context.Context, userID, hash string, at time.Time) error
	AppendHistory  func(ctx context.Context, userID, hash string, at time.Time) error
	RevokeSessions func(ctx context.Context, userID string) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, action, userID string, details map[string]any)
	Warn      func(msg string, err error)

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.IsRateLimited == nil {
		deps.IsRateLimited = func(error) bool { return false }
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

// RunRequestPasswordReset issues a reset token for email and mails it. An
// unknown email succeeds without side effects. Mailer failures propagate.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)
	if deps.FindByEmail == nil ||
		deps.NewToken == nil ||
		deps.HashToken == nil ||
		deps.IssueToken == nil ||
		deps.SendResetEmail == nil ||
		deps.Errors.Validation == nil {
		return deps.Errors.EngineNotReady
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return deps.Errors.Validation("email", "Email is required")
	}

	if deps.CheckRequestLimiter != nil {
		if err := deps.CheckRequestLimiter(ctx, email, deps.ClientIPFromContext(ctx)); err != nil {
			if deps.IsRateLimited(err) {
				return deps.Errors.RateLimited
			}
			return err
		}
	}
	deps.MetricInc(deps.Metrics.PasswordResetRequest)

	user, err := deps.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, deps.Errors.NotFound) {
			return nil
		}
		return err
	}

	token, err := deps.NewToken()
	if err != nil {
		return err
	}
	now := deps.Now()
	if err := deps.IssueToken(ctx, deps.HashToken(token), user.ID, now, now.Add(deps.TTL)); err != nil {
		return err
	}

	if err := deps.SendResetEmail(ctx, user.Email, token); err != nil {
		deps.Warn("password reset email failed", err)
		return deps.Errors.Mailer
	}

	deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, user.ID, map[string]any{"email": user.Email})
	return nil
}

// RunConfirmPasswordReset validates token, enforces the password policy and
// history, then consumes the token exactly once and replaces the password.
// A policy failure leaves the token usable.
func RunConfirmPasswordReset(ctx context.Context, token, newPassword string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)
	if deps.HashToken == nil ||
		deps.PeekToken == nil ||
		deps.ConsumeToken == nil ||
		deps.FindByID == nil ||
		deps.CheckPolicy == nil ||
		deps.HashPassword == nil ||
		deps.UpdatePassword == nil ||
		deps.RevokeSessions == nil ||
		deps.Errors.Validation == nil {
		return deps.Errors.EngineNotReady
	}

	if token == "" || newPassword == "" {
		return deps.Errors.Validation("token", "Token and password are required")
	}
	if deps.ValidToken != nil && !deps.ValidToken(token) {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		return deps.Errors.ResetInvalid
	}

	hash := deps.HashToken(token)
	userID, err := deps.PeekToken(ctx, hash)
	if err != nil {
		if errors.Is(err, deps.Errors.StoreNotFound) {
			deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
			return deps.Errors.ResetInvalid
		}
		return err
	}

	user, err := deps.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.Errors.NotFound) {
			deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
			return deps.Errors.ResetInvalid
		}
		return err
	}

	if err := deps.CheckPolicy(newPassword, user.Email, user.Name); err != nil {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		return err
	}
	if deps.IsReused != nil {
		reused, err := deps.IsReused(ctx, user.ID, newPassword, user.PasswordHash)
		if err != nil {
			return err
		}
		if reused {
			deps.MetricInc(deps.Metrics.PasswordReuseRejected)
			return deps.Errors.PasswordReused
		}
	}

	newHash, err := deps.HashPassword(newPassword)
	if err != nil {
		return err
	}

	consumedUserID, err := deps.ConsumeToken(ctx, hash)
	if err != nil {
		if errors.Is(err, deps.Errors.StoreNotFound) {
			deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
			return deps.Errors.ResetInvalid
		}
		return err
	}
	if consumedUserID != user.ID {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		return deps.Errors.ResetInvalid
	}

	now := deps.Now()
	if err := deps.UpdatePassword(ctx, user.ID, newHash, now); err != nil {
		return err
	}
	if deps.AppendHistory != nil {
		if err := deps.AppendHistory(ctx, user.ID, newHash, now); err != nil {
			deps.Warn("password history append failed", err)
		}
	}
	if err := deps.RevokeSessions(ctx, user.ID); err != nil {
		deps.Warn("session revocation after reset failed", err)
		return deps.Errors.SessionsNotVoided
	}

	deps.MetricInc(deps.Metrics.PasswordResetConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordReset, user.ID, map[string]any{"email": user.Email})
	return nil
}
