package sias

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sias/internal"
	"github.com/MrEthical07/sias/internal/flows"
	"github.com/MrEthical07/sias/internal/limiters"
	"github.com/MrEthical07/sias/internal/stores"
	"github.com/MrEthical07/sias/password"
)

// RequestPasswordReset issues a single-use reset token for email and mails
// it. Unknown emails succeed silently so the caller cannot enumerate accounts.
// Issuing a token supersedes any earlier token for the same identity.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	err := flows.RunRequestPasswordReset(ctx, normalizeEmail(email), e.flows.PasswordReset)
	if err != nil && Classify(err) == KindInternal {
		return e.fail("request password reset", err)
	}
	return err
}

// ConfirmPasswordReset replaces the password of the token's identity. The
// token is consumed only after the new password passes policy and history
// checks. Every session of the identity is revoked on success.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	err := flows.RunConfirmPasswordReset(ctx, token, newPassword, e.flows.PasswordReset)
	if err != nil && Classify(err) == KindInternal {
		return e.fail("confirm password reset", err)
	}
	return err
}

// IsPasswordReused reports whether candidate matches currentHash or one of
// the identity's last HistoryDepth password hashes.
func (e *Engine) IsPasswordReused(ctx context.Context, userID, candidate, currentHash string) (bool, error) {
	if currentHash != "" {
		if ok, err := e.hasher.Verify(candidate, currentHash); err == nil && ok {
			return true, nil
		}
	}
	if e.config.Password.HistoryDepth <= 0 {
		return false, nil
	}

	hashes, err := e.store.RecentPasswordHashes(ctx, userID, e.config.Password.HistoryDepth)
	if err != nil {
		return false, err
	}
	for _, h := range hashes {
		ok, err := e.hasher.Verify(candidate, h)
		if err != nil {
			e.warn("password history entry unreadable", err)
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// checkPolicy validates pw against the password policy. userInputs are
// penalised by the strength estimator.
func checkPolicy(pw string, userInputs ...string) error {
	res := password.Validate(pw, userInputs...)
	if res.Valid {
		return nil
	}
	return &PolicyError{Violations: res.Errors}
}

func (e *Engine) passwordResetDeps() flows.PasswordResetDeps {
	deps := flows.PasswordResetDeps{
		TTL:                 e.config.PasswordReset.TTL,
		ClientIPFromContext: clientIPFromContext,
		Now:                 e.now,

		IsRateLimited: func(err error) bool {
			return errors.Is(err, limiters.ErrResetRateLimited)
		},

		FindByEmail: func(ctx context.Context, email string) (*flows.PasswordResetIdentity, error) {
			id, err := e.store.FindIdentityByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			return resetIdentityOf(id), nil
		},
		FindByID: func(ctx context.Context, userID string) (*flows.PasswordResetIdentity, error) {
			id, err := e.store.FindIdentityByID(ctx, userID)
			if err != nil {
				return nil, err
			}
			return resetIdentityOf(id), nil
		},

		NewToken:   internal.NewOpaqueToken,
		HashToken:  internal.HashToken,
		ValidToken: internal.ValidOpaqueToken,
		IssueToken: func(ctx context.Context, hash [32]byte, userID string, createdAt, expiresAt time.Time) error {
			return e.resets.Issue(ctx, hash, &stores.PasswordResetRecord{
				UserID:    userID,
				CreatedAt: createdAt.UnixMilli(),
				ExpiresAt: expiresAt.UnixMilli(),
			})
		},
		PeekToken: func(ctx context.Context, hash [32]byte) (string, error) {
			rec, err := e.resets.Get(ctx, hash)
			if err != nil {
				return "", err
			}
			return rec.UserID, nil
		},
		ConsumeToken: func(ctx context.Context, hash [32]byte) (string, error) {
			rec, err := e.resets.Consume(ctx, hash)
			if err != nil {
				return "", err
			}
			return rec.UserID, nil
		},

		SendResetEmail: e.mailer.SendPasswordResetEmail,

		CheckPolicy:    checkPolicy,
		IsReused:       e.IsPasswordReused,
		HashPassword:   e.hasher.Hash,
		UpdatePassword: e.store.UpdatePasswordHash,
		AppendHistory:  e.store.AppendPasswordHistory,
		RevokeSessions: func(ctx context.Context, userID string) error {
			_, err := e.SignOutAll(ctx, userID)
			return err
		},

		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: func(ctx context.Context, action, userID string, details map[string]any) {
			e.emitAudit(ctx, action, userID, resourceAuth, details)
		},
		Warn: e.warn,

		Metrics: flows.PasswordResetMetrics{
			PasswordResetRequest:        int(MetricPasswordResetRequest),
			PasswordResetConfirmSuccess: int(MetricPasswordResetSuccess),
			PasswordResetConfirmFailure: int(MetricPasswordResetFailure),
			PasswordReuseRejected:       int(MetricPasswordReuseRejected),
		},
		Events: flows.PasswordResetEvents{
			PasswordResetRequest: ActionPasswordResetRequest,
			PasswordReset:        ActionPasswordReset,
		},
		Errors: flows.PasswordResetErrors{
			EngineNotReady:    ErrEngineNotReady,
			Validation:        invalid,
			ResetInvalid:      ErrResetTokenInvalid,
			RateLimited:       ErrResetRateLimited,
			PasswordReused:    ErrPasswordReused,
			NotFound:          ErrNotFound,
			StoreNotFound:     stores.ErrResetNotFound,
			Mailer:            ErrMailer,
			SessionsNotVoided: fmt.Errorf("%w: sessions not revoked after reset", ErrSessionBackend),
		},
	}
	if e.resetLimiter != nil {
		deps.CheckRequestLimiter = e.resetLimiter.CheckRequest
	}
	return deps
}

func resetIdentityOf(id *Identity) *flows.PasswordResetIdentity {
	return &flows.PasswordResetIdentity{
		ID:           id.ID,
		Email:        id.Email,
		Name:         id.Name,
		PasswordHash: id.PasswordHash,
	}
}
