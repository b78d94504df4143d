package sias

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/sias/access"
	"github.com/MrEthical07/sias/internal"
	"github.com/MrEthical07/sias/internal/limiters"
)

const resourceUser = "user"

// SignUp registers a student identity at the public clearance level and
// signs it in. The verification email is best-effort: a mailer failure is
// logged and does not fail the signup.
func (e *Engine) SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error) {
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || in.Password == "" || name == "" {
		return nil, invalid("email", "Email, password, and name are required")
	}
	if in.CaptchaToken == "" {
		return nil, invalid("captchaToken", "CAPTCHA required")
	}

	if err := e.signupLimiter.Enforce(ctx, email, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, limiters.ErrSignupRateLimited) {
			e.metricInc(MetricSignupFailure)
			return nil, ErrSignupRateLimited
		}
		return nil, e.fail("signup limiter", fmt.Errorf("%w: %v", ErrSessionBackend, err))
	}

	ok, err := e.captcha.VerifyCaptcha(ctx, in.CaptchaToken)
	if err != nil {
		e.warn("captcha verification error", err)
		ok = false
	}
	if !ok {
		e.metricInc(MetricSignupFailure)
		return nil, ErrCaptchaFailed
	}

	if err := checkPolicy(in.Password, email, name); err != nil {
		e.metricInc(MetricSignupFailure)
		return nil, err
	}

	if _, err := e.store.FindIdentityByEmail(ctx, email); err == nil {
		return nil, e.signupDuplicate(ctx, email)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, e.fail("signup lookup", err)
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, e.fail("signup hash", err)
	}
	verifyToken, err := internal.NewOpaqueToken()
	if err != nil {
		return nil, e.fail("signup verification token", err)
	}

	now := e.now()
	id, err := e.store.CreateIdentity(ctx, CreateIdentityInput{
		Name:                  name,
		Email:                 email,
		PasswordHash:          hash,
		Role:                  access.RoleStudent,
		SecurityLevel:         access.LevelPublic,
		VerificationTokenHash: internal.HashTokenHex(verifyToken),
		VerificationExpiresAt: now.Add(e.config.EmailVerification.TTL),
		CreatedAt:             now,
	})
	if err != nil {
		// Lost a race with a concurrent signup for the same email.
		if errors.Is(err, ErrEmailTaken) {
			return nil, e.signupDuplicate(ctx, email)
		}
		return nil, e.fail("signup create", err)
	}

	if err := e.store.AppendPasswordHistory(ctx, id.ID, hash, now); err != nil {
		e.warn("password history append failed", err)
	}
	if err := e.mailer.SendVerificationEmail(ctx, email, verifyToken); err != nil {
		e.warn("verification email failed", err)
	}

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, ActionSignupSuccess, id.ID, resourceUser, map[string]any{
		"email": email,
		"name":  name,
		"role":  string(id.Role),
	})

	token, expires, err := e.issueSession(ctx, id.ID)
	if err != nil {
		return nil, e.fail("signup session", err)
	}
	e.metricInc(MetricSessionCreated)

	return &SignUpResult{
		Principal:        principalOf(id),
		SessionToken:     token,
		SessionExpiresAt: expires,
	}, nil
}

func (e *Engine) signupDuplicate(ctx context.Context, email string) error {
	e.metricInc(MetricSignupFailure)
	e.emitAudit(ctx, ActionSignupFailed, "", resourceUser, map[string]any{
		"email":  email,
		"reason": "duplicate_email",
	})
	return ErrEmailTaken
}

// VerifyEmail marks the identity holding token as verified and clears the
// token. Unknown and expired tokens return [ErrVerificationTokenInvalid].
func (e *Engine) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return invalid("token", "Token is required")
	}

	id, err := e.store.FindIdentityByVerificationToken(ctx, internal.HashTokenHex(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrVerificationTokenInvalid
		}
		return e.fail("verify email lookup", err)
	}
	now := e.now()
	if !id.VerificationExpiresAt.IsZero() && id.VerificationExpiresAt.Before(now) {
		return fmt.Errorf("%w: token expired", ErrVerificationTokenInvalid)
	}

	if err := e.store.MarkEmailVerified(ctx, id.ID, now); err != nil {
		return e.fail("verify email", err)
	}
	e.metricInc(MetricEmailVerified)
	e.emitAudit(ctx, ActionEmailVerified, id.ID, resourceUser, map[string]any{"email": id.Email})
	return nil
}

// ChangeRole sets the role of targetID. Only an admin may change roles.
func (e *Engine) ChangeRole(ctx context.Context, actor *Principal, targetID string, role access.Role) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	if !access.RoleIs(actor.Role, access.RoleAdmin) {
		e.metricInc(MetricAccessDenied)
		return fmt.Errorf("%w: admin role required", ErrAccessDenied)
	}
	if !role.Valid() {
		return invalid("role", "Invalid role")
	}

	target, err := e.store.FindIdentityByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return e.fail("role change lookup", err)
	}
	oldRole := target.Role

	if err := e.store.UpdateRole(ctx, target.ID, role, e.now()); err != nil {
		return e.fail("role change", err)
	}

	e.emitAudit(ctx, ActionRoleChange, actor.ID, "users", map[string]any{
		"targetUserId":    target.ID,
		"targetUserEmail": target.Email,
		"oldRole":         string(oldRole),
		"newRole":         string(role),
		"changedBy":       actor.Email,
	})
	return nil
}
