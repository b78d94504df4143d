package sias

import (
	"context"
	"errors"

	"github.com/MrEthical07/sias/internal"
)

const resourceMFA = "mfa"

// BeginMFASetup generates a TOTP secret for userID and stores it as pending.
// MFA stays disabled until [Engine.ConfirmMFASetup] proves possession.
func (e *Engine) BeginMFASetup(ctx context.Context, userID string) (*MFASetup, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	user, err := e.store.FindIdentityByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, e.fail("mfa setup lookup", err)
	}
	if user.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}

	setup, err := e.totp.Generate(user.Email)
	if err != nil {
		return nil, e.fail("mfa secret generation", err)
	}
	if err := e.store.SetPendingMFASecret(ctx, user.ID, setup.Secret); err != nil {
		return nil, e.fail("mfa secret save", err)
	}
	return setup, nil
}

// ConfirmMFASetup verifies code against the pending secret, enables MFA and
// returns the plaintext backup codes. The codes are shown exactly once; only
// their hashes are stored. A wrong code leaves the pending secret in place.
func (e *Engine) ConfirmMFASetup(ctx context.Context, userID, code string) ([]string, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if code == "" {
		return nil, invalid("code", "Token required")
	}
	user, err := e.store.FindIdentityByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, e.fail("mfa confirm lookup", err)
	}
	if user.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}
	if user.MFASecret == "" {
		return nil, ErrMFANotStarted
	}

	ok, counter, err := e.totp.VerifyCode(user.MFASecret, code, e.now())
	if err != nil {
		return nil, e.fail("mfa confirm verify", err)
	}
	if !ok {
		e.metricInc(MetricMFAFailure)
		return nil, ErrInvalidMFACode
	}

	codes, err := internal.NewBackupCodes(e.config.TOTP.BackupCodeCount)
	if err != nil {
		return nil, e.fail("backup code generation", err)
	}
	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = internal.HashBackupCode(c)
	}

	if err := e.store.EnableMFA(ctx, user.ID, hashes); err != nil {
		return nil, e.fail("mfa enable", err)
	}
	// The confirming code may not be replayed at sign-in.
	if _, err := e.store.AdvanceMFACounter(ctx, user.ID, counter); err != nil {
		e.warn("mfa counter not recorded", err)
	}

	e.metricInc(MetricMFAEnabled)
	e.emitAudit(ctx, ActionMFAEnabled, user.ID, resourceMFA, map[string]any{"email": user.Email})
	return codes, nil
}

// DisableMFA clears the MFA flag, secret and backup codes in one update.
func (e *Engine) DisableMFA(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	user, err := e.store.FindIdentityByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return e.fail("mfa disable lookup", err)
	}

	if err := e.store.DisableMFA(ctx, user.ID); err != nil {
		return e.fail("mfa disable", err)
	}
	if user.MFAEnabled {
		e.metricInc(MetricMFADisabled)
		e.emitAudit(ctx, ActionMFADisabled, user.ID, resourceMFA, map[string]any{"email": user.Email})
	}
	return nil
}
