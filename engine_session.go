package sias

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/sias/internal"
	"github.com/MrEthical07/sias/internal/flows"
	"github.com/MrEthical07/sias/session"
	"go.uber.org/zap"
)

func validSessionToken(token string) bool {
	return internal.ValidOpaqueToken(token)
}

// issueSession stores a fresh opaque token for userID. With SingleSession
// set, every other session of the identity is revoked first.
func (e *Engine) issueSession(ctx context.Context, userID string) (string, time.Time, error) {
	if e.config.Session.SingleSession {
		if _, err := e.sessions.DeleteAllForUser(ctx, userID); err != nil {
			return "", time.Time{}, errors.Join(ErrSessionBackend, err)
		}
	}

	token, err := internal.NewOpaqueToken()
	if err != nil {
		return "", time.Time{}, err
	}
	now := e.now()
	expires := now.Add(e.config.Session.TTL)
	if err := e.sessions.Save(ctx, token, &session.Session{
		UserID:    userID,
		CreatedAt: now.UnixMilli(),
		ExpiresAt: expires.UnixMilli(),
	}); err != nil {
		return "", time.Time{}, errors.Join(ErrSessionBackend, err)
	}
	return token, expires, nil
}

// ValidateSession resolves a session token to its principal. Unknown,
// malformed and expired tokens return [ErrUnauthenticated]; expired rows are
// deleted as a side effect.
func (e *Engine) ValidateSession(ctx context.Context, token string) (*Principal, error) {
	res := flows.RunValidateSession(ctx, token, e.flows.Validate)
	switch res.Failure {
	case flows.ValidateFailureNone:
	case flows.ValidateFailureBackend:
		return nil, e.fail("validate session", fmt.Errorf("%w: %v", ErrSessionBackend, res.Err))
	default:
		return nil, ErrUnauthenticated
	}

	id, err := e.store.FindIdentityByID(ctx, res.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, e.fail("load session principal", err)
	}
	return principalOf(id), nil
}

// SignOut deletes the session for token. Unknown tokens are not an error.
func (e *Engine) SignOut(ctx context.Context, token string) error {
	var userID string
	if validSessionToken(token) {
		if sess, err := e.sessions.Get(ctx, token); err == nil {
			userID = sess.UserID
		}
	}

	if err := flows.RunLogout(ctx, token, e.flows.Logout); err != nil {
		return e.fail("sign out", errors.Join(ErrSessionBackend, err))
	}
	if userID != "" {
		e.metricInc(MetricLogout)
		e.metricInc(MetricSessionInvalidated)
		e.emitAudit(ctx, ActionLogout, userID, resourceAuth, nil)
	}
	return nil
}

// SignOutAll deletes every session of userID and reports how many were removed.
func (e *Engine) SignOutAll(ctx context.Context, userID string) (int, error) {
	n, err := flows.RunLogoutAll(ctx, userID, e.flows.Logout)
	if err != nil {
		return 0, e.fail("sign out all", errors.Join(ErrSessionBackend, err))
	}
	for i := 0; i < n; i++ {
		e.metricInc(MetricSessionInvalidated)
	}
	if n > 0 {
		e.logger.Debug("sessions revoked", zap.String("user_id", userID), zap.Int("count", n))
	}
	return n, nil
}

func (e *Engine) validateDeps() flows.ValidateDeps {
	deps := flows.ValidateDeps{
		ValidToken: validSessionToken,
		LookupSession: func(ctx context.Context, token string) (string, error) {
			sess, err := e.sessions.Get(ctx, token)
			if err != nil {
				return "", err
			}
			return sess.UserID, nil
		},
		SessionMissing: func(err error) bool {
			return errors.Is(err, session.ErrNotFound)
		},
		NotFound: ErrNotFound,
		Now:      e.now,
	}
	if e.metrics.Enabled() {
		deps.Observe = func(d time.Duration) {
			e.metrics.Observe(MetricValidateLatency, d)
		}
	}
	return deps
}
