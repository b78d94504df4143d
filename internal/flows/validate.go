package flows

import (
	"context"
	"errors"
	"time"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureMalformed
	ValidateFailureSessionNotFound
	ValidateFailureIdentityNotFound
	ValidateFailureBackend
)

// ValidateResult carries the resolved owner of a session or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	UserID  string
}

// ValidateDeps captures session validation dependencies.
type ValidateDeps struct {
	ValidToken     func(string) bool
	LookupSession  func(ctx context.Context, token string) (userID string, err error)
	SessionMissing func(error) bool
	IdentityExists func(ctx context.Context, userID string) error
	NotFound       error

	Now     func() time.Time
	Observe func(time.Duration)
}

// RunValidateSession resolves token to its owning identity. Expired rows are
// purged by the lookup and reported as not found.
func RunValidateSession(ctx context.Context, token string, deps ValidateDeps) ValidateResult {
	if deps.Now != nil && deps.Observe != nil {
		start := deps.Now()
		defer func() { deps.Observe(deps.Now().Sub(start)) }()
	}

	if token == "" || (deps.ValidToken != nil && !deps.ValidToken(token)) {
		return ValidateResult{Failure: ValidateFailureMalformed}
	}

	userID, err := deps.LookupSession(ctx, token)
	if err != nil {
		if deps.SessionMissing != nil && deps.SessionMissing(err) {
			return ValidateResult{Failure: ValidateFailureSessionNotFound}
		}
		return ValidateResult{Failure: ValidateFailureBackend, Err: err}
	}

	if deps.IdentityExists != nil {
		if err := deps.IdentityExists(ctx, userID); err != nil {
			if errors.Is(err, deps.NotFound) {
				return ValidateResult{Failure: ValidateFailureIdentityNotFound, UserID: userID}
			}
			return ValidateResult{Failure: ValidateFailureBackend, Err: err}
		}
	}

	return ValidateResult{UserID: userID}
}
