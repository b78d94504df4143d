package sias

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password. The two cases are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated is returned when a session token is missing, unknown, or expired.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrPendingExpired is returned when the MFA pending token is tampered with or expired.
	ErrPendingExpired = errors.New("session expired")
	// ErrInvalidMFACode is returned when neither the TOTP code nor a backup code matches.
	ErrInvalidMFACode = errors.New("invalid code")
	// ErrMFARateLimited is returned after too many failed MFA submissions.
	ErrMFARateLimited = errors.New("too many invalid codes")
	// ErrMFANotStarted is returned when confirming setup without a pending secret.
	ErrMFANotStarted = errors.New("mfa setup not started")
	// ErrMFAAlreadyEnabled is returned when starting setup for an identity that already has MFA.
	ErrMFAAlreadyEnabled = errors.New("mfa already enabled")
	// ErrAccountLocked is matched by [*LockedError].
	ErrAccountLocked = errors.New("account locked")
	// ErrAccessDenied is returned when an access-control check denies.
	ErrAccessDenied = errors.New("access denied")
	// ErrNotFound is returned when a named record does not exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrValidation is matched by [*ValidationError].
	ErrValidation = errors.New("validation failed")
	// ErrPasswordPolicy is matched by [*PolicyError].
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReused is returned when a new password matches a recent one.
	ErrPasswordReused = errors.New("password was used recently")
	// ErrEmailTaken is returned by signup for a duplicate email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrCaptchaFailed is returned when the signup CAPTCHA gate rejects.
	ErrCaptchaFailed = errors.New("captcha verification failed")
	// ErrResetTokenInvalid is returned for an unknown, superseded, used, or expired reset token.
	ErrResetTokenInvalid = errors.New("invalid or expired token")
	// ErrVerificationTokenInvalid is returned for an unknown or expired email verification token.
	ErrVerificationTokenInvalid = errors.New("invalid or expired verification token")
	// ErrResetRateLimited is returned when reset requests exceed the configured window.
	ErrResetRateLimited = errors.New("too many reset requests")
	// ErrSignupRateLimited is returned when signups for an email or IP exceed the window.
	ErrSignupRateLimited = errors.New("too many signup attempts")
	// ErrSelfShare is returned when an owner shares a resource with themselves.
	ErrSelfShare = errors.New("cannot share with yourself")
	// ErrStoreUnavailable wraps relational store failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrSessionBackend wraps session store failures.
	ErrSessionBackend = errors.New("session backend unavailable")
	// ErrMailer wraps outbound email failures that must reach the caller.
	ErrMailer = errors.New("email delivery failed")
	// ErrEngineNotReady is returned when a required dependency was not configured.
	ErrEngineNotReady = errors.New("engine not ready")
)

// LockedError reports an engaged lockout and how long remains.
type LockedError struct {
	Until     time.Time
	Remaining time.Duration
}

// RemainingMinutes rounds the remaining wait up to whole minutes.
func (e *LockedError) RemainingMinutes() int {
	if e.Remaining <= 0 {
		return 0
	}
	return int(math.Ceil(e.Remaining.Minutes()))
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("Account locked. Try again in %d minutes.", e.RemainingMinutes())
}

func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// PolicyError carries every violated password rule. Error returns the first.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	if len(e.Violations) == 0 {
		return ErrPasswordPolicy.Error()
	}
	return e.Violations[0]
}

func (e *PolicyError) Is(target error) bool {
	return target == ErrPasswordPolicy || target == ErrValidation
}

// ValidationError names the first invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// ErrorKind is the caller-facing class of an engine error.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindAuthentication
	KindAuthorization
	KindValidation
	KindRateLimited
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Classify maps an engine error to its [ErrorKind]. Unknown errors are internal.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrAccountLocked),
		errors.Is(err, ErrMFARateLimited),
		errors.Is(err, ErrResetRateLimited),
		errors.Is(err, ErrSignupRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrPendingExpired):
		return KindAuthentication
	case errors.Is(err, ErrAccessDenied):
		return KindAuthorization
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidMFACode),
		errors.Is(err, ErrMFANotStarted),
		errors.Is(err, ErrMFAAlreadyEnabled),
		errors.Is(err, ErrPasswordReused),
		errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrCaptchaFailed),
		errors.Is(err, ErrResetTokenInvalid),
		errors.Is(err, ErrVerificationTokenInvalid),
		errors.Is(err, ErrSelfShare):
		return KindValidation
	default:
		return KindInternal
	}
}

// PublicMessage is the text safe to show a caller for err.
func PublicMessage(err error) string {
	switch Classify(err) {
	case KindAuthentication:
		switch {
		case errors.Is(err, ErrPendingExpired):
			return "Session expired"
		case errors.Is(err, ErrInvalidCredentials):
			return "Invalid email or password"
		default:
			return "Unauthorized"
		}
	case KindAuthorization:
		return "Access denied"
	case KindNotFound:
		return "Not found"
	case KindRateLimited, KindValidation:
		return err.Error()
	default:
		return "Internal server error"
	}
}
