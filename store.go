package sias

import (
	"context"
	"time"

	"github.com/MrEthical07/sias/access"
	"go.uber.org/zap"
)

// IdentityStore is the credential store the engine consumes. Lookups return
// [ErrNotFound] when no row matches and [ErrEmailTaken] on a duplicate email.
// Other failures should wrap [ErrStoreUnavailable].
type IdentityStore interface {
	FindIdentityByEmail(ctx context.Context, email string) (*Identity, error)
	FindIdentityByID(ctx context.Context, id string) (*Identity, error)
	FindIdentityByVerificationToken(ctx context.Context, tokenHash string) (*Identity, error)
	CreateIdentity(ctx context.Context, input CreateIdentityInput) (*Identity, error)

	// RecordLoginFailure stores the new counter value and lockout. A zero
	// lockedUntil clears the lockout.
	RecordLoginFailure(ctx context.Context, id string, attempts int, lockedUntil, at time.Time) error
	// RecordLoginSuccess resets the counter and clears any lockout.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error

	UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) error
	UpdateRole(ctx context.Context, id string, role access.Role, at time.Time) error
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error

	SetPendingMFASecret(ctx context.Context, id, secret string) error
	// EnableMFA marks MFA enabled and replaces the backup code hashes.
	EnableMFA(ctx context.Context, id string, backupCodeHashes []string) error
	// DisableMFA clears the flag, secret, counter and codes in one update.
	DisableMFA(ctx context.Context, id string) error
	// AdvanceMFACounter stores counter only when it is above the stored
	// value and reports whether it did.
	AdvanceMFACounter(ctx context.Context, id string, counter int64) (bool, error)
	// ConsumeBackupCode removes codeHash from the identity's codes. It
	// reports false when the code is absent or was consumed concurrently.
	ConsumeBackupCode(ctx context.Context, id, codeHash string) (bool, error)
}

// ShareStore persists DAC grants.
type ShareStore interface {
	access.ShareFinder
	// ResourceOwner returns the identity that owns the resource. Unknown
	// resource types and missing resources return ErrNotFound. An existing
	// resource without an owner returns "".
	ResourceOwner(ctx context.Context, resourceType, resourceID string) (string, error)
	InsertShare(ctx context.Context, share Share) (*Share, error)
	// DeleteShare deletes shareID only when ownerID owns it.
	DeleteShare(ctx context.Context, ownerID, shareID string) (bool, error)
	ListSharesByOwner(ctx context.Context, ownerID string) ([]Share, error)
	ListSharesWithUser(ctx context.Context, userID string) ([]Share, error)
}

// AuditStore is the append-only audit trail.
type AuditStore interface {
	InsertAuditEntry(ctx context.Context, record AuditRecord) error
	QueryAuditEntries(ctx context.Context, filter AuditFilter) ([]AuditRecord, int, error)
}

// PasswordHistoryStore records previous password hashes.
type PasswordHistoryStore interface {
	AppendPasswordHistory(ctx context.Context, userID, hash string, at time.Time) error
	RecentPasswordHashes(ctx context.Context, userID string, limit int) ([]string, error)
}

// RecordStore serves the academic records gated by access checks.
type RecordStore interface {
	ListGradeRecords(ctx context.Context) ([]GradeRecord, error)
	FindEnrollment(ctx context.Context, enrollmentID string) (*EnrollmentRecord, error)
	// UpsertGrade updates the enrollment's grade or inserts one at
	// [access.LevelConfidential].
	UpsertGrade(ctx context.Context, enrollmentID, grade, updatedBy string, at time.Time) error
}

// Store is everything the engine persists outside Redis.
type Store interface {
	IdentityStore
	ShareStore
	AuditStore
	PasswordHistoryStore
	RecordStore
}

// Mailer delivers tokens to an address.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

// LogMailer writes outbound tokens to a zap logger instead of sending mail.
type LogMailer struct {
	Logger  *zap.Logger
	BaseURL string
}

// SendVerificationEmail implements [Mailer].
func (m LogMailer) SendVerificationEmail(_ context.Context, to, token string) error {
	m.logger().Info("verification email",
		zap.String("to", to),
		zap.String("link", m.BaseURL+"/verify-email?token="+token),
	)
	return nil
}

// SendPasswordResetEmail implements [Mailer].
func (m LogMailer) SendPasswordResetEmail(_ context.Context, to, token string) error {
	m.logger().Info("password reset email",
		zap.String("to", to),
		zap.String("link", m.BaseURL+"/reset-password?token="+token),
	)
	return nil
}

func (m LogMailer) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}

// CaptchaVerifier is the signup CAPTCHA gate.
type CaptchaVerifier interface {
	VerifyCaptcha(ctx context.Context, token string) (bool, error)
}

// CaptchaFunc adapts a function to [CaptchaVerifier].
type CaptchaFunc func(ctx context.Context, token string) (bool, error)

// VerifyCaptcha implements [CaptchaVerifier].
func (f CaptchaFunc) VerifyCaptcha(ctx context.Context, token string) (bool, error) {
	return f(ctx, token)
}

// StaticCaptcha accepts any non-empty token when true and rejects everything when false.
type StaticCaptcha bool

// VerifyCaptcha implements [CaptchaVerifier].
func (s StaticCaptcha) VerifyCaptcha(_ context.Context, token string) (bool, error) {
	return bool(s) && token != "", nil
}
