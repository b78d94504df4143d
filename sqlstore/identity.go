package sqlstore

import (
	"context"
	"encoding/json"
	"time"

	sias "github.com/MrEthical07/sias"
	"github.com/MrEthical07/sias/access"
)

const identityColumns = `id, name, email, password_hash, role, department, year, security_level,
	mfa_enabled, mfa_secret, backup_codes, mfa_last_counter,
	email_verified, verification_token_hash, verification_expires_at,
	failed_login_attempts, locked_until, last_login_attempt, created_at, updated_at`

type identityRow struct {
	ID                    string `db:"id"`
	Name                  string `db:"name"`
	Email                 string `db:"email"`
	PasswordHash          string `db:"password_hash"`
	Role                  string `db:"role"`
	Department            string `db:"department"`
	Year                  int    `db:"year"`
	SecurityLevel         string `db:"security_level"`
	MFAEnabled            bool   `db:"mfa_enabled"`
	MFASecret             string `db:"mfa_secret"`
	BackupCodes           string `db:"backup_codes"`
	MFALastCounter        int64  `db:"mfa_last_counter"`
	EmailVerified         bool   `db:"email_verified"`
	VerificationTokenHash string `db:"verification_token_hash"`
	VerificationExpiresAt int64  `db:"verification_expires_at"`
	FailedLoginAttempts   int    `db:"failed_login_attempts"`
	LockedUntil           int64  `db:"locked_until"`
	LastLoginAttempt      int64  `db:"last_login_attempt"`
	CreatedAt             int64  `db:"created_at"`
	UpdatedAt             int64  `db:"updated_at"`
}

func (r *identityRow) identity() *sias.Identity {
	var codes []string
	if r.BackupCodes != "" {
		// A corrupt list reads as no codes left.
		_ = json.Unmarshal([]byte(r.BackupCodes), &codes)
	}
	return &sias.Identity{
		ID:                    r.ID,
		Name:                  r.Name,
		Email:                 r.Email,
		PasswordHash:          r.PasswordHash,
		Role:                  access.Role(r.Role),
		Department:            r.Department,
		Year:                  r.Year,
		SecurityLevel:         access.SecurityLevel(r.SecurityLevel),
		MFAEnabled:            r.MFAEnabled,
		MFASecret:             r.MFASecret,
		BackupCodes:           codes,
		MFALastCounter:        r.MFALastCounter,
		EmailVerified:         r.EmailVerified,
		VerificationTokenHash: r.VerificationTokenHash,
		VerificationExpiresAt: fromMillis(r.VerificationExpiresAt),
		FailedLoginAttempts:   r.FailedLoginAttempts,
		LockedUntil:           fromMillis(r.LockedUntil),
		LastLoginAttempt:      fromMillis(r.LastLoginAttempt),
		CreatedAt:             fromMillis(r.CreatedAt),
		UpdatedAt:             fromMillis(r.UpdatedAt),
	}
}

func encodeCodes(codes []string) (string, error) {
	if codes == nil {
		codes = []string{}
	}
	b, err := json.Marshal(codes)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Store) findIdentity(ctx context.Context, op, where string, arg any) (*sias.Identity, error) {
	var row identityRow
	query := `SELECT ` + identityColumns + ` FROM users WHERE ` + where
	if err := s.db.GetContext(ctx, &row, s.q(query), arg); err != nil {
		return nil, wrap(op, err)
	}
	return row.identity(), nil
}

// FindIdentityByEmail implements [sias.IdentityStore].
func (s *Store) FindIdentityByEmail(ctx context.Context, email string) (*sias.Identity, error) {
	return s.findIdentity(ctx, "find identity by email", `email = ?`, email)
}

// FindIdentityByID implements [sias.IdentityStore].
func (s *Store) FindIdentityByID(ctx context.Context, id string) (*sias.Identity, error) {
	return s.findIdentity(ctx, "find identity by id", `id = ?`, id)
}

// FindIdentityByVerificationToken implements [sias.IdentityStore].
func (s *Store) FindIdentityByVerificationToken(ctx context.Context, tokenHash string) (*sias.Identity, error) {
	if tokenHash == "" {
		return nil, sias.ErrNotFound
	}
	return s.findIdentity(ctx, "find identity by verification token", `verification_token_hash = ?`, tokenHash)
}

// CreateIdentity implements [sias.IdentityStore].
func (s *Store) CreateIdentity(ctx context.Context, in sias.CreateIdentityInput) (*sias.Identity, error) {
	role := in.Role
	if role == "" {
		role = access.RoleStudent
	}
	level := in.SecurityLevel
	if level == "" {
		level = access.LevelPublic
	}
	now := millis(in.CreatedAt)
	id := s.newID()

	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO users (id, name, email, password_hash, role, security_level,
			verification_token_hash, verification_expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id, in.Name, in.Email, in.PasswordHash, string(role), string(level),
		in.VerificationTokenHash, millis(in.VerificationExpiresAt), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, sias.ErrEmailTaken
		}
		return nil, wrap("create identity", err)
	}
	return s.FindIdentityByID(ctx, id)
}

// RecordLoginFailure implements [sias.IdentityStore].
func (s *Store) RecordLoginFailure(ctx context.Context, id string, attempts int, lockedUntil, at time.Time) error {
	return s.execOne(ctx, "record login failure", `
		UPDATE users SET failed_login_attempts = ?, locked_until = ?, last_login_attempt = ?
		WHERE id = ?`,
		attempts, millis(lockedUntil), millis(at), id,
	)
}

// RecordLoginSuccess implements [sias.IdentityStore].
func (s *Store) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	return s.execOne(ctx, "record login success", `
		UPDATE users SET failed_login_attempts = 0, locked_until = 0, last_login_attempt = ?
		WHERE id = ?`,
		millis(at), id,
	)
}

// UpdatePasswordHash implements [sias.IdentityStore].
func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) error {
	return s.execOne(ctx, "update password",
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, millis(at), id,
	)
}

// UpdateRole implements [sias.IdentityStore].
func (s *Store) UpdateRole(ctx context.Context, id string, role access.Role, at time.Time) error {
	return s.execOne(ctx, "update role",
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`,
		string(role), millis(at), id,
	)
}

// MarkEmailVerified implements [sias.IdentityStore]. The token is cleared.
func (s *Store) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	return s.execOne(ctx, "mark email verified", `
		UPDATE users SET email_verified = 1, verification_token_hash = '', verification_expires_at = 0, updated_at = ?
		WHERE id = ?`,
		millis(at), id,
	)
}

// SetPendingMFASecret implements [sias.IdentityStore].
func (s *Store) SetPendingMFASecret(ctx context.Context, id, secret string) error {
	return s.execOne(ctx, "set mfa secret",
		`UPDATE users SET mfa_secret = ? WHERE id = ?`,
		secret, id,
	)
}

// EnableMFA implements [sias.IdentityStore].
func (s *Store) EnableMFA(ctx context.Context, id string, backupCodeHashes []string) error {
	codes, err := encodeCodes(backupCodeHashes)
	if err != nil {
		return wrap("encode backup codes", err)
	}
	return s.execOne(ctx, "enable mfa",
		`UPDATE users SET mfa_enabled = 1, backup_codes = ? WHERE id = ?`,
		codes, id,
	)
}

// DisableMFA implements [sias.IdentityStore].
func (s *Store) DisableMFA(ctx context.Context, id string) error {
	return s.execOne(ctx, "disable mfa", `
		UPDATE users SET mfa_enabled = 0, mfa_secret = '', backup_codes = '[]', mfa_last_counter = 0
		WHERE id = ?`,
		id,
	)
}

// AdvanceMFACounter implements [sias.IdentityStore]. The guard makes the
// compare and the write one statement, so one time step is accepted once.
func (s *Store) AdvanceMFACounter(ctx context.Context, id string, counter int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE users SET mfa_last_counter = ? WHERE id = ? AND mfa_last_counter < ?`),
		counter, id, counter,
	)
	if err != nil {
		return false, wrap("advance mfa counter", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("advance mfa counter", err)
	}
	return n > 0, nil
}

// ConsumeBackupCode implements [sias.IdentityStore]. The update is guarded
// by the list it read, so two concurrent uses of one code cannot both win.
func (s *Store) ConsumeBackupCode(ctx context.Context, id, codeHash string) (bool, error) {
	var current string
	err := s.db.GetContext(ctx, &current, s.q(`SELECT backup_codes FROM users WHERE id = ?`), id)
	if err != nil {
		return false, wrap("read backup codes", err)
	}

	var codes []string
	if err := json.Unmarshal([]byte(current), &codes); err != nil {
		return false, nil
	}
	idx := -1
	for i, c := range codes {
		if c == codeHash {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	remaining, err := encodeCodes(append(codes[:idx:idx], codes[idx+1:]...))
	if err != nil {
		return false, wrap("encode backup codes", err)
	}
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE users SET backup_codes = ? WHERE id = ? AND backup_codes = ?`),
		remaining, id, current,
	)
	if err != nil {
		return false, wrap("consume backup code", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("consume backup code", err)
	}
	return n == 1, nil
}

// ProfileUpdate sets the attributes consulted by access checks.
type ProfileUpdate struct {
	Role          access.Role
	Department    string
	Year          int
	SecurityLevel access.SecurityLevel
}

// UpdateProfile sets role, department, year and clearance of id. It is used
// by seeding and administrative tooling.
func (s *Store) UpdateProfile(ctx context.Context, id string, p ProfileUpdate, at time.Time) error {
	if !p.Role.Valid() || !p.SecurityLevel.Valid() {
		return sias.ErrValidation
	}
	return s.execOne(ctx, "update profile", `
		UPDATE users SET role = ?, department = ?, year = ?, security_level = ?, updated_at = ?
		WHERE id = ?`,
		string(p.Role), p.Department, p.Year, string(p.SecurityLevel), millis(at), id,
	)
}
