package sias

import (
	"strconv"
	"time"

	"github.com/MrEthical07/sias/access"
)

// Identity is the full credential record held by an [IdentityStore]. It
// carries the password hash, lockout counters, MFA material, and the
// attributes consulted by access checks.
type Identity struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	Role          access.Role
	Department    string
	Year          int
	SecurityLevel access.SecurityLevel

	MFAEnabled     bool
	MFASecret      string
	BackupCodes    []string // SHA-256 hex of each unused code
	MFALastCounter int64

	EmailVerified         bool
	VerificationTokenHash string
	VerificationExpiresAt time.Time

	FailedLoginAttempts int
	LockedUntil         time.Time
	LastLoginAttempt    time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Attributes returns the ABAC attributes of the identity. Unset values are omitted.
func (i *Identity) Attributes() access.Attributes {
	attrs := access.Attributes{}
	if i == nil {
		return attrs
	}
	if i.Department != "" {
		attrs[access.AttrDepartment] = i.Department
	}
	if i.Year > 0 {
		attrs[access.AttrYear] = strconv.Itoa(i.Year)
	}
	return attrs
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	ID            string
	Name          string
	Email         string
	Role          access.Role
	Department    string
	Year          int
	SecurityLevel access.SecurityLevel
	MFAEnabled    bool
	EmailVerified bool
}

// Attributes returns the ABAC attributes of the principal.
func (p *Principal) Attributes() access.Attributes {
	if p == nil {
		return access.Attributes{}
	}
	id := Identity{Department: p.Department, Year: p.Year}
	return id.Attributes()
}

func principalOf(id *Identity) *Principal {
	return &Principal{
		ID:            id.ID,
		Name:          id.Name,
		Email:         id.Email,
		Role:          id.Role,
		Department:    id.Department,
		Year:          id.Year,
		SecurityLevel: id.SecurityLevel,
		MFAEnabled:    id.MFAEnabled,
		EmailVerified: id.EmailVerified,
	}
}

// LoginResult is returned by [Engine.SignIn] and [Engine.ValidateMFA].
// Exactly one of SessionToken or PendingToken is set.
type LoginResult struct {
	SessionToken     string
	SessionExpiresAt time.Time

	MFARequired      bool
	PendingToken     string
	PendingExpiresAt time.Time

	Principal *Principal
}

// MFASetup is returned by [Engine.BeginMFASetup].
type MFASetup struct {
	Secret string
	URI    string
	QRCode string // data:image/png;base64,...
}

// SignUpInput is the input for [Engine.SignUp].
type SignUpInput struct {
	Email        string
	Password     string
	Name         string
	CaptchaToken string
}

// SignUpResult is returned by [Engine.SignUp].
type SignUpResult struct {
	Principal        *Principal
	SessionToken     string
	SessionExpiresAt time.Time
}

// CreateIdentityInput is the input for [IdentityStore.CreateIdentity].
type CreateIdentityInput struct {
	Name                  string
	Email                 string
	PasswordHash          string
	Role                  access.Role
	SecurityLevel         access.SecurityLevel
	VerificationTokenHash string
	VerificationExpiresAt time.Time
	CreatedAt             time.Time
}

// Share is a DAC grant from an owner to another identity.
type Share struct {
	ID           string
	ResourceType string
	ResourceID   string
	OwnerID      string
	SharedWithID string
	Permission   access.Permission
	CreatedAt    time.Time

	// Populated on listing.
	OwnerEmail      string
	SharedWithEmail string
}

// ShareRequest is the input for [Engine.ShareResource].
type ShareRequest struct {
	ResourceType    string
	ResourceID      string
	SharedWithEmail string
	Permission      access.Permission
}

// ShareList is returned by [Engine.ListShares].
type ShareList struct {
	SharedByMe   []Share
	SharedWithMe []Share
}

// AuditRecord is a persisted audit row. Details holds the encrypted blob.
type AuditRecord struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Details   string
	Timestamp time.Time

	// Joined on read.
	UserName  string
	UserEmail string
}

// AuditFilter is the store-level audit query.
type AuditFilter struct {
	Search string
	Action string
	From   time.Time
	To     time.Time
	Offset int
	Limit  int
}

// AuditQuery is the caller-facing audit query for [Engine.QueryAuditLogs].
type AuditQuery struct {
	Search string
	Action string
	From   time.Time
	To     time.Time
	Page   int
	Limit  int
}

// AuditEntry is a decrypted audit row.
type AuditEntry struct {
	ID        string
	UserID    string
	UserName  string
	UserEmail string
	Action    string
	Resource  string
	IP        string
	Details   map[string]any
	Timestamp time.Time
}

// AuditPage is returned by [Engine.QueryAuditLogs].
type AuditPage struct {
	Entries    []AuditEntry
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// GradeRecord is a grade joined with its course.
type GradeRecord struct {
	ID            string
	EnrollmentID  string
	Grade         string
	CourseCode    string
	CourseTitle   string
	SecurityLevel access.SecurityLevel
}

// GradeList is returned by [Engine.ListGrades].
type GradeList struct {
	Grades            []GradeRecord
	UserSecurityLevel access.SecurityLevel
	TotalFound        int
	AccessibleCount   int
}

// EnrollmentRecord resolves an enrollment to its course and owning instructor.
type EnrollmentRecord struct {
	ID                 string
	StudentID          string
	CourseID           string
	CourseLevel        access.SecurityLevel
	InstructorUserID   string
	CurrentGrade       string
	CurrentGradeExists bool
}

// GradeUpdate is the input for [Engine.UpdateGrade].
type GradeUpdate struct {
	EnrollmentID string
	Grade        string
}

// DepartmentReport is returned by [Engine.DepartmentReport].
type DepartmentReport struct {
	Department string
	Budget     int
}
