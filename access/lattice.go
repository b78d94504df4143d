package access

// SecurityLevel is a clearance label attached to identities and resources.
type SecurityLevel string

const (
	LevelPublic       SecurityLevel = "public"
	LevelInternal     SecurityLevel = "internal"
	LevelConfidential SecurityLevel = "confidential"
	LevelRestricted   SecurityLevel = "restricted"
)

var levelRanks = map[SecurityLevel]int{
	LevelPublic:       0,
	LevelInternal:     1,
	LevelConfidential: 2,
	LevelRestricted:   3,
}

// Levels lists every security level from lowest to highest clearance.
func Levels() []SecurityLevel {
	return []SecurityLevel{LevelPublic, LevelInternal, LevelConfidential, LevelRestricted}
}

// Rank returns the position of l in the lattice, or -1 when l is unknown.
func (l SecurityLevel) Rank() int {
	rank, ok := levelRanks[l]
	if !ok {
		return -1
	}
	return rank
}

// Valid reports whether l is one of the four known levels.
func (l SecurityLevel) Valid() bool {
	return l.Rank() >= 0
}

// Role is one of the fixed portal roles.
type Role string

const (
	RoleStudent        Role = "student"
	RoleInstructor     Role = "instructor"
	RoleDepartmentHead Role = "department_head"
	RoleRegistrar      Role = "registrar"
	RoleAdmin          Role = "admin"
)

var roleRanks = map[Role]int{
	RoleStudent:        0,
	RoleInstructor:     1,
	RoleDepartmentHead: 2,
	RoleRegistrar:      3,
	RoleAdmin:          4,
}

// Roles lists every role from least to most privileged.
func Roles() []Role {
	return []Role{RoleStudent, RoleInstructor, RoleDepartmentHead, RoleRegistrar, RoleAdmin}
}

// Rank returns the position of r in the role hierarchy, or -1 when r is unknown.
func (r Role) Rank() int {
	rank, ok := roleRanks[r]
	if !ok {
		return -1
	}
	return rank
}

// Valid reports whether r is one of the five known roles.
func (r Role) Valid() bool {
	return r.Rank() >= 0
}

// CheckMAC allows access iff the user clearance dominates the resource label.
// An unknown label on either side denies.
func CheckMAC(userLevel, resourceLevel SecurityLevel) bool {
	u, r := userLevel.Rank(), resourceLevel.Rank()
	if u < 0 || r < 0 {
		return false
	}
	return u >= r
}

// CheckRBAC allows access iff userRole sits at or above requiredRole in the
// hierarchy. Most handlers gate on an exact role instead; see [RoleIs].
func CheckRBAC(userRole, requiredRole Role) bool {
	u, r := userRole.Rank(), requiredRole.Rank()
	if u < 0 || r < 0 {
		return false
	}
	return u >= r
}

// RoleIs is the exact-match role gate used by most record endpoints.
func RoleIs(userRole, expected Role) bool {
	return expected.Valid() && userRole == expected
}
