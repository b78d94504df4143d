package access

// Attributes is the flat attribute bag consulted by ABAC policies.
type Attributes map[string]string

const (
	AttrDepartment = "department"
	AttrYear       = "year"
)

// Policy names an ABAC attribute-matching policy.
type Policy string

const (
	PolicySameDepartment Policy = "same_department"
	PolicySameYear       Policy = "same_year"
)

// CheckABAC evaluates policy over the two attribute bags. Matching is exact
// and case-sensitive; an attribute missing or empty on either side never
// matches, including when it is missing on both.
func CheckABAC(user, resource Attributes, policy Policy) bool {
	switch policy {
	case PolicySameDepartment:
		return attributeEqual(user, resource, AttrDepartment)
	case PolicySameYear:
		return attributeEqual(user, resource, AttrYear)
	default:
		return false
	}
}

func attributeEqual(user, resource Attributes, key string) bool {
	u, ok := user[key]
	if !ok || u == "" {
		return false
	}
	r, ok := resource[key]
	if !ok || r == "" {
		return false
	}
	return u == r
}
