package access

import (
	"context"
	"errors"
)

// Permission is the access mode carried by a share grant.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// Valid reports whether p is read or write.
func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionWrite
}

// Grant is the slice of a share row the DAC evaluator needs.
type Grant struct {
	Permission Permission
}

// ShareFinder returns every grant ownerID made to sharedWith on
// (resourceType, resourceID). Grants recorded under any other owner are
// never returned.
type ShareFinder interface {
	FindShareGrants(ctx context.Context, ownerID, sharedWith, resourceType, resourceID string) ([]Grant, error)
}

// ErrNoShareFinder is returned when a DAC evaluator has no backing store.
var ErrNoShareFinder = errors.New("dac share finder not configured")

// DAC evaluates explicit owner-granted shares. It never treats the owner as
// implicitly granted.
type DAC struct {
	finder ShareFinder
}

// NewDAC builds a DAC evaluator over finder.
func NewDAC(finder ShareFinder) *DAC {
	return &DAC{finder: finder}
}

// Check reports whether ownerID granted userID a share on the resource
// satisfying perm. A write grant satisfies read; only a write grant satisfies
// write. A resource without an owner has no valid grants.
func (d *DAC) Check(ctx context.Context, ownerID, userID, resourceID, resourceType string, perm Permission) (bool, error) {
	if d == nil || d.finder == nil {
		return false, ErrNoShareFinder
	}
	if ownerID == "" || userID == "" || resourceID == "" || resourceType == "" || !perm.Valid() {
		return false, nil
	}

	grants, err := d.finder.FindShareGrants(ctx, ownerID, userID, resourceType, resourceID)
	if err != nil {
		return false, err
	}
	for _, g := range grants {
		if grantSatisfies(g.Permission, perm) {
			return true, nil
		}
	}
	return false, nil
}

func grantSatisfies(granted, requested Permission) bool {
	switch requested {
	case PermissionRead:
		return granted == PermissionRead || granted == PermissionWrite
	case PermissionWrite:
		return granted == PermissionWrite
	default:
		return false
	}
}
