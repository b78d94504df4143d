package access

import (
	"context"
	"time"
)

// Check is one step of a composed access decision.
type Check func(ctx context.Context) (bool, error)

// Allow lifts a precomputed decision into a Check.
func Allow(decision bool) Check {
	return func(context.Context) (bool, error) {
		return decision, nil
	}
}

// MAC wraps [CheckMAC].
func MAC(userLevel, resourceLevel SecurityLevel) Check {
	return Allow(CheckMAC(userLevel, resourceLevel))
}

// TimeWindow wraps [CheckRuBAC].
func TimeWindow(rule Rule, now func() time.Time) Check {
	return func(context.Context) (bool, error) {
		return CheckRuBAC(rule, now()), nil
	}
}

// OwnerOrShared is the two-step ownership contract: the owner is allowed
// outright, anyone else needs an explicit DAC grant made by that owner.
func OwnerOrShared(dac *DAC, ownerID, userID, resourceType, resourceID string, perm Permission) Check {
	return func(ctx context.Context) (bool, error) {
		if ownerID != "" && ownerID == userID {
			return true, nil
		}
		return dac.Check(ctx, ownerID, userID, resourceID, resourceType, perm)
	}
}

// All allows iff every check allows. Evaluation stops at the first deny or error.
func All(checks ...Check) Check {
	return func(ctx context.Context) (bool, error) {
		if len(checks) == 0 {
			return false, nil
		}
		for _, c := range checks {
			if c == nil {
				return false, nil
			}
			ok, err := c(ctx)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// Evaluate runs check and collapses a nil check to a deny.
func Evaluate(ctx context.Context, check Check) (bool, error) {
	if check == nil {
		return false, nil
	}
	return check(ctx)
}
