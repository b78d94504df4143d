package sias

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/sias/access"
	"go.uber.org/zap"
)

// Resource types named by shares and audit entries.
const (
	ResourceCourse     = "course"
	ResourceTranscript = "transcript"
	ResourceGrades     = "grades"
)

var departmentBudgets = map[string]int{
	"Computer Science": 50000,
	"Mathematics":      30000,
	"Physics":          40000,
}

// ShareResource grants req.Permission on a resource to the identity with
// req.SharedWithEmail. Only the resource owner may share it; any other
// caller is denied and audited.
func (e *Engine) ShareResource(ctx context.Context, owner *Principal, req ShareRequest) (*Share, error) {
	if owner == nil {
		return nil, ErrUnauthenticated
	}
	target := normalizeEmail(req.SharedWithEmail)
	if req.ResourceType == "" || req.ResourceID == "" || target == "" || req.Permission == "" {
		return nil, invalid("share", "Missing required fields")
	}
	if !req.Permission.Valid() {
		return nil, invalid("permission", "Invalid permission")
	}

	grantee, err := e.store.FindIdentityByEmail(ctx, target)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return nil, e.fail("share lookup", err)
	}
	if grantee.ID == owner.ID {
		return nil, ErrSelfShare
	}

	ownerID, err := e.store.ResourceOwner(ctx, req.ResourceType, req.ResourceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: resource not found", ErrNotFound)
		}
		return nil, e.fail("share owner lookup", err)
	}
	if ownerID == "" || ownerID != owner.ID {
		return nil, e.deny(ctx, owner, req.ResourceType, "You can only share resources you own")
	}

	share, err := e.store.InsertShare(ctx, Share{
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		OwnerID:      owner.ID,
		SharedWithID: grantee.ID,
		Permission:   req.Permission,
		CreatedAt:    e.now(),
	})
	if err != nil {
		return nil, e.fail("share insert", err)
	}

	e.emitAudit(ctx, ActionDACShare, owner.ID, req.ResourceType, map[string]any{
		"resourceId": req.ResourceID,
		"sharedWith": grantee.Email,
		"permission": string(req.Permission),
	})
	return share, nil
}

// RevokeShare deletes shareID when owner owns it. Shares owned by someone
// else are indistinguishable from missing ones.
func (e *Engine) RevokeShare(ctx context.Context, owner *Principal, shareID string) error {
	if owner == nil {
		return ErrUnauthenticated
	}
	if shareID == "" {
		return invalid("shareId", "Share ID required")
	}

	deleted, err := e.store.DeleteShare(ctx, owner.ID, shareID)
	if err != nil {
		return e.fail("share delete", err)
	}
	if !deleted {
		return fmt.Errorf("%w: share not found or unauthorized", ErrNotFound)
	}

	e.emitAudit(ctx, ActionDACRevoke, owner.ID, "dac", map[string]any{"shareId": shareID})
	return nil
}

// ListShares returns the grants made by and to the caller.
func (e *Engine) ListShares(ctx context.Context, caller *Principal) (*ShareList, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	byMe, err := e.store.ListSharesByOwner(ctx, caller.ID)
	if err != nil {
		return nil, e.fail("list shares by owner", err)
	}
	withMe, err := e.store.ListSharesWithUser(ctx, caller.ID)
	if err != nil {
		return nil, e.fail("list shares with user", err)
	}
	return &ShareList{SharedByMe: byMe, SharedWithMe: withMe}, nil
}

// ListGrades returns the grades whose label the caller's clearance dominates.
func (e *Engine) ListGrades(ctx context.Context, caller *Principal) (*GradeList, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	all, err := e.store.ListGradeRecords(ctx)
	if err != nil {
		return nil, e.fail("list grades", err)
	}

	visible := make([]GradeRecord, 0, len(all))
	for _, g := range all {
		if access.CheckMAC(caller.SecurityLevel, g.SecurityLevel) {
			visible = append(visible, g)
		}
	}

	e.emitAudit(ctx, ActionAccessGrades, caller.ID, ResourceGrades, map[string]any{
		"userSecurityLevel": string(caller.SecurityLevel),
		"totalFound":        len(all),
		"accessibleCount":   len(visible),
	})
	return &GradeList{
		Grades:            visible,
		UserSecurityLevel: caller.SecurityLevel,
		TotalFound:        len(all),
		AccessibleCount:   len(visible),
	}, nil
}

// UpdateGrade sets the grade of an enrollment. The caller must hold exactly
// the instructor role, clear the course label, and own the course or hold a
// write share on it. When Config.Access.GradeEditRule is set the update must
// also fall inside that time window.
func (e *Engine) UpdateGrade(ctx context.Context, caller *Principal, upd GradeUpdate) error {
	if caller == nil {
		return ErrUnauthenticated
	}
	if !access.RoleIs(caller.Role, access.RoleInstructor) {
		return e.deny(ctx, caller, ResourceGrades, "instructor role required")
	}
	grade := strings.TrimSpace(upd.Grade)
	if upd.EnrollmentID == "" || grade == "" {
		return invalid("grade", "Enrollment ID and grade required")
	}

	enr, err := e.store.FindEnrollment(ctx, upd.EnrollmentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: enrollment not found", ErrNotFound)
		}
		return e.fail("grade enrollment lookup", err)
	}

	checks := []access.Check{
		access.MAC(caller.SecurityLevel, enr.CourseLevel),
		access.OwnerOrShared(e.dac, enr.InstructorUserID, caller.ID, ResourceCourse, enr.CourseID, access.PermissionWrite),
	}
	if rule := e.config.Access.GradeEditRule; rule != "" {
		checks = append(checks, access.TimeWindow(rule, e.clock))
	}
	ok, err := access.Evaluate(ctx, access.All(checks...))
	if err != nil {
		return e.fail("grade access check", err)
	}
	if !ok {
		return e.deny(ctx, caller, ResourceGrades, "You can only grade your own courses")
	}

	if err := e.store.UpsertGrade(ctx, enr.ID, grade, caller.ID, e.now()); err != nil {
		return e.fail("grade upsert", err)
	}

	var oldGrade any
	if enr.CurrentGradeExists {
		oldGrade = enr.CurrentGrade
	}
	e.emitAudit(ctx, ActionGradeUpdate, caller.ID, ResourceGrades, map[string]any{
		"enrollmentId": enr.ID,
		"newGrade":     grade,
		"oldGrade":     oldGrade,
	})
	return nil
}

// DepartmentReport returns the budget of department. The caller must belong
// to that department.
func (e *Engine) DepartmentReport(ctx context.Context, caller *Principal, department string) (*DepartmentReport, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	if department == "" {
		return nil, invalid("department", "Department required")
	}

	resource := access.Attributes{access.AttrDepartment: department}
	if !access.CheckABAC(caller.Attributes(), resource, access.PolicySameDepartment) {
		return nil, e.deny(ctx, caller, "department_budget", "You can only view your own department's budget")
	}

	e.emitAudit(ctx, ActionDepartmentBudget, caller.ID, "department_budget", map[string]any{"department": department})
	return &DepartmentReport{
		Department: department,
		Budget:     departmentBudgets[department],
	}, nil
}

// deny records a denied access decision and returns the wrapped sentinel.
func (e *Engine) deny(ctx context.Context, caller *Principal, resource, reason string) error {
	e.metricInc(MetricAccessDenied)
	e.logger.Debug("access denied",
		zap.String("user_id", caller.ID),
		zap.String("resource", resource),
		zap.String("reason", reason),
	)
	e.emitAudit(ctx, ActionAccessDenied, caller.ID, resource, map[string]any{"reason": reason})
	return fmt.Errorf("%w: %s", ErrAccessDenied, reason)
}
