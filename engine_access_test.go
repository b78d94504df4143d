package sias

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/sias/access"
)

type accessFixture struct {
	env        *testEnv
	owner      *Principal
	colleague  *Principal
	student    *Principal
	enrollment string
}

// newAccessFixture seeds two instructors and a confidential course owned by
// the first one.
func newAccessFixture(t *testing.T, mutate func(*Config)) *accessFixture {
	t.Helper()
	env := newTestEnv(t, mutate)

	env.addUser(t, Identity{ID: "i1", Email: "turing@example.edu", Role: access.RoleInstructor, SecurityLevel: access.LevelConfidential, Department: "Computer Science"}, testPassword)
	env.addUser(t, Identity{ID: "i2", Email: "noether@example.edu", Role: access.RoleInstructor, SecurityLevel: access.LevelConfidential, Department: "Mathematics"}, testPassword)
	env.addUser(t, Identity{ID: "s1", Email: "ada@example.edu"}, testPassword)

	env.store.enrollments["e1"] = EnrollmentRecord{
		ID:               "e1",
		StudentID:        "s1",
		CourseID:         "c1",
		CourseLevel:      access.LevelConfidential,
		InstructorUserID: "i1",
	}
	env.store.courses["c1"] = "i1"

	principal := func(id string) *Principal {
		u := env.store.user(id)
		return principalOf(&u)
	}
	return &accessFixture{
		env:        env,
		owner:      principal("i1"),
		colleague:  principal("i2"),
		student:    principal("s1"),
		enrollment: "e1",
	}
}

func TestShareResourceLifecycle(t *testing.T) {
	f := newAccessFixture(t, nil)
	ctx := context.Background()
	e := f.env.engine

	share, err := e.ShareResource(ctx, f.owner, ShareRequest{
		ResourceType:    ResourceCourse,
		ResourceID:      "c1",
		SharedWithEmail: " Noether@Example.edu ",
		Permission:      access.PermissionWrite,
	})
	if err != nil {
		t.Fatalf("ShareResource failed: %v", err)
	}
	if share.OwnerID != "i1" || share.SharedWithID != "i2" {
		t.Fatalf("unexpected share %+v", share)
	}

	list, err := e.ListShares(ctx, f.colleague)
	if err != nil {
		t.Fatalf("ListShares failed: %v", err)
	}
	if len(list.SharedWithMe) != 1 || len(list.SharedByMe) != 0 {
		t.Fatalf("unexpected share list %+v", list)
	}

	if err := e.RevokeShare(ctx, f.colleague, share.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("grantee must not revoke, got %v", err)
	}
	if err := e.RevokeShare(ctx, f.owner, share.ID); err != nil {
		t.Fatalf("RevokeShare failed: %v", err)
	}
	if err := e.RevokeShare(ctx, f.owner, share.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second revoke not found, got %v", err)
	}

	actions := f.env.store.actions()
	if actions[0] != ActionDACShare || actions[len(actions)-1] != ActionDACRevoke {
		t.Fatalf("unexpected audit trail %v", actions)
	}
}

func TestShareResourceRejections(t *testing.T) {
	f := newAccessFixture(t, nil)
	ctx := context.Background()
	e := f.env.engine

	cases := []struct {
		name string
		req  ShareRequest
		want error
	}{
		{"missing fields", ShareRequest{ResourceType: ResourceCourse}, ErrValidation},
		{"bad permission", ShareRequest{ResourceType: ResourceCourse, ResourceID: "c1", SharedWithEmail: "noether@example.edu", Permission: "admin"}, ErrValidation},
		{"unknown grantee", ShareRequest{ResourceType: ResourceCourse, ResourceID: "c1", SharedWithEmail: "ghost@example.edu", Permission: access.PermissionRead}, ErrNotFound},
		{"self share", ShareRequest{ResourceType: ResourceCourse, ResourceID: "c1", SharedWithEmail: "turing@example.edu", Permission: access.PermissionRead}, ErrSelfShare},
		{"unknown course", ShareRequest{ResourceType: ResourceCourse, ResourceID: "c9", SharedWithEmail: "noether@example.edu", Permission: access.PermissionRead}, ErrNotFound},
		{"unknown resource type", ShareRequest{ResourceType: "spreadsheet", ResourceID: "c1", SharedWithEmail: "noether@example.edu", Permission: access.PermissionRead}, ErrNotFound},
	}
	for _, tc := range cases {
		if _, err := e.ShareResource(ctx, f.owner, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if _, err := e.ShareResource(ctx, nil, ShareRequest{}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestShareByNonOwnerDoesNotUnlockGrades(t *testing.T) {
	f := newAccessFixture(t, nil)
	ctx := context.Background()
	e := f.env.engine

	_, err := e.ShareResource(ctx, f.student, ShareRequest{
		ResourceType: ResourceCourse, ResourceID: "c1", SharedWithEmail: "noether@example.edu", Permission: access.PermissionWrite,
	})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected non-owner share denied, got %v", err)
	}
	if len(f.env.store.shares) != 0 {
		t.Fatalf("denied share must not be stored, got %d", len(f.env.store.shares))
	}

	// A grant recorded under someone other than the course instructor is ignored.
	f.env.store.shares["forged"] = Share{
		ID: "forged", ResourceType: ResourceCourse, ResourceID: "c1",
		OwnerID: "s1", SharedWithID: "i2", Permission: access.PermissionWrite,
	}
	if err := e.UpdateGrade(ctx, f.colleague, GradeUpdate{EnrollmentID: f.enrollment, Grade: "A+"}); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected colleague denied, got %v", err)
	}
	if _, ok := f.env.store.grades[f.enrollment]; ok {
		t.Fatal("grade must not change")
	}

	actions := f.env.store.actions()
	if len(actions) != 2 || actions[0] != ActionAccessDenied || actions[1] != ActionAccessDenied {
		t.Fatalf("expected two ACCESS_DENIED entries, got %v", actions)
	}
}

func TestShareTranscriptBySubject(t *testing.T) {
	f := newAccessFixture(t, nil)
	ctx := context.Background()
	e := f.env.engine

	if _, err := e.ShareResource(ctx, f.student, ShareRequest{
		ResourceType: ResourceTranscript, ResourceID: "s1", SharedWithEmail: "turing@example.edu", Permission: access.PermissionRead,
	}); err != nil {
		t.Fatalf("subject share failed: %v", err)
	}
	if _, err := e.ShareResource(ctx, f.owner, ShareRequest{
		ResourceType: ResourceTranscript, ResourceID: "s1", SharedWithEmail: "noether@example.edu", Permission: access.PermissionRead,
	}); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected someone else's transcript denied, got %v", err)
	}
}

func TestListGradesFiltersByClearance(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.store.grades["e1"] = GradeRecord{ID: "g1", EnrollmentID: "e1", Grade: "A", SecurityLevel: access.LevelPublic}
	env.store.grades["e2"] = GradeRecord{ID: "g2", EnrollmentID: "e2", Grade: "B", SecurityLevel: access.LevelConfidential}
	env.store.grades["e3"] = GradeRecord{ID: "g3", EnrollmentID: "e3", Grade: "C", SecurityLevel: access.LevelRestricted}

	cases := []struct {
		level access.SecurityLevel
		want  int
	}{
		{access.LevelPublic, 1},
		{access.LevelInternal, 1},
		{access.LevelConfidential, 2},
		{access.LevelRestricted, 3},
	}
	for _, tc := range cases {
		list, err := env.engine.ListGrades(ctx, &Principal{ID: "u", SecurityLevel: tc.level})
		if err != nil {
			t.Fatalf("ListGrades(%s) failed: %v", tc.level, err)
		}
		if list.TotalFound != 3 || list.AccessibleCount != tc.want || len(list.Grades) != tc.want {
			t.Fatalf("%s: expected %d visible of 3, got %+v", tc.level, tc.want, list)
		}
	}
}

func TestUpdateGradeOwnerAndShare(t *testing.T) {
	f := newAccessFixture(t, nil)
	ctx := context.Background()
	e := f.env.engine

	if err := e.UpdateGrade(ctx, f.owner, GradeUpdate{EnrollmentID: f.enrollment, Grade: "B+"}); err != nil {
		t.Fatalf("owner update failed: %v", err)
	}
	if got := f.env.store.grades[f.enrollment].Grade; got != "B+" {
		t.Fatalf("expected B+, got %q", got)
	}

	err := e.UpdateGrade(ctx, f.colleague, GradeUpdate{EnrollmentID: f.enrollment, Grade: "A"})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected colleague denied, got %v", err)
	}
	if !strings.HasSuffix(err.Error(), "You can only grade your own courses") {
		t.Fatalf("unexpected deny reason %q", err.Error())
	}
	if PublicMessage(err) != "Access denied" {
		t.Fatalf("unexpected public message %q", PublicMessage(err))
	}

	if _, err := e.ShareResource(ctx, f.owner, ShareRequest{
		ResourceType: ResourceCourse, ResourceID: "c1", SharedWithEmail: "noether@example.edu", Permission: access.PermissionRead,
	}); err != nil {
		t.Fatalf("read share failed: %v", err)
	}
	if err := e.UpdateGrade(ctx, f.colleague, GradeUpdate{EnrollmentID: f.enrollment, Grade: "A"}); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("read share must not allow writes, got %v", err)
	}

	if _, err := e.ShareResource(ctx, f.owner, ShareRequest{
		ResourceType: ResourceCourse, ResourceID: "c1", SharedWithEmail: "noether@example.edu", Permission: access.PermissionWrite,
	}); err != nil {
		t.Fatalf("write share failed: %v", err)
	}
	if err := e.UpdateGrade(ctx, f.colleague, GradeUpdate{EnrollmentID: f.enrollment, Grade: "A"}); err != nil {
		t.Fatalf("write share update failed: %v", err)
	}

	last := f.env.store.audit[len(f.env.store.audit)-1]
	details, err := e.auditCipher.Decrypt(last.Details)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if last.Action != ActionGradeUpdate || details["oldGrade"] != "B+" || details["newGrade"] != "A" {
		t.Fatalf("unexpected grade audit %s %v", last.Action, details)
	}
}

func TestUpdateGradeRoleAndClearance(t *testing.T) {
	f := newAccessFixture(t, nil)
	ctx := context.Background()
	e := f.env.engine

	admin := &Principal{ID: "a1", Role: access.RoleAdmin, SecurityLevel: access.LevelRestricted}
	if err := e.UpdateGrade(ctx, admin, GradeUpdate{EnrollmentID: f.enrollment, Grade: "A"}); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("grade edits require the exact instructor role, got %v", err)
	}

	lowOwner := *f.owner
	lowOwner.SecurityLevel = access.LevelPublic
	if err := e.UpdateGrade(ctx, &lowOwner, GradeUpdate{EnrollmentID: f.enrollment, Grade: "A"}); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("owner below course clearance must be denied, got %v", err)
	}

	if err := e.UpdateGrade(ctx, f.owner, GradeUpdate{EnrollmentID: "missing", Grade: "A"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := e.UpdateGrade(ctx, f.owner, GradeUpdate{EnrollmentID: f.enrollment}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	denied := 0
	for _, a := range f.env.store.actions() {
		if a == ActionAccessDenied {
			denied++
		}
	}
	if denied != 2 {
		t.Fatalf("expected 2 ACCESS_DENIED entries, got %d", denied)
	}
}

func TestUpdateGradeTimeRule(t *testing.T) {
	f := newAccessFixture(t, func(cfg *Config) {
		cfg.Access.GradeEditRule = access.RuleBusinessHours
	})
	ctx := context.Background()
	e := f.env.engine

	if err := e.UpdateGrade(ctx, f.owner, GradeUpdate{EnrollmentID: f.enrollment, Grade: "A"}); err != nil {
		t.Fatalf("update inside business hours failed: %v", err)
	}

	// Wednesday 19:00.
	f.env.clock.Advance(5 * time.Hour)
	if err := e.UpdateGrade(ctx, f.owner, GradeUpdate{EnrollmentID: f.enrollment, Grade: "B"}); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected update outside business hours denied, got %v", err)
	}
}

func TestDepartmentReport(t *testing.T) {
	f := newAccessFixture(t, nil)
	ctx := context.Background()
	e := f.env.engine

	report, err := e.DepartmentReport(ctx, f.owner, "Computer Science")
	if err != nil {
		t.Fatalf("DepartmentReport failed: %v", err)
	}
	if report.Budget != 50000 {
		t.Fatalf("unexpected budget %d", report.Budget)
	}

	if _, err := e.DepartmentReport(ctx, f.owner, "Mathematics"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected cross-department denied, got %v", err)
	}
	if _, err := e.DepartmentReport(ctx, f.student, "Computer Science"); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected student without department denied, got %v", err)
	}
	if _, err := e.DepartmentReport(ctx, f.owner, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
