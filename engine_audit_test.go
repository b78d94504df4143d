package sias

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/sias/access"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuditEntriesAreEncryptedAtRest(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := WithClientIP(context.Background(), "203.0.113.9")
	env.addUser(t, Identity{ID: "u1", Email: "ada@example.edu"}, testPassword)

	if _, err := env.engine.SignIn(ctx, "ada@example.edu", testPassword); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	rec := env.store.audit[0]
	if rec.ID == "" || rec.IP != "203.0.113.9" || rec.UserID != "u1" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !strings.Contains(rec.Details, `"tag"`) || strings.Contains(rec.Details, "ada@example.edu") {
		t.Fatalf("details stored in plain text: %q", rec.Details)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricAuditWritten]; got != 1 {
		t.Fatalf("expected 1 audit write, got %d", got)
	}
}

func TestQueryAuditLogs(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.addUser(t, Identity{ID: "u1", Email: "ada@example.edu"}, testPassword)

	for i := 0; i < 3; i++ {
		if _, err := env.engine.SignIn(ctx, "ada@example.edu", testPassword); err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
	}
	if _, err := env.engine.SignIn(ctx, "ada@example.edu", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	admin := &Principal{ID: "admin", Role: access.RoleAdmin}
	page, err := env.engine.QueryAuditLogs(ctx, admin, AuditQuery{Action: ActionLoginSuccess, Limit: 2})
	if err != nil {
		t.Fatalf("QueryAuditLogs failed: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 || page.Page != 1 || len(page.Entries) != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Entries[0].Details["email"] != "ada@example.edu" {
		t.Fatalf("details not decrypted: %v", page.Entries[0].Details)
	}

	page, err = env.engine.QueryAuditLogs(ctx, admin, AuditQuery{Action: ActionLoginSuccess, Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("QueryAuditLogs page 2 failed: %v", err)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("expected one entry on page 2, got %d", len(page.Entries))
	}

	page, err = env.engine.QueryAuditLogs(ctx, admin, AuditQuery{Limit: 1000})
	if err != nil {
		t.Fatalf("QueryAuditLogs failed: %v", err)
	}
	if page.Limit != 200 || page.Total != 4 {
		t.Fatalf("expected capped limit and 4 entries, got %+v", page)
	}
}

func TestQueryAuditLogsUnreadableDetails(t *testing.T) {
	env := newTestEnv(t, nil)
	core, logs := observer.New(zapcore.InfoLevel)
	env.engine.logger = zap.New(core)
	ctx := context.Background()
	env.store.audit = append(env.store.audit,
		AuditRecord{ID: "a1", Action: "LEGACY", Details: `{"note":"plain"}`},
		AuditRecord{ID: "a2", Action: "LEGACY", Details: "bm90LWEtY2lwaGVydGV4dA=="},
	)

	page, err := env.engine.QueryAuditLogs(ctx, &Principal{ID: "admin", Role: access.RoleAdmin}, AuditQuery{})
	if err != nil {
		t.Fatalf("QueryAuditLogs failed: %v", err)
	}
	if len(page.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(page.Entries))
	}
	// Newest first.
	if len(page.Entries[0].Details) != 0 {
		t.Fatalf("expected empty details for undecryptable entry, got %v", page.Entries[0].Details)
	}
	if page.Entries[1].Details["note"] != "plain" {
		t.Fatalf("expected plain JSON fallback, got %v", page.Entries[1].Details)
	}

	warned := logs.FilterMessage("audit details not decrypted").FilterLevelExact(zapcore.WarnLevel)
	if warned.Len() != 2 {
		t.Fatalf("expected 2 decrypt warnings at an info-level logger, got %d", warned.Len())
	}
}

func TestQueryAuditLogsRequiresAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for _, role := range []access.Role{access.RoleStudent, access.RoleInstructor, access.RoleRegistrar} {
		_, err := env.engine.QueryAuditLogs(ctx, &Principal{ID: "x", Role: role}, AuditQuery{})
		if !errors.Is(err, ErrAccessDenied) {
			t.Fatalf("%s: expected access denied, got %v", role, err)
		}
	}
	if _, err := env.engine.QueryAuditLogs(ctx, nil, AuditQuery{}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}
