package sias

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/sias/access"
)

func TestSignUpCreatesStudentAndSession(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.engine.SignUp(ctx, SignUpInput{
		Email:        "Grace@Example.edu",
		Password:     testPassword,
		Name:         "Grace Hopper",
		CaptchaToken: "ok",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if res.Principal.Role != access.RoleStudent || res.Principal.SecurityLevel != access.LevelPublic {
		t.Fatalf("unexpected principal %+v", res.Principal)
	}
	if res.Principal.EmailVerified {
		t.Fatal("new identities start unverified")
	}
	if _, err := env.engine.ValidateSession(ctx, res.SessionToken); err != nil {
		t.Fatalf("signup session rejected: %v", err)
	}

	token := env.mailer.verification["grace@example.edu"]
	if token == "" {
		t.Fatal("expected verification email")
	}
	u := env.store.user(res.Principal.ID)
	if u.VerificationTokenHash == token {
		t.Fatal("verification token must be stored hashed")
	}
	if !u.VerificationExpiresAt.Equal(env.clock.Now().Add(24 * time.Hour)) {
		t.Fatalf("unexpected verification expiry %v", u.VerificationExpiresAt)
	}

	if err := env.engine.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	if !env.store.user(res.Principal.ID).EmailVerified {
		t.Fatal("expected email verified")
	}
	if err := env.engine.VerifyEmail(ctx, token); !errors.Is(err, ErrVerificationTokenInvalid) {
		t.Fatalf("expected cleared token rejected, got %v", err)
	}
}

func TestSignUpRejections(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.addUser(t, Identity{ID: "u1", Email: "ada@example.edu"}, testPassword)

	cases := []struct {
		name string
		in   SignUpInput
		want error
	}{
		{"missing name", SignUpInput{Email: "x@example.edu", Password: testPassword, CaptchaToken: "ok"}, ErrValidation},
		{"missing captcha", SignUpInput{Email: "x@example.edu", Password: testPassword, Name: "X"}, ErrValidation},
		{"weak password", SignUpInput{Email: "x@example.edu", Password: "short", Name: "X", CaptchaToken: "ok"}, ErrPasswordPolicy},
		{"duplicate", SignUpInput{Email: "ada@example.edu", Password: testPassword, Name: "Ada", CaptchaToken: "ok"}, ErrEmailTaken},
	}
	for _, tc := range cases {
		if _, err := env.engine.SignUp(ctx, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	actions := env.store.actions()
	if len(actions) != 1 || actions[0] != ActionSignupFailed {
		t.Fatalf("expected one signup_failed audit, got %v", actions)
	}
}

func TestSignUpPolicyErrorSurfacesFirstViolation(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.engine.SignUp(context.Background(), SignUpInput{
		Email: "x@example.edu", Password: "short", Name: "X", CaptchaToken: "ok",
	})
	if err == nil || err.Error() != "Password must be at least 12 characters long" {
		t.Fatalf("unexpected error %v", err)
	}
	if Classify(err) != KindValidation {
		t.Fatalf("expected validation kind, got %v", Classify(err))
	}
}

func TestSignUpCaptchaFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.engine.captcha = StaticCaptcha(false)
	_, err := env.engine.SignUp(context.Background(), SignUpInput{
		Email: "x@example.edu", Password: testPassword, Name: "X", CaptchaToken: "bad",
	})
	if !errors.Is(err, ErrCaptchaFailed) {
		t.Fatalf("expected captcha failure, got %v", err)
	}
}

func TestSignUpThrottledPerIP(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Signup = SignupConfig{MaxAttempts: 2, Window: time.Hour, EnableIPThrottle: true}
	})
	ctx := WithClientIP(context.Background(), "198.51.100.9")

	for _, email := range []string{"a@example.edu", "b@example.edu"} {
		if _, err := env.engine.SignUp(ctx, SignUpInput{
			Email: email, Password: testPassword, Name: "X", CaptchaToken: "ok",
		}); err != nil {
			t.Fatalf("SignUp %s failed: %v", email, err)
		}
	}

	_, err := env.engine.SignUp(ctx, SignUpInput{
		Email: "c@example.edu", Password: testPassword, Name: "X", CaptchaToken: "ok",
	})
	if !errors.Is(err, ErrSignupRateLimited) {
		t.Fatalf("expected signup throttled, got %v", err)
	}
	if Classify(err) != KindRateLimited {
		t.Fatalf("expected rate-limited kind, got %v", Classify(err))
	}

	env.mr.FastForward(time.Hour + time.Second)
	if _, err := env.engine.SignUp(ctx, SignUpInput{
		Email: "c@example.edu", Password: testPassword, Name: "X", CaptchaToken: "ok",
	}); err != nil {
		t.Fatalf("expected window reset, got %v", err)
	}
}

func TestVerifyEmailExpired(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, err := env.engine.SignUp(ctx, SignUpInput{
		Email: "x@example.edu", Password: testPassword, Name: "X", CaptchaToken: "ok",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	env.clock.Advance(25 * time.Hour)
	if err := env.engine.VerifyEmail(ctx, env.mailer.verification["x@example.edu"]); !errors.Is(err, ErrVerificationTokenInvalid) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
	if env.store.user(res.Principal.ID).EmailVerified {
		t.Fatal("expired token must not verify")
	}
}

func TestChangeRole(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.addUser(t, Identity{ID: "admin", Email: "root@example.edu", Role: access.RoleAdmin}, testPassword)
	env.addUser(t, Identity{ID: "u1", Email: "ada@example.edu"}, testPassword)

	admin := &Principal{ID: "admin", Email: "root@example.edu", Role: access.RoleAdmin}
	registrar := &Principal{ID: "reg", Role: access.RoleRegistrar}

	if err := env.engine.ChangeRole(ctx, registrar, "u1", access.RoleInstructor); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected registrar denied, got %v", err)
	}
	if err := env.engine.ChangeRole(ctx, admin, "u1", access.Role("dean")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected invalid role, got %v", err)
	}
	if err := env.engine.ChangeRole(ctx, admin, "ghost", access.RoleInstructor); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := env.engine.ChangeRole(ctx, admin, "u1", access.RoleInstructor); err != nil {
		t.Fatalf("ChangeRole failed: %v", err)
	}
	if env.store.user("u1").Role != access.RoleInstructor {
		t.Fatal("role not updated")
	}

	rec := env.store.audit[len(env.store.audit)-1]
	if rec.Action != ActionRoleChange || rec.Resource != "users" || rec.UserID != "admin" {
		t.Fatalf("unexpected audit record %+v", rec)
	}
	details, err := env.engine.auditCipher.Decrypt(rec.Details)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if details["oldRole"] != "student" || details["newRole"] != "instructor" || details["changedBy"] != "root@example.edu" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestMFADisable(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.addUser(t, Identity{ID: "u1", Email: "ada@example.edu", MFAEnabled: true, MFASecret: rfcSecret, BackupCodes: []string{"h"}}, testPassword)

	if _, err := env.engine.BeginMFASetup(ctx, "u1"); !errors.Is(err, ErrMFAAlreadyEnabled) {
		t.Fatalf("expected already enabled, got %v", err)
	}
	if err := env.engine.DisableMFA(ctx, "u1"); err != nil {
		t.Fatalf("DisableMFA failed: %v", err)
	}
	u := env.store.user("u1")
	if u.MFAEnabled || u.MFASecret != "" || len(u.BackupCodes) != 0 {
		t.Fatalf("expected MFA cleared, got %+v", u)
	}

	res, err := env.engine.SignIn(ctx, "ada@example.edu", testPassword)
	if err != nil || res.MFARequired {
		t.Fatalf("expected direct session after disable, got %+v %v", res, err)
	}
}

func TestConfirmMFASetupWrongCodeKeepsPendingSecret(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.addUser(t, Identity{ID: "u1", Email: "ada@example.edu"}, testPassword)

	if _, err := env.engine.ConfirmMFASetup(ctx, "u1", "123456"); !errors.Is(err, ErrMFANotStarted) {
		t.Fatalf("expected not started, got %v", err)
	}
	setup, err := env.engine.BeginMFASetup(ctx, "u1")
	if err != nil {
		t.Fatalf("BeginMFASetup failed: %v", err)
	}
	if _, err := env.engine.ConfirmMFASetup(ctx, "u1", "000000"); !errors.Is(err, ErrInvalidMFACode) {
		t.Fatalf("expected invalid code, got %v", err)
	}
	u := env.store.user("u1")
	if u.MFAEnabled || u.MFASecret != setup.Secret {
		t.Fatalf("pending secret must survive a failed confirm, got %+v", u)
	}
}
