package flows

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"
)

var (
	errTestResetInvalid = errors.New("reset invalid")
	errTestReused       = errors.New("reused")
	errTestPolicy       = errors.New("policy")
	errTestMailer       = errors.New("mailer")
	errTestStoreMissing = errors.New("store missing")
	errTestValidation   = errors.New("validation")
)

type resetFixture struct {
	users   map[string]*PasswordResetIdentity
	tokens  map[[32]byte]string
	mailed  map[string]string
	revoked []string
	mailErr error
	history []string
	counter int
}

func newResetFixture() *resetFixture {
	f := &resetFixture{
		users:  map[string]*PasswordResetIdentity{},
		tokens: map[[32]byte]string{},
		mailed: map[string]string{},
	}
	f.users["u1"] = &PasswordResetIdentity{ID: "u1", Email: "a@example.edu", Name: "Ada", PasswordHash: "hash:Old-Password-1"}
	return f
}

func (f *resetFixture) deps() PasswordResetDeps {
	return PasswordResetDeps{
		TTL: time.Hour,
		FindByEmail: func(_ context.Context, email string) (*PasswordResetIdentity, error) {
			for _, u := range f.users {
				if u.Email == email {
					return u, nil
				}
			}
			return nil, errTestNotFound
		},
		FindByID: func(_ context.Context, id string) (*PasswordResetIdentity, error) {
			u, ok := f.users[id]
			if !ok {
				return nil, errTestNotFound
			}
			return u, nil
		},
		NewToken: func() (string, error) {
			f.counter++
			return "token-" + string(rune('a'+f.counter)), nil
		},
		HashToken: func(token string) [32]byte { return sha256.Sum256([]byte(token)) },
		IssueToken: func(_ context.Context, hash [32]byte, userID string, _, _ time.Time) error {
			for k, v := range f.tokens {
				if v == userID {
					delete(f.tokens, k)
				}
			}
			f.tokens[hash] = userID
			return nil
		},
		PeekToken: func(_ context.Context, hash [32]byte) (string, error) {
			id, ok := f.tokens[hash]
			if !ok {
				return "", errTestStoreMissing
			}
			return id, nil
		},
		ConsumeToken: func(_ context.Context, hash [32]byte) (string, error) {
			id, ok := f.tokens[hash]
			if !ok {
				return "", errTestStoreMissing
			}
			delete(f.tokens, hash)
			return id, nil
		},
		SendResetEmail: func(_ context.Context, to, token string) error {
			if f.mailErr != nil {
				return f.mailErr
			}
			f.mailed[to] = token
			return nil
		},
		CheckPolicy: func(password string, _ ...string) error {
			if len(password) < 12 {
				return errTestPolicy
			}
			return nil
		},
		IsReused: func(_ context.Context, _ string, candidate, current string) (bool, error) {
			return "hash:"+candidate == current, nil
		},
		HashPassword: func(p string) (string, error) { return "hash:" + p, nil },
		UpdatePassword: func(_ context.Context, id, hash string, _ time.Time) error {
			f.users[id].PasswordHash = hash
			return nil
		},
		AppendHistory: func(_ context.Context, _ string, hash string, _ time.Time) error {
			f.history = append(f.history, hash)
			return nil
		},
		RevokeSessions: func(_ context.Context, id string) error {
			f.revoked = append(f.revoked, id)
			return nil
		},
		Errors: PasswordResetErrors{
			EngineNotReady: errTestNotReady,
			Validation: func(string, string) error {
				return errTestValidation
			},
			ResetInvalid:      errTestResetInvalid,
			RateLimited:       errTestLimited,
			PasswordReused:    errTestReused,
			NotFound:          errTestNotFound,
			StoreNotFound:     errTestStoreMissing,
			Mailer:            errTestMailer,
			SessionsNotVoided: errors.New("sessions"),
		},
	}
}

func TestRunRequestPasswordResetUnknownEmailSucceeds(t *testing.T) {
	f := newResetFixture()
	if err := RunRequestPasswordReset(context.Background(), "ghost@example.edu", f.deps()); err != nil {
		t.Fatalf("expected silent success, got %v", err)
	}
	if len(f.tokens) != 0 || len(f.mailed) != 0 {
		t.Fatalf("no token may be issued for unknown email")
	}
}

func TestRunRequestPasswordResetMailerErrorPropagates(t *testing.T) {
	f := newResetFixture()
	f.mailErr = errors.New("smtp down")
	if err := RunRequestPasswordReset(context.Background(), "a@example.edu", f.deps()); !errors.Is(err, errTestMailer) {
		t.Fatalf("expected mailer error, got %v", err)
	}
}

func TestRunConfirmPasswordResetSupersededAndSingleUse(t *testing.T) {
	f := newResetFixture()
	deps := f.deps()

	if err := RunRequestPasswordReset(context.Background(), "a@example.edu", deps); err != nil {
		t.Fatalf("first request: %v", err)
	}
	first := f.mailed["a@example.edu"]
	if err := RunRequestPasswordReset(context.Background(), "a@example.edu", deps); err != nil {
		t.Fatalf("second request: %v", err)
	}
	second := f.mailed["a@example.edu"]

	if err := RunConfirmPasswordReset(context.Background(), first, "New-Password-99", deps); !errors.Is(err, errTestResetInvalid) {
		t.Fatalf("expected superseded token rejected, got %v", err)
	}

	if err := RunConfirmPasswordReset(context.Background(), second, "short", deps); !errors.Is(err, errTestPolicy) {
		t.Fatalf("expected policy error, got %v", err)
	}
	if len(f.tokens) != 1 {
		t.Fatalf("policy failure must keep the token")
	}

	if err := RunConfirmPasswordReset(context.Background(), second, "Old-Password-1", deps); !errors.Is(err, errTestReused) {
		t.Fatalf("expected reuse rejection, got %v", err)
	}

	if err := RunConfirmPasswordReset(context.Background(), second, "New-Password-99", deps); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if f.users["u1"].PasswordHash != "hash:New-Password-99" {
		t.Fatalf("password not updated")
	}
	if len(f.revoked) != 1 || f.revoked[0] != "u1" {
		t.Fatalf("expected sessions revoked, got %v", f.revoked)
	}
	if len(f.history) != 1 {
		t.Fatalf("expected history append")
	}

	if err := RunConfirmPasswordReset(context.Background(), second, "Another-Pass-42", deps); !errors.Is(err, errTestResetInvalid) {
		t.Fatalf("expected consumed token rejected, got %v", err)
	}
}

func TestRunConfirmPasswordResetRequiresFields(t *testing.T) {
	f := newResetFixture()
	if err := RunConfirmPasswordReset(context.Background(), "", "x", f.deps()); !errors.Is(err, errTestValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
