package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashAndVerify(t *testing.T) {
	hasher, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}

	hash, err := hasher.Hash("Correct-Horse-9!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !hasher.Recognises(hash) {
		t.Fatalf("expected bcrypt prefix, got %s", hash)
	}
	if ok, err := hasher.Verify("Correct-Horse-9!", hash); err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}
	if ok, err := hasher.Verify("wrong", hash); err != nil || ok {
		t.Fatalf("mismatch must be (false, nil), got %v %v", ok, err)
	}
}

func TestBcryptDefaultsAndBounds(t *testing.T) {
	h, err := NewBcrypt(0)
	if err != nil {
		t.Fatalf("NewBcrypt(0) error: %v", err)
	}
	if h.cost != DefaultBcryptCost {
		t.Fatalf("expected default cost, got %d", h.cost)
	}
	if _, err := NewBcrypt(bcrypt.MaxCost + 1); err == nil {
		t.Fatal("expected out of range cost to fail")
	}
}

func TestBcryptNeedsUpgrade(t *testing.T) {
	low, _ := NewBcrypt(bcrypt.MinCost)
	high, _ := NewBcrypt(bcrypt.MinCost + 1)
	hash, err := low.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if up, err := high.NeedsUpgrade(hash); err != nil || !up {
		t.Fatalf("expected upgrade, got %v %v", up, err)
	}
}

func TestChainVerifiesEitherFormat(t *testing.T) {
	bc, _ := NewBcrypt(bcrypt.MinCost)
	ar, err := NewArgon2(testArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	chain := Chain{bc, ar}

	legacy, err := ar.Hash("Legacy-Pass-123!")
	if err != nil {
		t.Fatalf("argon2 Hash error: %v", err)
	}
	if ok, err := chain.Verify("Legacy-Pass-123!", legacy); err != nil || !ok {
		t.Fatalf("chain failed argon2 verify: %v %v", ok, err)
	}

	current, err := chain.Hash("Current-Pass-123!")
	if err != nil {
		t.Fatalf("chain Hash error: %v", err)
	}
	if !strings.HasPrefix(current, "$2") {
		t.Fatalf("chain should hash with primary, got %s", current)
	}
	if ok, err := chain.Verify("Current-Pass-123!", current); err != nil || !ok {
		t.Fatalf("chain failed bcrypt verify: %v %v", ok, err)
	}

	if _, err := chain.Verify("x", "plaintext"); err != ErrUnknownHash {
		t.Fatalf("expected ErrUnknownHash, got %v", err)
	}
}
