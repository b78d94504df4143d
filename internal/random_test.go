package internal

import (
	"regexp"
	"testing"
)

func TestNewOpaqueToken(t *testing.T) {
	a, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken error: %v", err)
	}
	b, _ := NewOpaqueToken()
	if a == b {
		t.Fatal("tokens must differ")
	}
	if !ValidOpaqueToken(a) {
		t.Fatalf("token %q failed shape check", a)
	}
	if ValidOpaqueToken("zz") || ValidOpaqueToken(a[:62]+"zz") {
		t.Fatal("malformed tokens must fail shape check")
	}
}

func TestNewBackupCodes(t *testing.T) {
	codes, err := NewBackupCodes(BackupCodeCount)
	if err != nil {
		t.Fatalf("NewBackupCodes error: %v", err)
	}
	if len(codes) != BackupCodeCount {
		t.Fatalf("expected %d codes, got %d", BackupCodeCount, len(codes))
	}
	shape := regexp.MustCompile(`^[0-9A-F]{8}$`)
	seen := map[string]bool{}
	for _, c := range codes {
		if !shape.MatchString(c) {
			t.Fatalf("unexpected code shape %q", c)
		}
		if seen[c] {
			t.Fatalf("duplicate code %q", c)
		}
		seen[c] = true
	}
	if _, err := NewBackupCodes(0); err == nil {
		t.Fatal("expected error for zero count")
	}
}

func TestHashBackupCodeNormalizes(t *testing.T) {
	if HashBackupCode(" ab12cd34 ") != HashBackupCode("AB12CD34") {
		t.Fatal("hash must ignore case and surrounding space")
	}
}
