package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	OpaqueTokenBytes = 32
	BackupCodeCount  = 10
	backupCodeBytes  = 4
)

func NewOpaqueToken() (string, error) {
	var raw [OpaqueTokenBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

func HashTokenHex(token string) string {
	sum := HashToken(token)
	return hex.EncodeToString(sum[:])
}

// ValidOpaqueToken reports whether token has the shape NewOpaqueToken produces.
func ValidOpaqueToken(token string) bool {
	if len(token) != OpaqueTokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

func NewBackupCodes(n int) ([]string, error) {
	if n <= 0 {
		return nil, errors.New("invalid backup code count")
	}

	codes := make([]string, n)
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; {
		var raw [backupCodeBytes]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return nil, err
		}
		code := strings.ToUpper(hex.EncodeToString(raw[:]))
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes[i] = code
		i++
	}
	return codes, nil
}

func NormalizeBackupCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func HashBackupCode(code string) string {
	return HashTokenHex(NormalizeBackupCode(code))
}
