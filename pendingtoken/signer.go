package pendingtoken

import (
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is how long a pending token stays valid.
const DefaultTTL = 5 * time.Minute

const (
	minKeyBytes   = 32
	maxFutureSkew = time.Minute
)

var (
	ErrMalformed = errors.New("pending token malformed")
	ErrSignature = errors.New("pending token signature invalid")
	ErrExpired   = errors.New("pending token expired")
)

// Config configures a Signer. Now defaults to time.Now.
type Config struct {
	Key []byte
	TTL time.Duration
	Now func() time.Time
}

// Signer signs and verifies pending tokens.
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSigner validates cfg and returns a Signer.
func NewSigner(cfg Config) (*Signer, error) {
	if len(cfg.Key) < minKeyBytes {
		return nil, errors.New("pending token key must be at least 32 bytes")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL < 0 {
		return nil, errors.New("pending token ttl must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	key := make([]byte, len(cfg.Key))
	copy(key, cfg.Key)
	return &Signer{key: key, ttl: cfg.TTL, now: cfg.Now}, nil
}

// TTL returns the configured lifetime.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign binds payload to the current time. payload must not contain '.'.
func (s *Signer) Sign(payload string) (string, time.Time, error) {
	if payload == "" || strings.Contains(payload, ".") {
		return "", time.Time{}, ErrMalformed
	}

	issued := s.now()
	data := payload + "." + strconv.FormatInt(issued.UnixMilli(), 10)
	sig, err := jwt.SigningMethodHS256.Sign(data, s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return data + "." + hex.EncodeToString(sig), issued.Add(s.ttl), nil
}

// Verify returns the payload of a token whose signature matches and whose
// age does not exceed the TTL.
func (s *Signer) Verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" {
		return "", ErrMalformed
	}
	payload, stamp, sigHex := parts[0], parts[1], parts[2]

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return "", ErrSignature
	}
	if err := jwt.SigningMethodHS256.Verify(payload+"."+stamp, sig, s.key); err != nil {
		return "", ErrSignature
	}

	millis, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return "", ErrMalformed
	}
	issued := time.UnixMilli(millis)
	now := s.now()
	if now.Sub(issued) > s.ttl {
		return "", ErrExpired
	}
	if issued.Sub(now) > maxFutureSkew {
		return "", ErrExpired
	}
	return payload, nil
}
