package audit

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	KeyHexLength = 64
	ivSize       = 16
	tagSize      = 16
)

var (
	ErrInvalidKey    = errors.New("audit key must be 64 hex characters")
	ErrMalformed     = errors.New("audit details blob malformed")
	ErrDecryptFailed = errors.New("audit details decryption failed")
)

type envelope struct {
	IV   string `json:"iv"`
	Data string `json:"data"`
	Tag  string `json:"tag"`
}

// Cipher seals audit details with AES-256-GCM under a 16-byte random IV.
// Blobs are JSON {"iv","data","tag"} with hex values.
type Cipher struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewCipher parses a 64-hex-character key.
func NewCipher(keyHex string) (*Cipher, error) {
	if len(keyHex) != KeyHexLength {
		return nil, ErrInvalidKey
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead, rand: rand.Reader}, nil
}

// Encrypt serialises details as JSON and seals it.
func (c *Cipher) Encrypt(details any) (string, error) {
	plain, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("marshal audit details: %w", err)
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nil, iv, plain, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out, err := json.Marshal(envelope{
		IV:   hex.EncodeToString(iv),
		Data: hex.EncodeToString(ct),
		Tag:  hex.EncodeToString(tag),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Decrypt opens a blob produced by Encrypt into a details object.
func (c *Cipher) Decrypt(blob string) (map[string]any, error) {
	var env envelope
	if err := json.Unmarshal([]byte(blob), &env); err != nil {
		return nil, ErrMalformed
	}
	iv, err1 := hex.DecodeString(env.IV)
	ct, err2 := hex.DecodeString(env.Data)
	tag, err3 := hex.DecodeString(env.Tag)
	if err1 != nil || err2 != nil || err3 != nil || len(iv) != ivSize || len(tag) != tagSize {
		return nil, ErrMalformed
	}

	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plain, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	var details map[string]any
	if err := json.Unmarshal(plain, &details); err != nil {
		return nil, ErrMalformed
	}
	if details == nil {
		details = map[string]any{}
	}
	return details, nil
}

// Open never fails: it tries AEAD, then plain JSON, then yields an empty
// object. The AEAD error is returned for operational logging. An envelope
// that fails to open is never returned as details.
func (c *Cipher) Open(blob string) (map[string]any, error) {
	details, err := c.Decrypt(blob)
	if err == nil {
		return details, nil
	}

	var plain map[string]any
	if json.Unmarshal([]byte(blob), &plain) == nil && plain != nil && !isEnvelope(plain) {
		return plain, err
	}
	return map[string]any{}, err
}

func isEnvelope(m map[string]any) bool {
	_, iv := m["iv"]
	_, data := m["data"]
	_, tag := m["tag"]
	return iv && data && tag
}
