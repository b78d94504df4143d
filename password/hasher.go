package password

import "errors"

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// ErrUnknownHash is returned when no hasher recognises an encoded hash.
var ErrUnknownHash = errors.New("unrecognised password hash format")

type recogniser interface {
	Recognises(encodedHash string) bool
}

// Chain hashes with the first hasher and verifies with the first member that
// recognises the encoded hash.
type Chain []Hasher

// Hash uses the primary hasher.
func (c Chain) Hash(password string) (string, error) {
	if len(c) == 0 {
		return "", errors.New("empty hasher chain")
	}
	return c[0].Hash(password)
}

// Verify dispatches on the encoded hash format.
func (c Chain) Verify(password, encodedHash string) (bool, error) {
	for _, h := range c {
		if r, ok := h.(recogniser); ok && !r.Recognises(encodedHash) {
			continue
		}
		return h.Verify(password, encodedHash)
	}
	return false, ErrUnknownHash
}
