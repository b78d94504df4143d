package sias

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpSecretBytes = 20
	totpPeriod      = 30
	totpDigits      = 6
	qrCodeSize      = 200
)

var errEmptyTOTPSecret = errors.New("empty totp secret")

type totpManager struct {
	issuer string
	skew   uint
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	return &totpManager{issuer: cfg.Issuer, skew: cfg.Skew}
}

func (m *totpManager) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Generate creates a new base32 secret for account and renders its
// provisioning URI and PNG QR code.
func (m *totpManager) Generate(account string) (*MFASetup, error) {
	if m == nil {
		return nil, ErrEngineNotReady
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: account,
		Period:      totpPeriod,
		SecretSize:  totpSecretBytes,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return &MFASetup{
		Secret: key.Secret(),
		URI:    key.URL(),
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// VerifyCode checks code against secret at now with the configured skew.
// On a match it returns the time-step counter that matched.
func (m *totpManager) VerifyCode(secret, code string, now time.Time) (bool, int64, error) {
	if m == nil {
		return false, 0, ErrEngineNotReady
	}

	trimmed := strings.TrimSpace(code)
	if len(trimmed) != totpDigits || !isNumericString(trimmed) {
		return false, 0, nil
	}
	if secret == "" {
		return false, 0, errEmptyTOTPSecret
	}

	opts := m.validateOpts()
	baseCounter := now.Unix() / totpPeriod
	skew := int64(m.skew)
	for step := -skew; step <= skew; step++ {
		counter := baseCounter + step
		if counter < 0 {
			continue
		}
		generated, err := totp.GenerateCodeCustom(secret, time.Unix(counter*totpPeriod, 0), opts)
		if err != nil {
			return false, 0, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, counter, nil
		}
	}

	return false, 0, nil
}

func isNumericString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
