package selfauth

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/selfauth/internal"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpSecretBytes = 20
	totpPeriod      = 30
	totpSkew        = 1
	totpDigits      = otp.DigitsSix
)

// errTOTPNoSecret distinguishes "2FA not configured" from a wrong code.
var errTOTPNoSecret = errors.New("totp secret not configured")

var totpEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

type totpManager struct {
	issuer string
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	return &totpManager{issuer: cfg.Issuer}
}

// GenerateSecret returns a fresh 160-bit secret, base32 without padding.
func (m *totpManager) GenerateSecret() (string, error) {
	raw, err := internal.NewSecretBytes(totpSecretBytes)
	if err != nil {
		return "", err
	}
	return totpEncoding.EncodeToString(raw), nil
}

// ProvisionURI builds the otpauth:// enrollment URI for authenticator apps.
func (m *totpManager) ProvisionURI(secret, account string) (string, error) {
	raw, err := totpEncoding.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: account,
		Period:      totpPeriod,
		Secret:      raw,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("build totp key: %w", err)
	}
	return key.URL(), nil
}

// VerifyCode reports whether code matches secret at now or one step either
// side. An empty secret returns errTOTPNoSecret; a malformed code is simply
// not a match.
func (m *totpManager) VerifyCode(secret, code string, now time.Time) (bool, error) {
	if secret == "" {
		return false, errTOTPNoSecret
	}
	code = strings.TrimSpace(code)
	if len(code) != totpDigits.Length() || !isNumericString(code) {
		return false, nil
	}

	ok, err := totp.ValidateCustom(code, secret, now.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		// Undecodable stored secret; treat as a non-match rather than leaking
		// storage detail.
		return false, nil
	}
	return ok, nil
}

func isNumericString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
