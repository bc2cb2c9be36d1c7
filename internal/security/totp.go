package security

import (
	"github.com/pquerna/otp/totp"
)

// totpIssuer appears in authenticator apps next to the account name.
const totpIssuer = "iProfit Admin"

// GenerateTOTPSecret creates a new TOTP enrollment for the account.
// It returns the shared secret and the otpauth:// provisioning URL.
func GenerateTOTPSecret(account string) (secret, url string, err error) {
	key, errGenerate := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: account,
	})
	if errGenerate != nil {
		return "", "", errGenerate
	}
	return key.Secret(), key.URL(), nil
}

// ValidateTOTP reports whether code is currently valid for the secret.
func ValidateTOTP(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}
