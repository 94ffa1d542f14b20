package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

// OTPLength is the number of digits in a login OTP.
const OTPLength = 6

var otpSecretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateOTP returns a 6-digit login code. Each code is an HOTP value over a
// fresh random secret and counter, so codes are independent of each other.
func GenerateOTP() (string, error) {
	seed := make([]byte, 28)
	if _, errRead := rand.Read(seed); errRead != nil {
		return "", fmt.Errorf("security: read otp seed: %w", errRead)
	}
	secret := otpSecretEncoding.EncodeToString(seed[:20])
	counter := binary.BigEndian.Uint64(seed[20:])

	code, errCode := hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if errCode != nil {
		return "", fmt.Errorf("security: generate otp: %w", errCode)
	}
	return code, nil
}

// EqualOTP compares two codes in constant time.
func EqualOTP(submitted, stored string) bool {
	if submitted == "" || stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(stored)) == 1
}
