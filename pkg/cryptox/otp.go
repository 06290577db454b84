package cryptox

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

// OTPDigits is the length of emailed one-time codes.
const OTPDigits = otp.DigitsSix

// GenerateOTP returns a numeric one-time code. Each code is an HOTP value
// derived from a throwaway random secret and counter, so codes are uniformly
// distributed and never reuse state.
func GenerateOTP() (string, error) {
	secret := make([]byte, 20)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("cryptox: otp secret: %w", err)
	}

	var counter [8]byte
	if _, err := rand.Read(counter[:]); err != nil {
		return "", fmt.Errorf("cryptox: otp counter: %w", err)
	}

	code, err := hotp.GenerateCodeCustom(
		base32.StdEncoding.EncodeToString(secret),
		binary.BigEndian.Uint64(counter[:]),
		hotp.ValidateOpts{Digits: OTPDigits, Algorithm: otp.AlgorithmSHA1},
	)
	if err != nil {
		return "", fmt.Errorf("cryptox: generate otp: %w", err)
	}
	return code, nil
}
