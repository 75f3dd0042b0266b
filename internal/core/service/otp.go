package service

import (
	"crypto/rand"
	"fmt"
)

// DefaultOTPLength is the number of digits in a generated passcode.
const DefaultOTPLength = 6

// GenerateOTP produces a fixed-width numeric one-time passcode. Each digit is
// drawn independently and uniformly from crypto/rand; leading zeros are
// allowed. A length <= 0 falls back to DefaultOTPLength.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		length = DefaultOTPLength
	}

	code := make([]byte, length)
	for i := range code {
		d, err := randomDigit()
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		code[i] = '0' + d
	}
	return string(code), nil
}

// randomDigit returns a uniform value in [0,10) using rejection sampling so
// that no digit is favored by modulo bias.
func randomDigit() (byte, error) {
	var buf [1]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, err
		}
		// Reject values >= 250: the largest multiple of 10 below 256.
		if buf[0] < 250 {
			return buf[0] % 10, nil
		}
	}
}
